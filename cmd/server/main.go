package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guardian/guardian-server-go/internal/config"
	"github.com/web3guardian/guardian-server-go/internal/database"
	"github.com/web3guardian/guardian-server-go/internal/handler"
	"github.com/web3guardian/guardian-server-go/internal/jobs"
	"github.com/web3guardian/guardian-server-go/internal/middleware"
	"github.com/web3guardian/guardian-server-go/internal/redis"
	"github.com/web3guardian/guardian-server-go/internal/repository"
	"github.com/web3guardian/guardian-server-go/internal/service"
	"github.com/web3guardian/guardian-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply database schema")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(redisClient, cfg.SessionTTL())
	credentialRepo := repository.NewCredentialRepository(redisClient)
	entityRepo := repository.NewEntityRepository(db.DB)
	feedbackAuditRepo := repository.NewFeedbackAuditRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	reputationClient := service.NewReputationClient(cfg.ReputationAPIBaseURL, credentialRepo)
	resolver := service.NewEntityResolver(entityRepo, reputationClient)
	reportService := service.NewReportService(resolver, reputationClient)
	dialogService := service.NewDialogService(
		sessionRepo, credentialRepo, resolver, reputationClient, reportService,
		feedbackAuditRepo, cfg.ConnectWalletURL(),
	)
	authService := service.NewAuthService(credentialRepo, reputationClient, resolver, dialogService, broker)

	signatureMiddleware := middleware.NewTransportSignatureMiddleware(cfg.TransportSignatureSecret)
	connectorAuthMiddleware := middleware.NewConnectorAuthMiddleware(cfg.TransportSignatureSecret)

	transportHandler := handler.NewTransportHandler(dialogService)
	walletHandler := handler.NewWalletHandler(authService)
	eventsHandler := handler.NewEventsHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(middleware.BodyLimit(0))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/transport", func(r chi.Router) {
		r.Use(signatureMiddleware.Handler)
		r.Post("/webhook", transportHandler.Webhook)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(connectorAuthMiddleware.Handler)
		r.Get("/events", eventsHandler.ServeHTTP)
	})

	r.Mount("/", walletHandler.Routes())

	cleanupJob := jobs.NewCleanupJob(feedbackAuditRepo, cfg.AuditRetention(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
