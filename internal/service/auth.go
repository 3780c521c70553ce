package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guardian/guardian-server-go/internal/audit"
	apperrors "github.com/web3guardian/guardian-server-go/internal/errors"
	"github.com/web3guardian/guardian-server-go/internal/model"
	"github.com/web3guardian/guardian-server-go/internal/repository"
	"github.com/web3guardian/guardian-server-go/internal/sse"
)

type addressVerifier interface {
	VerifyAddress(ctx context.Context, req model.VerifyAddressRequest) (*model.AuthResponse, error)
}

type authDialog interface {
	CompleteAuth(ctx context.Context, conversationID string) ([]model.Reply, error)
}

type replyPublisher interface {
	Publish(ctx context.Context, conversationID string, event sse.Event) error
}

// AuthService turns a wallet proof from the connect-wallet side channel into
// a stored API credential, registers the user's own entity under their wallet
// address, and unblocks the conversation that was waiting for authentication.
type AuthService struct {
	credentials repository.CredentialRepository
	verifier    addressVerifier
	resolver    *EntityResolver
	dialog      authDialog
	broker      replyPublisher
}

func NewAuthService(
	credentials repository.CredentialRepository,
	verifier addressVerifier,
	resolver *EntityResolver,
	dialog authDialog,
	broker replyPublisher,
) *AuthService {
	return &AuthService{
		credentials: credentials,
		verifier:    verifier,
		resolver:    resolver,
		dialog:      dialog,
		broker:      broker,
	}
}

type CompleteWalletAuthParams struct {
	ConversationID string
	UserID         string
	Username       string
	Address        string
	Signature      string
}

func (p CompleteWalletAuthParams) validate() error {
	if p.ConversationID == "" {
		return apperrors.MissingRequired("conversationId")
	}
	if p.UserID == "" {
		return apperrors.MissingRequired("userId")
	}
	if p.Address == "" {
		return apperrors.MissingRequired("address")
	}
	if p.Signature == "" {
		return apperrors.MissingRequired("signature")
	}
	return nil
}

func (s *AuthService) CompleteWalletAuth(ctx context.Context, params CompleteWalletAuthParams) error {
	if err := params.validate(); err != nil {
		return err
	}

	tokens, err := s.verifier.VerifyAddress(ctx, model.VerifyAddressRequest{
		Address:   params.Address,
		Signature: params.Signature,
	})
	if err != nil {
		audit.Log(ctx, audit.Event{
			Type:           audit.EventAuthFailure,
			UserID:         params.UserID,
			ConversationID: params.ConversationID,
			Details:        map[string]interface{}{"address": params.Address},
		})
		return fmt.Errorf("verify address: %w", err)
	}

	now := time.Now()
	credential := &model.Credential{
		AccessToken:           tokens.AccessToken,
		AccessTokenExpiresAt:  now.Add(time.Duration(tokens.ExpiresIn) * time.Second),
		RefreshToken:          tokens.RefreshToken,
		RefreshTokenExpiresAt: now.Add(time.Duration(tokens.RefreshExpiresIn) * time.Second),
		Address:               params.Address,
	}
	if err := s.credentials.Save(ctx, params.UserID, credential); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:           audit.EventAuthSuccess,
		UserID:         params.UserID,
		ConversationID: params.ConversationID,
		Details:        map[string]interface{}{"address": params.Address},
	})

	// register the user's own entity under their proven wallet address so
	// their submissions carry a verifiable source uuid
	if params.Username != "" {
		if _, err := s.resolver.EnsureRegistered(ctx, params.UserID, params.Username, params.Address); err != nil {
			log.Warn().Err(err).Str("username", params.Username).Msg("self entity registration failed")
		}
	}

	replies, err := s.dialog.CompleteAuth(ctx, params.ConversationID)
	if err != nil {
		return fmt.Errorf("advance dialog: %w", err)
	}

	for _, reply := range replies {
		if err := s.publishReply(ctx, params.ConversationID, reply); err != nil {
			log.Error().Err(err).Str("conversationId", params.ConversationID).Msg("failed to publish auth reply")
		}
	}

	log.Info().
		Str("conversationId", params.ConversationID).
		Str("address", params.Address).
		Msg("wallet authentication completed")

	return nil
}

func (s *AuthService) publishReply(ctx context.Context, conversationID string, reply model.Reply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return s.broker.Publish(ctx, conversationID, sse.Event{Type: "reply", Data: data})
}
