package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guardian/guardian-server-go/internal/sse"
)

// EventsHandler streams outbound replies for one conversation to the
// transport connector over SSE. Replies produced out-of-band (wallet auth
// completion) arrive here.
type EventsHandler struct {
	broker *sse.Broker
}

func NewEventsHandler(broker *sse.Broker) *EventsHandler {
	return &EventsHandler{broker: broker}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation")
	if conversationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "conversation is required"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(conversationID)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("conversationId", conversationID).
		Msg("sse connection established")

	ctx := r.Context()

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("conversationId", conversationID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("conversationId", conversationID).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("conversationId", conversationID).
					Msg("heartbeat write failed, closing sse connection")
				return
			}
			flusher.Flush()
		}
	}
}
