package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/web3guardian/guardian-server-go/internal/httputil"
	"github.com/web3guardian/guardian-server-go/internal/model"
	"github.com/web3guardian/guardian-server-go/internal/service"
)

type dialogHandler interface {
	HandleEvent(ctx context.Context, ev service.Event) ([]model.Reply, error)
}

// TransportHandler accepts inbound chat events from the transport connector
// and answers with the dialog's outbound replies.
type TransportHandler struct {
	dialog dialogHandler
}

func NewTransportHandler(dialog dialogHandler) *TransportHandler {
	return &TransportHandler{dialog: dialog}
}

// TransportWebhookRequest is one normalized inbound event. Button presses
// arrive with the pressed caption as text and isCallback set.
type TransportWebhookRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Username       string `json:"username,omitempty"`
	Text           string `json:"text"`
	IsCallback     bool   `json:"isCallback,omitempty"`
}

type TransportWebhookResponse struct {
	Replies []model.Reply `json:"replies"`
}

func (h *TransportHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req TransportWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid transport webhook request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	log.Info().
		Str("conversationId", req.ConversationID).
		Str("text", truncate(req.Text, 50)).
		Msg("received transport webhook")

	replies, err := h.dialog.HandleEvent(r.Context(), service.Event{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Username:       req.Username,
		Text:           req.Text,
		IsCallback:     req.IsCallback,
	})
	if err != nil {
		log.Error().Err(err).Str("conversationId", req.ConversationID).Msg("dialog event failed")
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TransportWebhookResponse{Replies: replies})
}
