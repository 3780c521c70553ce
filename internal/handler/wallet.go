package handler

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/web3guardian/guardian-server-go/internal/httputil"
	"github.com/web3guardian/guardian-server-go/internal/service"
)

// WalletHandler hosts the out-of-band wallet connection flow: a minimal page
// that collects the wallet address plus message signature, and the verify
// endpoint that exchanges the proof for an API credential.
type WalletHandler struct {
	auth *service.AuthService
}

func NewWalletHandler(auth *service.AuthService) *WalletHandler {
	return &WalletHandler{auth: auth}
}

func (h *WalletHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/connect-wallet", h.ConnectPage)
	r.Post("/wallet/verify", h.Verify)
	return r
}

type verifyRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Username       string `json:"username,omitempty"`
	Address        string `json:"address"`
	Signature      string `json:"signature"`
}

func (h *WalletHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	err := h.auth.CompleteWalletAuth(r.Context(), service.CompleteWalletAuthParams{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Username:       req.Username,
		Address:        req.Address,
		Signature:      req.Signature,
	})
	if err != nil {
		log.Warn().Err(err).Str("conversationId", req.ConversationID).Msg("wallet verification failed")
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var connectPageTmpl = template.Must(template.New("connect-wallet").Parse(`<!DOCTYPE html>
<html>
<head><title>Web3 Guardian - Connect Wallet</title></head>
<body>
  <h1>Connect your wallet</h1>
  <p>Sign the message with your wallet to prove ownership, then submit.</p>
  <form id="verify-form">
    <input type="hidden" name="conversationId" value="{{.ConversationID}}">
    <input type="hidden" name="userId" value="{{.UserID}}">
    <input type="hidden" name="username" value="{{.Username}}">
    <label>Address <input name="address"></label>
    <label>Signature <input name="signature"></label>
    <button type="submit">Verify</button>
  </form>
  <p id="result"></p>
  <script>
    document.getElementById('verify-form').addEventListener('submit', async (e) => {
      e.preventDefault();
      const data = Object.fromEntries(new FormData(e.target).entries());
      const res = await fetch('/wallet/verify', {
        method: 'POST',
        headers: {'Content-Type': 'application/json'},
        body: JSON.stringify(data),
      });
      document.getElementById('result').textContent = res.ok
        ? 'Wallet connected. You can return to the chat.'
        : 'Verification failed. Please try again.';
    });
  </script>
</body>
</html>`))

func (h *WalletHandler) ConnectPage(w http.ResponseWriter, r *http.Request) {
	data := struct {
		ConversationID string
		UserID         string
		Username       string
	}{
		ConversationID: r.URL.Query().Get("conversation"),
		UserID:         r.URL.Query().Get("user"),
		Username:       r.URL.Query().Get("username"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := connectPageTmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("failed to render connect-wallet page")
	}
}
