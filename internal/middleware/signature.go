package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/web3guardian/guardian-server-go/internal/audit"
	"github.com/web3guardian/guardian-server-go/internal/util"
)

// TransportSignatureMiddleware verifies the HMAC the chat transport connector
// puts on every webhook delivery.
type TransportSignatureMiddleware struct {
	secret string
}

func NewTransportSignatureMiddleware(secret string) *TransportSignatureMiddleware {
	return &TransportSignatureMiddleware{secret: secret}
}

func (m *TransportSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			log.Warn().Msg("transport signature verification bypassed: TRANSPORT_SIGNATURE_SECRET is not configured")
			next.ServeHTTP(w, r)
			return
		}

		signature := r.Header.Get("X-Transport-Signature")
		if signature == "" {
			log.Warn().Msg("transport signature middleware: missing signature header")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing signature",
			})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("transport signature middleware: failed to read body")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Failed to read request body",
			})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		computed := util.HmacSHA256(m.secret, string(body))
		if !util.ConstantTimeEqual(computed, signature) {
			log.Warn().Msg("transport signature middleware: invalid signature")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventSignatureFailure})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid signature",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
