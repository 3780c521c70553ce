package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/web3guardian/guardian-server-go/internal/util"
)

// ConnectorAuthMiddleware guards endpoints only the transport connector may
// call (the outbound event stream) with the shared transport secret as a
// bearer token.
type ConnectorAuthMiddleware struct {
	secret string
}

func NewConnectorAuthMiddleware(secret string) *ConnectorAuthMiddleware {
	return &ConnectorAuthMiddleware{secret: secret}
}

func (m *ConnectorAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			log.Warn().Msg("connector auth bypassed: TRANSPORT_SIGNATURE_SECRET is not configured")
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || !util.ConstantTimeEqual(token, m.secret) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
