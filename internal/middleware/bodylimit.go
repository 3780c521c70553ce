package middleware

import (
	"net/http"
)

// DefaultMaxBodySize caps inbound payloads at 1MB. Transport webhook events
// are a few hundred bytes of JSON; anything near the cap is a misbehaving
// connector.
const DefaultMaxBodySize = 1 << 20

// BodyLimit rejects requests whose declared length exceeds maxSize and caps
// reads on everything else. A maxSize of zero or below selects the default.
func BodyLimit(maxSize int64) func(http.Handler) http.Handler {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxSize {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
					"error": "Request body too large",
				})
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}
			next.ServeHTTP(w, r)
		})
	}
}
