package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/web3guardian/guardian-server-go/internal/util"
)

func TestTransportSignatureMiddleware(t *testing.T) {
	secret := "test-secret"
	body := `{"conversationId":"c1","text":"/start"}`
	validSignature := util.HmacSHA256(secret, body)

	t.Run("passes through when secret is empty", func(t *testing.T) {
		middleware := NewTransportSignatureMiddleware("")
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest("POST", "/transport/webhook", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects request without signature header", func(t *testing.T) {
		middleware := NewTransportSignatureMiddleware(secret)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("POST", "/transport/webhook", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects request with invalid signature", func(t *testing.T) {
		middleware := NewTransportSignatureMiddleware(secret)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("POST", "/transport/webhook", bytes.NewBufferString(body))
		req.Header.Set("X-Transport-Signature", "deadbeef")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepts request with valid signature and preserves body", func(t *testing.T) {
		middleware := NewTransportSignatureMiddleware(secret)

		var seenBody []byte
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := new(bytes.Buffer)
			buf.ReadFrom(r.Body)
			seenBody = buf.Bytes()
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest("POST", "/transport/webhook", bytes.NewBufferString(body))
		req.Header.Set("X-Transport-Signature", validSignature)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, body, string(seenBody))
	})
}

func TestConnectorAuthMiddleware(t *testing.T) {
	secret := "connector-secret"

	newHandler := func(m *ConnectorAuthMiddleware) http.Handler {
		return m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	}

	t.Run("rejects missing bearer token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newHandler(NewConnectorAuthMiddleware(secret)).ServeHTTP(rec, httptest.NewRequest("GET", "/v1/events", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects wrong bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/events", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		newHandler(NewConnectorAuthMiddleware(secret)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepts correct bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/events", nil)
		req.Header.Set("Authorization", "Bearer "+secret)
		rec := httptest.NewRecorder()
		newHandler(NewConnectorAuthMiddleware(secret)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
