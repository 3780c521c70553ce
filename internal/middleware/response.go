package middleware

import (
	"net/http"

	"github.com/web3guardian/guardian-server-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}
