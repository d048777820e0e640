package middleware

import (
	"net/http"

	"github.com/carecall/carecall/internal/api"
)

// CORS sets the permissive CORS headers and the JSON content type on every
// response before the handler runs, so error paths carry them too. Preflight
// OPTIONS requests are answered directly with an empty JSON object.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.SetCORSHeaders(w.Header())

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			api.RespondJSON(w, http.StatusOK, nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
