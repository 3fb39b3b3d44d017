package middleware

import (
	"io"
	"net/http"
)

// DrainAndCloseRequest drains what is left of the request body, up to maxDrain bytes,
// and closes it, so the connection can be reused. Bigger leftovers are just closed.
func DrainAndCloseRequest(maxDrain int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Body == nil {
				return
			}
			_, _ = io.CopyN(io.Discard, r.Body, maxDrain)
			_ = r.Body.Close()
		})
	}
}
