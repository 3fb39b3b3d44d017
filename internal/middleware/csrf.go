package middleware

import (
	"errors"
	"mime"
	"net/http"

	"github.com/gorilla/csrf"
	log "github.com/sirupsen/logrus"
)

const csrfHeaderName = "X-CSRF-Token"

// multipart parts above this size are spooled to temp files
const multipartMaxMemory = 8 << 20

// PlaintextCSRF tells the csrf protection the service is reached over plain http,
// so it skips the strict referer check it does for TLS.
func PlaintextCSRF(plaintext bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if plaintext {
				r = csrf.PlaintextHTTPRequest(r)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestBodyLimit caps request bodies at maxBytes and parses multipart forms before the
// csrf check reads its field from them. Too large multipart bodies are answered by tooLarge.
func RequestBodyLimit(maxBytes int64, tooLarge http.Handler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if mediaType == "multipart/form-data" {
				if err := r.ParseMultipartForm(multipartMaxMemory); err != nil {
					var maxBytesErr *http.MaxBytesError
					if errors.As(err, &maxBytesErr) {
						log.Debugf("request body too large: %s %s", r.Method, r.URL.Path)
						tooLarge.ServeHTTP(w, r)
						return
					}
					log.Debugf("parse multipart form [%s]: %s", r.URL.Path, err)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CSRFQueryToken guards a state changing GET route (a plain link): the token must come in the
// csrf_token query param, and it is checked by the same csrf protection that guards form posts.
func CSRFQueryToken(protect func(http.Handler) http.Handler, fieldName string, forbidden http.Handler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get(fieldName)
			if token == "" || !csrfTokenValid(protect, r, token) {
				log.Debugf("csrf query token rejected: %s", r.URL.Path)
				forbidden.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// csrfTokenValid replays the request as a body-less POST carrying the token in the header.
func csrfTokenValid(protect func(http.Handler) http.Handler, r *http.Request, token string) bool {
	check := r.Clone(r.Context())
	check.Method = http.MethodPost
	check.Body = http.NoBody
	check.ContentLength = 0
	check.Header.Set(csrfHeaderName, token)

	valid := false
	protect(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		valid = true
	})).ServeHTTP(newDiscardResponseWriter(), check)

	return valid
}

type discardResponseWriter struct {
	header http.Header
}

func newDiscardResponseWriter() *discardResponseWriter {
	return &discardResponseWriter{header: make(http.Header)}
}

func (w *discardResponseWriter) Header() http.Header {
	return w.header
}

func (w *discardResponseWriter) Write(b []byte) (int, error) {
	return len(b), nil
}

func (w *discardResponseWriter) WriteHeader(int) {}
