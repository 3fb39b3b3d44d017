package middleware

import (
	"net/http"

	"github.com/2beens/travelblog/pkg"

	log "github.com/sirupsen/logrus"
)

func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userAgent := r.Header.Get("User-Agent")
			ip, _ := pkg.ReadUserIP(r)
			log.Tracef(" ====> request [%s] path: [%s] [ip: %s] [UA: %s]", r.Method, r.URL.Path, ip, userAgent)
			next.ServeHTTP(w, r)
		})
	}
}
