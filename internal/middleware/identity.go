package middleware

import (
	"context"
	"net/http"

	"github.com/2beens/travelblog/internal/auth"
	"github.com/2beens/travelblog/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=identity_mocks_test.go -package=middleware_test

type identityResolver interface {
	Resolve(ctx context.Context, r *http.Request) (*auth.Identity, error)
}

// Identity puts the identity behind the session cookie into the request context.
// Requests without a valid session continue anonymously; pages decide what needs a login.
func Identity(resolver identityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.identity")

			identity, err := resolver.Resolve(ctx, r)
			if err != nil {
				// session store unavailable, serve the request as anonymous
				log.Errorf("[identity middleware] resolve session => %s: %s", r.URL.Path, err)
				span.SetStatus(codes.Error, "resolve-session-err")
				span.RecordError(err)
				identity = nil
			} else if identity != nil {
				span.SetAttributes(attribute.Int("user.id", identity.UserID))
				span.SetStatus(codes.Ok, "authenticated")
			} else {
				span.SetStatus(codes.Ok, "anonymous")
			}
			span.End()

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}
