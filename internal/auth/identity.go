package auth

import (
	"context"
	"errors"
)

var ErrAuthRequired = errors.New("authentication required")

// Identity is the authenticated user behind a request. A nil *Identity means anonymous.
type Identity struct {
	UserID int    `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type identityCtxKey struct{}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityCtxKey{}).(*Identity)
	return identity
}

// Require returns ErrAuthRequired for anonymous callers.
func Require(identity *Identity) error {
	if identity == nil || identity.UserID <= 0 {
		return ErrAuthRequired
	}
	return nil
}
