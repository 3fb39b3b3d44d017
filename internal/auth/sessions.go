package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sessions ties the redis session store to the session cookie.
type Sessions struct {
	service *Service
	codec   *CookieCodec
	nowFunc func() time.Time
}

func NewSessions(service *Service, codec *CookieCodec) *Sessions {
	return &Sessions{
		service: service,
		codec:   codec,
		nowFunc: time.Now,
	}
}

// Start logs the identity in and sets the session cookie on the response.
func (s *Sessions) Start(ctx context.Context, w http.ResponseWriter, identity *Identity) error {
	now := s.nowFunc()
	token, err := s.service.Login(ctx, identity, now)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	cookie, err := s.codec.Encode(token, now)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}

	http.SetCookie(w, cookie)
	return nil
}

// End drops the session, if any, and clears the cookie. Safe to call when not logged in.
func (s *Sessions) End(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, s.codec.Expired())

	token, err := s.codec.Decode(r)
	if err != nil {
		return nil
	}
	return s.service.Logout(ctx, token)
}

// Resolve returns the identity behind the request session cookie, or nil for anonymous requests.
func (s *Sessions) Resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	token, err := s.codec.Decode(r)
	if err != nil {
		return nil, nil
	}

	identity, err := s.service.Identity(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			log.Tracef("session cookie present, but session gone")
			return nil, nil
		}
		return nil, err
	}

	return identity, nil
}
