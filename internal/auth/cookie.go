package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const SessionCookieName = "tb_session"

var ErrInvalidSessionCookie = errors.New("invalid session cookie")

type sessionClaims struct {
	jwt.RegisteredClaims
	SessionToken string `json:"sid"`
}

// CookieCodec signs the session token into an HS256 JWT stored in the session cookie,
// so a tampered or expired cookie is rejected before redis is hit.
type CookieCodec struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

func NewCookieCodec(secret string, ttl time.Duration, secure bool) (*CookieCodec, error) {
	if secret == "" {
		return nil, errors.New("session secret key cannot be empty")
	}
	return &CookieCodec{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
	}, nil
}

func (c *CookieCodec) Encode(sessionToken string, createdAt time.Time) (*http.Cookie, error) {
	expiresAt := createdAt.Add(c.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(createdAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionToken: sessionToken,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session cookie: %w", err)
	}

	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Decode returns the session token carried by the request cookie.
func (c *CookieCodec) Decode(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", ErrInvalidSessionCookie
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(
		cookie.Value,
		claims,
		func(t *jwt.Token) (any, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.SessionToken == "" {
		return "", ErrInvalidSessionCookie
	}

	return claims.SessionToken, nil
}

// Expired returns a cookie that makes the browser drop the session cookie.
func (c *CookieCodec) Expired() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
