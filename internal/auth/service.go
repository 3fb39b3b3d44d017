package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/travelblog/pkg"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL       = 15 * time.Minute
	sessionKeyPrefix = "travelblog-session||"
	sessionTokenLen  = 35
)

var ErrSessionNotFound = errors.New("session not found")

type session struct {
	Identity
	CreatedAtUnix int64 `json:"created_at"`
}

// Service keeps login sessions in redis. Sessions have an absolute lifetime: the key
// expires ttl after login, and is never refreshed.
type Service struct {
	redisClient *redis.Client
	ttl         time.Duration
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
}

func NewAuthService(
	ttl time.Duration,
	redisClient *redis.Client,
) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		ttl:            ttl,
		redisClient:    redisClient,
		RandStringFunc: pkg.GenerateRandomString,
	}
}

func (as *Service) TTL() time.Duration {
	return as.ttl
}

func (as *Service) Login(ctx context.Context, identity *Identity, createdAt time.Time) (string, error) {
	if err := Require(identity); err != nil {
		return "", err
	}

	token, err := as.RandStringFunc(sessionTokenLen)
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	sessionJson, err := json.Marshal(session{
		Identity:      *identity,
		CreatedAtUnix: createdAt.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	sessionKey := sessionKeyPrefix + token
	if err := as.redisClient.Set(ctx, sessionKey, string(sessionJson), as.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	log.Tracef("new session for user %d", identity.UserID)
	return token, nil
}

// Logout removes the session. Removing an unknown or expired session is not an error.
func (as *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := as.redisClient.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (as *Service) Identity(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	sessionJson, err := as.redisClient.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s session
	if err := json.Unmarshal([]byte(sessionJson), &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	// redis expires the key anyway, this guards against keys stored without TTL
	if time.Since(time.Unix(s.CreatedAtUnix, 0)) > as.ttl {
		return nil, ErrSessionNotFound
	}

	identity := s.Identity
	return &identity, nil
}
