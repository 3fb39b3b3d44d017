package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2beens/travelblog/internal/telemetry/tracing"
	"github.com/2beens/travelblog/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type usersRepo interface {
	Add(ctx context.Context, user *User) error
	ByEmail(ctx context.Context, email string) (*User, error)
	ByID(ctx context.Context, id int) (*User, error)
}

// unknownEmailPasswordHash is checked when the email is not registered, so a login for an
// unknown email costs the same pbkdf2 work as a wrong password.
var unknownEmailPasswordHash = fmt.Sprintf(
	"pbkdf2:sha256:%d$unknownEmail0000$%s",
	pkg.DefaultPasswordHashIterations,
	strings.Repeat("0", 64),
)

type Service struct {
	repo usersRepo
	// injectable for tests
	hashPasswordFunc  func(password string) (string, error)
	checkPasswordFunc func(password, hash string) bool
}

func NewService(repo usersRepo) *Service {
	return &Service{
		repo:              repo,
		hashPasswordFunc:  pkg.HashPassword,
		checkPasswordFunc: pkg.CheckPasswordHash,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user. The caller is responsible for starting the session.
func (s *Service) Register(ctx context.Context, name, email, password string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersService.register")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" || email == "" || password == "" {
		return nil, errors.New("name, email and password are required")
	}

	if _, err := s.repo.ByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	passwordHash, err := s.hashPasswordFunc(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
	}
	// the unique constraint still rejects a concurrent registration of the same email
	if err := s.repo.Add(ctx, user); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("user.id", user.ID))
	log.Debugf("new user registered: %d", user.ID)

	return user, nil
}

// Authenticate returns ErrInvalidCredentials both for unknown emails and wrong passwords.
func (s *Service) Authenticate(ctx context.Context, email, password string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersService.authenticate")
	defer func() {
		if errors.Is(err, ErrInvalidCredentials) {
			span.End()
			return
		}
		tracing.EndSpanWithErrCheck(span, err)
	}()

	user, err := s.repo.ByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Tracef("authenticate: unknown email")
			_ = s.checkPasswordFunc(password, unknownEmailPasswordHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !s.checkPasswordFunc(password, user.PasswordHash) {
		log.Tracef("authenticate: wrong password for user %d", user.ID)
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) ByID(ctx context.Context, id int) (*User, error) {
	return s.repo.ByID(ctx, id)
}
