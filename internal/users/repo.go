package users

import (
	"context"
	"errors"

	"github.com/2beens/travelblog/internal/db"
	"github.com/2beens/travelblog/internal/telemetry/tracing"
	"github.com/2beens/travelblog/pkg"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

var _ usersRepo = (*Repo)(nil)

type Repo struct {
	db db.DBTX
}

func NewRepo(db db.DBTX) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, user *User) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if user.Email == "" || user.PasswordHash == "" {
		return errors.New("user email or password empty")
	}

	err = r.db.QueryRow(
		ctx,
		`INSERT INTO users (email, password, name) VALUES ($1, $2, $3) RETURNING id;`,
		user.Email, user.PasswordHash, user.Name,
	).Scan(&user.ID)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	log.Tracef("user %d added", user.ID)
	return nil
}

func (r *Repo) ByEmail(ctx context.Context, email string) (*User, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.byEmail")
	defer span.End()

	return r.scanUser(r.db.QueryRow(
		ctx,
		`SELECT id, email, password, name FROM users WHERE email = $1`,
		email,
	))
}

func (r *Repo) ByID(ctx context.Context, id int) (*User, error) {
	return r.scanUser(r.db.QueryRow(
		ctx,
		`SELECT id, email, password, name FROM users WHERE id = $1`,
		id,
	))
}

func (r *Repo) scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
