package countries

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2beens/travelblog/internal/db"
	"github.com/2beens/travelblog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

var _ countriesRepo = (*Repo)(nil)

type countriesRepo interface {
	All(ctx context.Context) ([]*Country, error)
	ByCode(ctx context.Context, code string) (*Country, error)
	ByID(ctx context.Context, id int) (*Country, error)
	Count(ctx context.Context) (int, error)
	Insert(ctx context.Context, country *Country) (bool, error)
}

type Repo struct {
	db db.DBTX
}

func NewRepo(db db.DBTX) *Repo {
	return &Repo{
		db: db,
	}
}

// All returns every country ordered by name, as shown in the post country selector.
func (r *Repo) All(ctx context.Context) ([]*Country, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "countriesRepo.all")
	defer span.End()

	rows, err := r.db.Query(ctx, `SELECT id, code, name FROM countries ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var countries []*Country
	for rows.Next() {
		var c Country
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, err
		}
		countries = append(countries, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("countries.count", len(countries)))
	return countries, nil
}

func (r *Repo) ByCode(ctx context.Context, code string) (*Country, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "countriesRepo.byCode")
	span.SetAttributes(attribute.String("country.code", code))
	defer span.End()

	var c Country
	err := r.db.QueryRow(
		ctx,
		`SELECT id, code, name FROM countries WHERE code = $1`,
		strings.ToUpper(strings.TrimSpace(code)),
	).Scan(&c.ID, &c.Code, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCountryNotFound
		}
		return nil, err
	}

	return &c, nil
}

func (r *Repo) ByID(ctx context.Context, id int) (*Country, error) {
	var c Country
	err := r.db.QueryRow(
		ctx,
		`SELECT id, code, name FROM countries WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Code, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCountryNotFound
		}
		return nil, err
	}

	return &c, nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM countries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count countries: %w", err)
	}
	return count, nil
}

// Insert adds the country unless one with the same code already exists.
// Returns true if a row was added.
func (r *Repo) Insert(ctx context.Context, country *Country) (bool, error) {
	rows, err := r.db.Query(
		ctx,
		`INSERT INTO countries (code, name) VALUES ($1, $2)
		ON CONFLICT (code) DO NOTHING
		RETURNING id;`,
		country.Code, country.Name,
	)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&country.ID); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, rows.Err()
}
