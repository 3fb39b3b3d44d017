//go:build integration_test || all_tests

package countries

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/2beens/travelblog/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepoSetup(t *testing.T) *Repo {
	t.Helper()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	t.Logf("using postres host: %s", host)

	dbPool, err := db.NewDBPool(timeoutCtx, db.NewDBPoolParams{
		DBHost: host,
		DBPort: "5432",
		DBName: "travel_blog",
	})
	require.NoError(t, err)
	t.Cleanup(dbPool.Close)

	require.NoError(t, db.RunMigrations(timeoutCtx, dbPool))
	return NewRepo(dbPool)
}

func TestRepo_SeedAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := testRepoSetup(t)

	_, err := Seed(ctx, repo)
	require.NoError(t, err)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 249)

	japan, err := repo.ByCode(ctx, " jp ")
	require.NoError(t, err)
	assert.Equal(t, "JP", japan.Code)
	assert.Equal(t, "Japan", japan.Name)

	byID, err := repo.ByID(ctx, japan.ID)
	require.NoError(t, err)
	assert.Equal(t, japan, byID)

	_, err = repo.ByCode(ctx, "ZZ")
	assert.ErrorIs(t, err, ErrCountryNotFound)
	_, err = repo.ByID(ctx, -1)
	assert.ErrorIs(t, err, ErrCountryNotFound)

	added, err := repo.Insert(ctx, &Country{Code: "JP", Name: "Japan"})
	require.NoError(t, err)
	assert.False(t, added)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, count)
}
