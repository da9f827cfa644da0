//go:build integration

package citystore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/FACorreiaa/loci-cities/internal/types"
	"github.com/FACorreiaa/loci-cities/pkg/db"
)

// setupIntegrationDB uses TEST_DATABASE_URL when set, otherwise a throwaway postgres container.
func setupIntegrationDB(t *testing.T) *db.DB {
	t.Helper()
	ctx := context.Background()

	_ = godotenv.Load("../../../.env.test")
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("cities"),
			tcpostgres.WithUsername("cities"),
			tcpostgres.WithPassword("cities"),
			tcpostgres.BasicWaitStrategies(),
		)
		require.NoError(t, err, "failed to start postgres container")
		t.Cleanup(func() { _ = container.Terminate(context.Background()) })

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	database, err := db.New(db.Config{DSN: dsn, MaxConns: 4, MaxConnLifetime: time.Minute}, newTestLogger())
	require.NoError(t, err)
	t.Cleanup(database.Close)
	require.NoError(t, database.RunMigrations())

	_, err = database.Pool.Exec(ctx, "TRUNCATE visited_cities")
	require.NoError(t, err)
	return database
}

func TestPostgresRepository_Integration(t *testing.T) {
	database := setupIntegrationDB(t)
	repo := NewPostgresRepository(database.Pool, newTestLogger())
	ctx := context.Background()

	require.NoError(t, database.Health())

	lisbon, err := repo.CreateCity(ctx, validNewCity())
	require.NoError(t, err)
	madrid, err := repo.CreateCity(ctx, types.NewCity{
		CityName: "Madrid", Country: "Spain", Emoji: "🇪🇸",
		Date: "2027-07-15T08:22:53.976Z", Position: types.Position{Lat: 40.46, Lng: -3.68},
	})
	require.NoError(t, err)

	cities, err := repo.ListCities(ctx)
	require.NoError(t, err)
	require.Len(t, cities, 2)
	assert.Equal(t, *lisbon, cities[0])
	assert.Equal(t, *madrid, cities[1])

	got, err := repo.GetCity(ctx, madrid.ID)
	require.NoError(t, err)
	assert.Equal(t, *madrid, *got)

	require.NoError(t, repo.DeleteCity(ctx, lisbon.ID))
	assert.ErrorIs(t, repo.DeleteCity(ctx, lisbon.ID), types.ErrNotFound)

	_, err = repo.GetCity(ctx, lisbon.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	n, err := SeedIfEmpty(ctx, repo, []types.City{validNewCity().WithID("1")}, newTestLogger())
	require.NoError(t, err)
	assert.Zero(t, n)
}
