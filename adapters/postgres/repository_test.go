package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orcacast/domain/core"
	"orcacast/domain/forecast"
	"orcacast/internal/migration"
	"orcacast/internal/testkit"
	"orcacast/ports"
)

// openTestDB connects to TEST_DATABASE_URL and migrates it, or skips
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	require.NoError(t, migration.NewRunner().Run(context.Background(), db), "migrations are idempotent")
	return db
}

func TestEquationRepositoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewEquationRepository(db)

	require.NoError(t, repo.ReplaceEquations(ctx, testkit.CanonicalEquations()))
	eqs, err := repo.FetchEquations(ctx)
	require.NoError(t, err)
	require.Len(t, eqs, 4)
	assert.Equal(t, testkit.Feeding, eqs[0].Label)
	assert.Equal(t, testkit.EquationByLabel(testkit.CanonicalEquations(), testkit.Traveling), testkit.EquationByLabel(eqs, testkit.Traveling))

	// replacing with a subset deactivates the rest
	require.NoError(t, repo.ReplaceEquations(ctx, testkit.CanonicalEquations()[3:]))
	eqs, err = repo.FetchEquations(ctx)
	require.NoError(t, err)
	require.Len(t, eqs, 1)
	assert.Equal(t, testkit.Resting, eqs[0].Label)
}

func TestForecastRepositoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewForecastRepository(db)

	points := make([]forecast.ForecastPoint, 0, 1500)
	for i := 0; i < 1500; i++ {
		points = append(points, forecast.ForecastPoint{
			Latitude:  48 + float64(i)/1500,
			Longitude: -123,
			Behaviors: map[string]forecast.BehaviorSummary{
				testkit.Feeding: {MeanProbability: 0.5, LowerBound: 0.4, UpperBound: 0.6, SampleCount: 24000},
			},
		})
	}
	grid := &forecast.ForecastGrid{
		ID:              core.NewForecastID(),
		CreatedAt:       time.Now().UTC().Truncate(time.Microsecond),
		EquationVersion: core.EquationSetHash("abc"),
		Seed:            42,
		Behaviors:       []string{testkit.Feeding},
		Request: forecast.GridRequest{
			LatRange:       forecast.Range{Min: 48, Max: 49},
			LngRange:       forecast.Range{Min: -124, Max: -123},
			GridResolution: 1,
			TimeHours:      24,
		},
		Points: points,
	}
	require.NoError(t, repo.SaveGrid(ctx, grid))

	stored, err := repo.GetGrid(ctx, grid.ID)
	require.NoError(t, err)
	assert.Equal(t, grid.Behaviors, stored.Behaviors)
	assert.Equal(t, grid.Request.TimeHours, stored.Request.TimeHours)
	require.Len(t, stored.Points, 1500)
	assert.Equal(t, points[1499], stored.Points[1499])

	headers, err := repo.ListGrids(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, headers)
	assert.Equal(t, grid.ID, headers[0].ID)
	assert.Equal(t, 1500, headers[0].PointCount)

	_, err = repo.GetGrid(ctx, core.NewForecastID())
	assert.True(t, core.IsNotFoundError(err))

	require.NoError(t, repo.SavePrediction(ctx, &ports.LivePrediction{
		ID:              core.NewID(),
		Latitude:        48.5,
		Longitude:       -123.2,
		RequestedAt:     time.Now().UTC(),
		EquationVersion: core.EquationSetHash("abc"),
		Summaries:       map[string]forecast.PosteriorSummary{testkit.Feeding: {Mean: 0.55, SampleCount: 1000, Level: 0.9}},
	}))
}
