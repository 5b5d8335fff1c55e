package migration

import (
	"context"

	"orcacast/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createBehaviorEquationsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create behavior_equations table")
	}

	if err := r.createForecastGridsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create forecast_grids table")
	}

	if err := r.createForecastPointsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create forecast_points table")
	}

	if err := r.createLivePredictionsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create live_predictions table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createBehaviorEquationsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS behavior_equations (
			behavior_label VARCHAR(100) PRIMARY KEY,
			key_factors JSONB NOT NULL,
			coefficients JSONB NOT NULL,
			intercept DOUBLE PRECISION NOT NULL,
			uncertainty_scale DOUBLE PRECISION NOT NULL CHECK (uncertainty_scale >= 0),
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createForecastGridsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS forecast_grids (
			id UUID PRIMARY KEY,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			equation_version VARCHAR(64) NOT NULL,
			seed BIGINT NOT NULL,
			grid_resolution INTEGER NOT NULL,
			time_hours INTEGER NOT NULL,
			point_count INTEGER NOT NULL,
			behaviors JSONB NOT NULL,
			request JSONB NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createForecastPointsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS forecast_points (
			grid_id UUID NOT NULL REFERENCES forecast_grids(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			behaviors JSONB NOT NULL,
			PRIMARY KEY (grid_id, idx)
		)
	`)
	return err
}

func (r *MigrationRunner) createLivePredictionsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS live_predictions (
			id UUID PRIMARY KEY,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			requested_at TIMESTAMP WITH TIME ZONE NOT NULL,
			equation_version VARCHAR(64) NOT NULL,
			summaries JSONB NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_forecast_grids_created_at ON forecast_grids(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_forecast_points_coords ON forecast_points(latitude, longitude)`,
		`CREATE INDEX IF NOT EXISTS idx_live_predictions_coords ON live_predictions(latitude, longitude, requested_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
