package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"orcacast/domain/core"
	"orcacast/domain/forecast"
	"orcacast/ports"
)

// pointBatchSize bounds the rows per multi-value INSERT, keeping each statement well
// under the 65535 bind parameter limit of the postgres wire protocol.
const pointBatchSize = 1000

// ForecastRepositoryImpl implements ForecastRepository for PostgreSQL
type ForecastRepositoryImpl struct {
	db *sqlx.DB
}

// NewForecastRepository creates a new PostgreSQL forecast repository
func NewForecastRepository(db *sqlx.DB) ports.ForecastRepository {
	return &ForecastRepositoryImpl{db: db}
}

// SaveGrid stores the grid header and all of its points in one transaction
func (r *ForecastRepositoryImpl) SaveGrid(ctx context.Context, grid *forecast.ForecastGrid) error {
	behaviorsJSON, err := json.Marshal(grid.Behaviors)
	if err != nil {
		return fmt.Errorf("failed to marshal behaviors: %w", err)
	}
	requestJSON, err := json.Marshal(grid.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO forecast_grids (
			id, created_at, equation_version, seed, grid_resolution, time_hours, point_count, behaviors, request
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		grid.ID.String(), grid.CreatedAt, grid.EquationVersion.String(), grid.Seed,
		grid.Request.GridResolution, grid.Request.TimeHours, len(grid.Points), behaviorsJSON, requestJSON)
	if err != nil {
		return fmt.Errorf("failed to insert forecast grid: %w", err)
	}

	for start := 0; start < len(grid.Points); start += pointBatchSize {
		end := min(start+pointBatchSize, len(grid.Points))
		if err := insertPoints(ctx, tx, grid.ID, start, grid.Points[start:end]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertPoints(ctx context.Context, tx *sqlx.Tx, id core.ForecastID, offset int, points []forecast.ForecastPoint) error {
	var query strings.Builder
	query.WriteString(`INSERT INTO forecast_points (grid_id, idx, latitude, longitude, behaviors) VALUES `)
	args := make([]any, 0, len(points)*5)
	for i, p := range points {
		behaviorsJSON, err := json.Marshal(p.Behaviors)
		if err != nil {
			return fmt.Errorf("failed to marshal point %d: %w", offset+i, err)
		}
		if i > 0 {
			query.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&query, "($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, id.String(), offset+i, p.Latitude, p.Longitude, behaviorsJSON)
	}
	if _, err := tx.ExecContext(ctx, query.String(), args...); err != nil {
		return fmt.Errorf("failed to insert forecast points: %w", err)
	}
	return nil
}

// GetGrid loads a stored grid with its points in row-major order
func (r *ForecastRepositoryImpl) GetGrid(ctx context.Context, id core.ForecastID) (*forecast.ForecastGrid, error) {
	var header struct {
		ports.GridHeader
		Seed      int64  `db:"seed"`
		Behaviors []byte `db:"behaviors"`
		Request   []byte `db:"request"`
	}
	err := r.db.GetContext(ctx, &header, `
		SELECT id, created_at, equation_version, seed, grid_resolution, time_hours, point_count, behaviors, request
		FROM forecast_grids
		WHERE id = $1`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrGridNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast grid: %w", err)
	}

	grid := &forecast.ForecastGrid{
		ID:              header.ID,
		CreatedAt:       header.CreatedAt,
		EquationVersion: header.EquationVersion,
		Seed:            header.Seed,
	}
	if err := json.Unmarshal(header.Behaviors, &grid.Behaviors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal behaviors: %w", err)
	}
	if err := json.Unmarshal(header.Request, &grid.Request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}

	rows, err := r.db.QueryxContext(ctx, `
		SELECT latitude, longitude, behaviors
		FROM forecast_points
		WHERE grid_id = $1
		ORDER BY idx`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast points: %w", err)
	}
	defer rows.Close()

	grid.Points = make([]forecast.ForecastPoint, 0, header.PointCount)
	for rows.Next() {
		var point forecast.ForecastPoint
		var behaviorsJSON []byte
		if err := rows.Scan(&point.Latitude, &point.Longitude, &behaviorsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan forecast point: %w", err)
		}
		if err := json.Unmarshal(behaviorsJSON, &point.Behaviors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal point behaviors: %w", err)
		}
		grid.Points = append(grid.Points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return grid, nil
}

// ListGrids returns the most recent grid headers, newest first
func (r *ForecastRepositoryImpl) ListGrids(ctx context.Context, limit int) ([]ports.GridHeader, error) {
	if limit <= 0 {
		limit = 50
	}
	var headers []ports.GridHeader
	err := r.db.SelectContext(ctx, &headers, `
		SELECT id, created_at, equation_version, grid_resolution, time_hours, point_count
		FROM forecast_grids
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list forecast grids: %w", err)
	}
	return headers, nil
}

// SavePrediction records one live query result
func (r *ForecastRepositoryImpl) SavePrediction(ctx context.Context, prediction *ports.LivePrediction) error {
	summariesJSON, err := json.Marshal(prediction.Summaries)
	if err != nil {
		return fmt.Errorf("failed to marshal summaries: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO live_predictions (id, latitude, longitude, requested_at, equation_version, summaries)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		prediction.ID.String(), prediction.Latitude, prediction.Longitude,
		prediction.RequestedAt, prediction.EquationVersion.String(), summariesJSON)
	return err
}
