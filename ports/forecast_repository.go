package ports

import (
	"context"
	"time"

	"orcacast/domain/core"
	"orcacast/domain/forecast"
)

// LivePrediction is a persisted single-point query result
type LivePrediction struct {
	ID              core.ID                              `json:"id"`
	Latitude        float64                              `json:"latitude"`
	Longitude       float64                              `json:"longitude"`
	RequestedAt     time.Time                            `json:"requested_at"`
	EquationVersion core.EquationSetHash                 `json:"equation_version"`
	Summaries       map[string]forecast.PosteriorSummary `json:"summaries"`
}

// ForecastRepository is the persistence sink for forecast output
type ForecastRepository interface {
	SaveGrid(ctx context.Context, grid *forecast.ForecastGrid) error
	GetGrid(ctx context.Context, id core.ForecastID) (*forecast.ForecastGrid, error)
	ListGrids(ctx context.Context, limit int) ([]GridHeader, error)
	SavePrediction(ctx context.Context, prediction *LivePrediction) error
}

// GridHeader is the listing view of a stored grid
type GridHeader struct {
	ID              core.ForecastID      `json:"id" db:"id"`
	CreatedAt       time.Time            `json:"created_at" db:"created_at"`
	EquationVersion core.EquationSetHash `json:"equation_version" db:"equation_version"`
	GridResolution  int                  `json:"grid_resolution" db:"grid_resolution"`
	TimeHours       int                  `json:"time_hours" db:"time_hours"`
	PointCount      int                  `json:"point_count" db:"point_count"`
}
