package ports

import (
	"time"

	"orcacast/domain/environment"
)

// SpatialModel maps a location to spatial covariate overrides (depth, distance to shore, ...)
type SpatialModel interface {
	Covariates(latitude, longitude float64) (environment.Context, error)
}

// TemporalModel maps a forecast instant to time-varying covariate overrides (tide, daylight, ...)
type TemporalModel interface {
	Covariates(at time.Time) environment.Context
}
