package spatial

import (
	"math"
	"time"

	"orcacast/domain/environment"
	"orcacast/ports"
)

// M2 is the principal lunar semi-diurnal tidal period
const M2 = 12*time.Hour + 25*time.Minute + 12*time.Second

// DielTidalModel derives hour-varying covariates: local hour of day, day of year,
// daylight and a semi-diurnal tidal flow. It is deterministic in its input instant.
type DielTidalModel struct {
	location    *time.Location
	tidalEpoch  time.Time
	tidalPeriod time.Duration
}

// NewDielTidalModel creates a model in the given local time zone. tidalEpoch is a
// reference high water; flow is zero at high and low water and peaks mid-flood.
func NewDielTidalModel(location *time.Location, tidalEpoch time.Time) *DielTidalModel {
	if location == nil {
		location = time.UTC
	}
	return &DielTidalModel{location: location, tidalEpoch: tidalEpoch, tidalPeriod: M2}
}

var _ ports.TemporalModel = (*DielTidalModel)(nil)

// Covariates returns hour_of_day, day_of_year, daylight and tidal_flow for at
func (m *DielTidalModel) Covariates(at time.Time) environment.Context {
	local := at.In(m.location)
	hour := float64(local.Hour()) + float64(local.Minute())/60

	phase := 2 * math.Pi * float64(at.Sub(m.tidalEpoch)) / float64(m.tidalPeriod)
	// height ~ cos(phase); flow follows its derivative, positive while flooding
	flow := -math.Sin(phase)

	daylight := math.Max(0, math.Cos(2*math.Pi*(hour-12)/24))

	return environment.Context{
		environment.HourOfDay: float64(local.Hour()),
		environment.DayOfYear: float64(local.YearDay()),
		environment.Daylight:  daylight,
		environment.TidalFlow: flow,
	}
}
