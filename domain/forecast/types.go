package forecast

import (
	"sort"
	"time"

	"orcacast/domain/core"
	"orcacast/domain/environment"
)

// RawActivation is the unbounded score of one behavior equation for one context
type RawActivation struct {
	Behavior            string             `json:"behavior_label"`
	Value               float64            `json:"value"`
	ContributingFactors map[string]float64 `json:"contributing_factors"`
}

// PosteriorSummary condenses a population of posterior probability samples
type PosteriorSummary struct {
	Mean        float64 `json:"mean"`
	Lower       float64 `json:"lower"`
	Upper       float64 `json:"upper"`
	Width       float64 `json:"width"`
	SampleCount int     `json:"sample_count"`
	Level       float64 `json:"credible_level"`
}

// BehaviorSummary is the per-behavior entry of a ForecastPoint
type BehaviorSummary struct {
	MeanProbability float64 `json:"mean_probability"`
	LowerBound      float64 `json:"lower_bound"`
	UpperBound      float64 `json:"upper_bound"`
	SampleCount     int     `json:"sample_count"`
}

// Width returns the credible band width
func (s BehaviorSummary) Width() float64 {
	return s.UpperBound - s.LowerBound
}

// ForecastPoint is one grid cell aggregated across the forecast horizon
type ForecastPoint struct {
	Latitude  float64                    `json:"latitude"`
	Longitude float64                    `json:"longitude"`
	Behaviors map[string]BehaviorSummary `json:"behaviors"`
}

// Range is a closed coordinate interval
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// GridRequest describes one grid generation
type GridRequest struct {
	LatRange        Range               `json:"lat_range"`
	LngRange        Range               `json:"lng_range"`
	BaseEnvironment environment.Context `json:"base_environment,omitempty"`
	GridResolution  int                 `json:"grid_resolution"`
	TimeHours       int                 `json:"time_hours"`
	StartTime       time.Time           `json:"start_time"`
}

// Validate enforces the grid preconditions before any computation starts
func (r GridRequest) Validate() error {
	if r.GridResolution < 1 {
		return core.NewInvalidGridError("grid_resolution", "must be >= 1")
	}
	if r.TimeHours < 1 {
		return core.NewInvalidGridError("time_hours", "must be >= 1")
	}
	if !(r.LatRange.Min < r.LatRange.Max) {
		return core.NewInvalidGridError("lat_range", "min must be < max")
	}
	if !(r.LngRange.Min < r.LngRange.Max) {
		return core.NewInvalidGridError("lng_range", "min must be < max")
	}
	if r.LatRange.Min < -90 || r.LatRange.Max > 90 {
		return core.NewInvalidGridError("lat_range", "must lie within [-90, 90]")
	}
	if r.LngRange.Min < -180 || r.LngRange.Max > 180 {
		return core.NewInvalidGridError("lng_range", "must lie within [-180, 180]")
	}
	return r.BaseEnvironment.Validate()
}

// ForecastGrid is an immutable set of forecast points covering a rectangle
type ForecastGrid struct {
	ID              core.ForecastID      `json:"id"`
	CreatedAt       time.Time            `json:"created_at"`
	Request         GridRequest          `json:"request"`
	EquationVersion core.EquationSetHash `json:"equation_version"`
	Seed            int64                `json:"seed"`
	Behaviors       []string             `json:"behaviors"`
	Points          []ForecastPoint      `json:"points"`
}

// Hotspot is a cell ranked by mean probability for one behavior
type Hotspot struct {
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	MeanProbability float64 `json:"mean_probability"`
}

// Hotspots returns the k cells with the highest mean probability for a behavior
func (g *ForecastGrid) Hotspots(behavior string, k int) []Hotspot {
	spots := make([]Hotspot, 0, len(g.Points))
	for _, p := range g.Points {
		s, ok := p.Behaviors[behavior]
		if !ok {
			continue
		}
		spots = append(spots, Hotspot{Latitude: p.Latitude, Longitude: p.Longitude, MeanProbability: s.MeanProbability})
	}
	sort.SliceStable(spots, func(i, j int) bool {
		return spots[i].MeanProbability > spots[j].MeanProbability
	})
	if k >= 0 && k < len(spots) {
		spots = spots[:k]
	}
	return spots
}

// Means returns the per-cell mean probabilities of a behavior in grid order
func (g *ForecastGrid) Means(behavior string) []float64 {
	means := make([]float64, 0, len(g.Points))
	for _, p := range g.Points {
		if s, ok := p.Behaviors[behavior]; ok {
			means = append(means, s.MeanProbability)
		}
	}
	return means
}
