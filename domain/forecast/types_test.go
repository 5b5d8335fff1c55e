package forecast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"orcacast/domain/core"
	"orcacast/domain/environment"
)

func validRequest() GridRequest {
	return GridRequest{
		LatRange:       Range{Min: 48, Max: 49},
		LngRange:       Range{Min: -124, Max: -123},
		GridResolution: 15,
		TimeHours:      24,
	}
}

func TestGridRequestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GridRequest)
		want   error
	}{
		{"valid", func(r *GridRequest) {}, nil},
		{"resolution one", func(r *GridRequest) { r.GridResolution = 1 }, nil},
		{"negative resolution", func(r *GridRequest) { r.GridResolution = -1 }, core.ErrInvalidGrid},
		{"zero hours", func(r *GridRequest) { r.TimeHours = 0 }, core.ErrInvalidGrid},
		{"degenerate lng", func(r *GridRequest) { r.LngRange.Min = r.LngRange.Max }, core.ErrInvalidGrid},
		{"longitude out of range", func(r *GridRequest) { r.LngRange.Min = -200 }, core.ErrInvalidGrid},
		{"bad environment", func(r *GridRequest) { r.BaseEnvironment = environment.Context{"wind": 1} }, core.ErrUnknownCovariate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestHotspots(t *testing.T) {
	grid := &ForecastGrid{Points: []ForecastPoint{
		{Latitude: 1, Behaviors: map[string]BehaviorSummary{"feeding": {MeanProbability: 0.3}}},
		{Latitude: 2, Behaviors: map[string]BehaviorSummary{"feeding": {MeanProbability: 0.9}}},
		{Latitude: 3, Behaviors: map[string]BehaviorSummary{"feeding": {MeanProbability: 0.3}}},
		{Latitude: 4, Behaviors: map[string]BehaviorSummary{"resting": {MeanProbability: 1}}},
	}}

	top := grid.Hotspots("feeding", 2)
	assert.Equal(t, []Hotspot{{Latitude: 2, MeanProbability: 0.9}, {Latitude: 1, MeanProbability: 0.3}}, top)
	assert.Len(t, grid.Hotspots("feeding", 10), 3)
	assert.Empty(t, grid.Hotspots("breaching", 3))
	assert.Equal(t, []float64{0.3, 0.9, 0.3}, grid.Means("feeding"))
}

func TestBehaviorSummaryWidth(t *testing.T) {
	assert.InDelta(t, 0.25, BehaviorSummary{LowerBound: 0.5, UpperBound: 0.75}.Width(), 1e-15)
}
