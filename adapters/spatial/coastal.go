package spatial

import (
	"math"

	"orcacast/domain/environment"
	"orcacast/ports"
)

// CoastalModel derives distance and depth covariates from fixed reference geometry:
// known feeding zones and shoreline nodes.
type CoastalModel struct {
	feedingZones []Point
	shoreline    []Point
	shelfDepth   float64 // asymptotic depth offshore, m
	shelfScale   float64 // e-folding distance of the shelf profile, km
	shoreDepth   float64 // depth at the waterline, m
}

// CoastalOption configures a CoastalModel
type CoastalOption func(*CoastalModel)

// WithShelfProfile overrides the depth profile parameters
func WithShelfProfile(shoreDepth, shelfDepth, scaleKm float64) CoastalOption {
	return func(m *CoastalModel) {
		m.shoreDepth = shoreDepth
		m.shelfDepth = shelfDepth
		if scaleKm > 0 {
			m.shelfScale = scaleKm
		}
	}
}

// NewCoastalModel builds a model over the given feeding zones and shoreline nodes.
// Either set may be empty; the matching covariates are then left to the caller.
func NewCoastalModel(feedingZones, shoreline []Point, opts ...CoastalOption) *CoastalModel {
	m := &CoastalModel{
		feedingZones: append([]Point(nil), feedingZones...),
		shoreline:    append([]Point(nil), shoreline...),
		shelfDepth:   200,
		shelfScale:   4,
		shoreDepth:   2,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ ports.SpatialModel = (*CoastalModel)(nil)

// Covariates returns distance_to_feeding_zone, distance_to_shore and depth overrides
func (m *CoastalModel) Covariates(latitude, longitude float64) (environment.Context, error) {
	out := environment.Context{}
	if len(m.feedingZones) > 0 {
		out[environment.DistanceToFeedingZone] = nearest(latitude, longitude, m.feedingZones)
	}
	if len(m.shoreline) > 0 {
		d := nearest(latitude, longitude, m.shoreline)
		out[environment.DistanceToShore] = d
		out[environment.Depth] = m.depthAt(d)
	}
	return out, nil
}

// depthAt is a saturating shelf profile: shallow at the shore, approaching shelfDepth offshore
func (m *CoastalModel) depthAt(distanceKm float64) float64 {
	return m.shoreDepth + (m.shelfDepth-m.shoreDepth)*(1-math.Exp(-distanceKm/m.shelfScale))
}

// Func adapts a plain function to ports.SpatialModel
type Func func(latitude, longitude float64) (environment.Context, error)

// Covariates calls f
func (f Func) Covariates(latitude, longitude float64) (environment.Context, error) {
	return f(latitude, longitude)
}

// Chain merges several spatial models; later models win on overlapping covariates
type Chain []ports.SpatialModel

// Covariates merges the overrides of every model in order
func (c Chain) Covariates(latitude, longitude float64) (environment.Context, error) {
	out := environment.Context{}
	for _, model := range c {
		if model == nil {
			continue
		}
		overrides, err := model.Covariates(latitude, longitude)
		if err != nil {
			return nil, err
		}
		out = out.Merge(overrides)
	}
	return out, nil
}
