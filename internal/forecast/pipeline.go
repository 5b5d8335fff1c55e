package forecast

import (
	"fmt"
	"math/rand/v2"
	"time"

	"orcacast/domain/environment"
	"orcacast/domain/forecast"
	"orcacast/internal/registry"
	"orcacast/ports"
)

// Pipeline is the evaluate-then-sample path shared by grid cells and live queries.
// Environment precedence, lowest first: covariate defaults, caller environment,
// spatial overrides for the location, temporal overrides for the instant.
type Pipeline struct {
	sampler  *Sampler
	spatial  ports.SpatialModel
	temporal ports.TemporalModel
}

// NewPipeline wires a sampler with optional spatial and temporal covariate models
func NewPipeline(sampler *Sampler, spatial ports.SpatialModel, temporal ports.TemporalModel) *Pipeline {
	if sampler == nil {
		sampler = DefaultSampler()
	}
	return &Pipeline{sampler: sampler, spatial: spatial, temporal: temporal}
}

// Sampler returns the sampler in use
func (p *Pipeline) Sampler() *Sampler { return p.sampler }

// LocationEnvironment layers base over the covariate defaults, then applies the spatial
// overrides for (lat, lng)
func (p *Pipeline) LocationEnvironment(base environment.Context, latitude, longitude float64) (environment.Context, error) {
	layered := environment.Defaults().Merge(base)
	if p.spatial == nil {
		return layered, nil
	}
	overrides, err := p.spatial.Covariates(latitude, longitude)
	if err != nil {
		return nil, fmt.Errorf("spatial covariates at (%.5f, %.5f): %w", latitude, longitude, err)
	}
	return layered.Merge(overrides), nil
}

// SliceEnvironment merges the temporal overrides for one instant onto a location environment
func (p *Pipeline) SliceEnvironment(location environment.Context, at time.Time) environment.Context {
	if p.temporal == nil {
		return location
	}
	return location.Merge(p.temporal.Covariates(at))
}

// Activations evaluates every registered behavior without sampling
func (p *Pipeline) Activations(snap *registry.Snapshot, env environment.Context) (map[string]forecast.RawActivation, error) {
	out := make(map[string]forecast.RawActivation, snap.Len())
	for _, label := range snap.Behaviors() {
		eq, err := snap.Equation(label)
		if err != nil {
			return nil, err
		}
		raw, err := Evaluate(eq, env)
		if err != nil {
			return nil, err
		}
		out[label] = raw
	}
	return out, nil
}

// PredictBehavior evaluates and samples a single behavior
func (p *Pipeline) PredictBehavior(snap *registry.Snapshot, label string, env environment.Context, rng *rand.Rand) (forecast.PosteriorSummary, error) {
	eq, err := snap.Equation(label)
	if err != nil {
		return forecast.PosteriorSummary{}, err
	}
	raw, err := Evaluate(eq, env)
	if err != nil {
		return forecast.PosteriorSummary{}, err
	}
	return p.sampler.Sample(rng, raw, eq.UncertaintyScale)
}

// PredictAll evaluates and samples every registered behavior. Behaviors are visited in
// sorted order so a given rng state always produces the same result map.
func (p *Pipeline) PredictAll(snap *registry.Snapshot, env environment.Context, rng *rand.Rand) (map[string]forecast.PosteriorSummary, error) {
	out := make(map[string]forecast.PosteriorSummary, snap.Len())
	for _, label := range snap.Behaviors() {
		summary, err := p.PredictBehavior(snap, label, env, rng)
		if err != nil {
			return nil, err
		}
		out[label] = summary
	}
	return out, nil
}
