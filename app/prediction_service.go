package app

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"orcacast/domain/core"
	"orcacast/domain/environment"
	"orcacast/domain/forecast"
	"orcacast/internal"
	pipeline "orcacast/internal/forecast"
	"orcacast/internal/registry"
	"orcacast/ports"
)

const liveStage = "live"

// PredictionService answers single-point queries on the same evaluate-then-sample path a
// grid cell uses, without building a grid.
type PredictionService struct {
	registry *registry.Registry
	pipeline *pipeline.Pipeline
	rngPort  ports.RNGPort
	repo     ports.ForecastRepository
	seed     int64
	persist  bool
	logger   *internal.Logger
	now      func() time.Time

	queries atomic.Uint64
}

// PredictRequest is a live query. A zero At means the current hour.
type PredictRequest struct {
	Latitude    float64             `json:"latitude"`
	Longitude   float64             `json:"longitude"`
	Environment environment.Context `json:"environment,omitempty"`
	At          time.Time           `json:"at,omitempty"`
}

// Explanation is the deterministic part of a live query: the merged environment and the
// raw activation of every behavior before sampling.
type Explanation struct {
	Environment     environment.Context                `json:"environment"`
	Activations     map[string]forecast.RawActivation `json:"activations"`
	EquationVersion core.EquationSetHash               `json:"equation_version"`
}

// PredictionOption configures a PredictionService
type PredictionOption func(*PredictionService)

// WithPredictionRepository records every live query in repo
func WithPredictionRepository(repo ports.ForecastRepository) PredictionOption {
	return func(s *PredictionService) {
		s.repo = repo
		s.persist = repo != nil
	}
}

// WithPredictionSeed sets the base seed of the live RNG streams
func WithPredictionSeed(seed int64) PredictionOption {
	return func(s *PredictionService) { s.seed = seed }
}

// WithPredictionLogger overrides the default logger
func WithPredictionLogger(logger *internal.Logger) PredictionOption {
	return func(s *PredictionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPredictionClock sets the clock used to pick the query hour
func WithPredictionClock(now func() time.Time) PredictionOption {
	return func(s *PredictionService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPredictionService creates a live prediction service
func NewPredictionService(reg *registry.Registry, p *pipeline.Pipeline, rngPort ports.RNGPort, opts ...PredictionOption) *PredictionService {
	s := &PredictionService{
		registry: reg,
		pipeline: p,
		rngPort:  rngPort,
		seed:     42,
		logger:   internal.DefaultLogger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict returns one posterior summary per registered behavior at (latitude, longitude)
func (s *PredictionService) Predict(ctx context.Context, latitude, longitude float64, env environment.Context) (map[string]forecast.PosteriorSummary, error) {
	result, err := s.Query(ctx, PredictRequest{Latitude: latitude, Longitude: longitude, Environment: env})
	if err != nil {
		return nil, err
	}
	return result.Summaries, nil
}

// Query runs a live prediction and, when a repository is configured, records it
func (s *PredictionService) Query(ctx context.Context, req PredictRequest) (*ports.LivePrediction, error) {
	snap, env, at, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	rng, err := s.stream(ctx, snap)
	if err != nil {
		return nil, err
	}

	summaries, err := s.pipeline.PredictAll(snap, env, rng)
	if err != nil {
		return nil, err
	}

	result := &ports.LivePrediction{
		ID:              core.NewID(),
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		RequestedAt:     at,
		EquationVersion: snap.Version(),
		Summaries:       summaries,
	}

	if s.persist {
		if err := s.repo.SavePrediction(ctx, result); err != nil {
			// a failed audit write never fails the query
			s.logger.Warn("Failed to record live prediction %s: %v", result.ID, err)
		}
	}
	s.logger.Debug("Live prediction at (%.5f, %.5f) for %d behaviors", req.Latitude, req.Longitude, len(summaries))
	return result, nil
}

// PredictBehavior returns the posterior summary of a single behavior
func (s *PredictionService) PredictBehavior(ctx context.Context, label string, req PredictRequest) (forecast.PosteriorSummary, error) {
	snap, env, _, err := s.prepare(req)
	if err != nil {
		return forecast.PosteriorSummary{}, err
	}
	rng, err := s.stream(ctx, snap)
	if err != nil {
		return forecast.PosteriorSummary{}, err
	}
	return s.pipeline.PredictBehavior(snap, label, env, rng)
}

// Explain evaluates every behavior without sampling
func (s *PredictionService) Explain(ctx context.Context, req PredictRequest) (*Explanation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, env, _, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	activations, err := s.pipeline.Activations(snap, env)
	if err != nil {
		return nil, err
	}
	return &Explanation{
		Environment:     env,
		Activations:     activations,
		EquationVersion: snap.Version(),
	}, nil
}

// prepare validates the request and builds the environment with grid-cell precedence
func (s *PredictionService) prepare(req PredictRequest) (*registry.Snapshot, environment.Context, time.Time, error) {
	if !validCoordinate(req.Latitude, req.Longitude) {
		return nil, nil, time.Time{}, core.NewInvalidCoordinateError(req.Latitude, req.Longitude)
	}
	if err := req.Environment.Validate(); err != nil {
		return nil, nil, time.Time{}, err
	}
	snap, err := s.registry.Snapshot()
	if err != nil {
		return nil, nil, time.Time{}, err
	}

	at := req.At
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC().Truncate(time.Hour)

	location, err := s.pipeline.LocationEnvironment(req.Environment, req.Latitude, req.Longitude)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	return snap, s.pipeline.SliceEnvironment(location, at), at, nil
}

// stream hands every query its own RNG stream keyed by a per-service counter
func (s *PredictionService) stream(ctx context.Context, snap *registry.Snapshot) (*rand.Rand, error) {
	n := s.queries.Add(1)
	rng, err := s.rngPort.Stream(ctx, snap.Version().String(), liveStage, fmt.Sprintf("query:%d", n), s.seed)
	if err != nil {
		return nil, fmt.Errorf("rng stream for live query %d: %w", n, err)
	}
	return rng, nil
}

func validCoordinate(latitude, longitude float64) bool {
	if math.IsNaN(latitude) || math.IsNaN(longitude) {
		return false
	}
	return latitude >= -90 && latitude <= 90 && longitude >= -180 && longitude <= 180
}
