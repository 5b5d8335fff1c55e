package testkit

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"orcacast/domain/behavior"
	"orcacast/domain/core"
	"orcacast/domain/environment"
	"orcacast/domain/forecast"
	"orcacast/ports"
)

// Canonical behavior labels used across tests
const (
	Feeding     = "feeding"
	Traveling   = "traveling"
	Socializing = "socializing"
	Resting     = "resting"
)

// CanonicalEquations returns a fresh copy of the reference equation set. Feeding is the
// worked example: -1 + 2*prey_density, which is 0.2 at the default prey density of 0.6.
func CanonicalEquations() []behavior.Equation {
	return []behavior.Equation{
		{
			Label:            Feeding,
			KeyFactors:       []string{environment.PreyDensity},
			Coefficients:     map[string]float64{environment.PreyDensity: 2},
			Intercept:        -1,
			UncertaintyScale: 0.5,
		},
		{
			Label:            Traveling,
			KeyFactors:       []string{environment.CurrentSpeed, environment.Depth},
			Coefficients:     map[string]float64{environment.CurrentSpeed: 0.8, environment.Depth: -0.01},
			Intercept:        0.1,
			UncertaintyScale: 0.3,
		},
		{
			Label:            Socializing,
			KeyFactors:       []string{environment.PodSize},
			Coefficients:     map[string]float64{environment.PodSize: 0.15},
			Intercept:        -1.2,
			UncertaintyScale: 0.4,
		},
		{
			Label:            Resting,
			KeyFactors:       []string{environment.Daylight},
			Coefficients:     map[string]float64{environment.Daylight: -1.5},
			Intercept:        0.5,
			UncertaintyScale: 0,
		},
	}
}

// EquationByLabel picks one equation out of a set
func EquationByLabel(equations []behavior.Equation, label string) behavior.Equation {
	for _, eq := range equations {
		if eq.Label == label {
			return eq
		}
	}
	return behavior.Equation{}
}

// RNGAdapter implements the RNGPort interface for testing. Streams depend only on their
// arguments; Calls counts how many streams were handed out.
type RNGAdapter struct {
	calls atomic.Int64
}

// NewRNGAdapter creates a deterministic test RNG
func NewRNGAdapter() *RNGAdapter {
	return &RNGAdapter{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (r *RNGAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	r.calls.Add(1)
	return rand.New(rand.NewPCG(uint64(seed), uint64(hashString(name)))), nil
}

// Stream creates a deterministic RNG stream for a specific run/stage/key
func (r *RNGAdapter) Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.calls.Add(1)
	seed := uint64(hashString(runID))<<32 | uint64(hashString(stageName+"/"+key))
	return rand.New(rand.NewPCG(uint64(baseSeed), seed)), nil
}

// Calls returns the number of streams created so far
func (r *RNGAdapter) Calls() int64 {
	return r.calls.Load()
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}

// InMemoryEquationSource serves a fixed equation list, or a fixed error
type InMemoryEquationSource struct {
	Name      string
	Equations []behavior.Equation
	Err       error

	mu      sync.Mutex
	fetches int
}

// NewInMemoryEquationSource creates a source over equations
func NewInMemoryEquationSource(equations ...behavior.Equation) *InMemoryEquationSource {
	return &InMemoryEquationSource{Name: "memory", Equations: equations}
}

// FetchEquations returns copies so callers cannot mutate the fixture
func (s *InMemoryEquationSource) FetchEquations(ctx context.Context) ([]behavior.Equation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]behavior.Equation, len(s.Equations))
	for i, eq := range s.Equations {
		out[i] = eq.Clone()
	}
	return out, nil
}

// Describe names the source
func (s *InMemoryEquationSource) Describe() string {
	if s.Name == "" {
		return "memory"
	}
	return s.Name
}

// Fetches returns how many times the source was read
func (s *InMemoryEquationSource) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// InMemoryForecastRepository implements ForecastRepository for testing
type InMemoryForecastRepository struct {
	mu          sync.RWMutex
	grids       map[core.ForecastID]*forecast.ForecastGrid
	predictions []*ports.LivePrediction
	SaveErr     error
}

// NewInMemoryForecastRepository creates an empty repository
func NewInMemoryForecastRepository() *InMemoryForecastRepository {
	return &InMemoryForecastRepository{grids: make(map[core.ForecastID]*forecast.ForecastGrid)}
}

// SaveGrid stores the grid
func (r *InMemoryForecastRepository) SaveGrid(ctx context.Context, grid *forecast.ForecastGrid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.grids[grid.ID] = grid
	return nil
}

// GetGrid retrieves a stored grid
func (r *InMemoryForecastRepository) GetGrid(ctx context.Context, id core.ForecastID) (*forecast.ForecastGrid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	grid, ok := r.grids[id]
	if !ok {
		return nil, core.NewNotFoundError("forecast grid", id.String())
	}
	return grid, nil
}

// ListGrids returns headers newest first
func (r *InMemoryForecastRepository) ListGrids(ctx context.Context, limit int) ([]ports.GridHeader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	headers := make([]ports.GridHeader, 0, len(r.grids))
	for _, g := range r.grids {
		headers = append(headers, ports.GridHeader{
			ID:              g.ID,
			CreatedAt:       g.CreatedAt,
			EquationVersion: g.EquationVersion,
			GridResolution:  g.Request.GridResolution,
			TimeHours:       g.Request.TimeHours,
			PointCount:      len(g.Points),
		})
	}
	sort.Slice(headers, func(i, j int) bool {
		return headers[i].CreatedAt.After(headers[j].CreatedAt)
	})
	if limit > 0 && len(headers) > limit {
		headers = headers[:limit]
	}
	return headers, nil
}

// SavePrediction records a live prediction
func (r *InMemoryForecastRepository) SavePrediction(ctx context.Context, prediction *ports.LivePrediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.predictions = append(r.predictions, prediction)
	return nil
}

// Predictions returns the recorded live predictions
func (r *InMemoryForecastRepository) Predictions() []*ports.LivePrediction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*ports.LivePrediction(nil), r.predictions...)
}

// FixedSpatialModel returns the same overrides everywhere, or Err
type FixedSpatialModel struct {
	Overrides environment.Context
	Err       error
}

// Covariates implements ports.SpatialModel
func (m FixedSpatialModel) Covariates(latitude, longitude float64) (environment.Context, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Overrides.Clone(), nil
}

// GradientSpatialModel sets prey_density to rise linearly with latitude across
// [LatMin, LatMax], so grid cells differ from each other.
type GradientSpatialModel struct {
	LatMin, LatMax float64
}

// Covariates implements ports.SpatialModel
func (m GradientSpatialModel) Covariates(latitude, longitude float64) (environment.Context, error) {
	t := (latitude - m.LatMin) / (m.LatMax - m.LatMin)
	return environment.Context{environment.PreyDensity: min(max(t, 0), 1)}, nil
}

// FixedTemporalModel returns the same overrides at every instant
type FixedTemporalModel struct {
	Overrides environment.Context
}

// Covariates implements ports.TemporalModel
func (m FixedTemporalModel) Covariates(at time.Time) environment.Context {
	return m.Overrides.Clone()
}

// FixedClock returns a clock pinned to t
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
