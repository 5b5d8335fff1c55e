package forecast

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"orcacast/domain/behavior"
	"orcacast/domain/core"
	"orcacast/domain/environment"
	"orcacast/domain/forecast"
	"orcacast/internal"
	"orcacast/internal/registry"
	"orcacast/internal/testkit"
	"orcacast/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var gridStart = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func testRegistry(t *testing.T, equations ...behavior.Equation) *registry.Registry {
	t.Helper()
	if len(equations) == 0 {
		equations = testkit.CanonicalEquations()
	}
	reg := registry.New(internal.NewNopLogger())
	require.NoError(t, reg.LoadEquations("memory", equations))
	return reg
}

func testGenerator(t *testing.T, reg *registry.Registry, samples int, spatial ports.SpatialModel, temporal ports.TemporalModel, opts ...GridOption) *GridGenerator {
	t.Helper()
	sampler, err := NewSampler(samples, 0.9)
	require.NoError(t, err)
	opts = append([]GridOption{
		WithWorkers(4),
		WithSeed(7),
		WithLogger(internal.NewNopLogger()),
		WithClock(testkit.FixedClock(gridStart)),
	}, opts...)
	return NewGridGenerator(reg, NewPipeline(sampler, spatial, temporal), testkit.NewRNGAdapter(), opts...)
}

func salishRequest(resolution, hours int) forecast.GridRequest {
	return forecast.GridRequest{
		LatRange:       forecast.Range{Min: 48.0, Max: 49.0},
		LngRange:       forecast.Range{Min: -124.0, Max: -122.5},
		GridResolution: resolution,
		TimeHours:      hours,
		StartTime:      gridStart,
	}
}

func TestGenerateGridShape(t *testing.T) {
	reg := testRegistry(t)
	gen := testGenerator(t, reg, 50, testkit.GradientSpatialModel{LatMin: 48, LatMax: 49}, nil)

	grid, err := gen.Generate(context.Background(), salishRequest(15, 3))
	require.NoError(t, err)

	require.Len(t, grid.Points, 225)
	assert.False(t, grid.ID.IsEmpty())
	assert.Equal(t, []string{testkit.Feeding, testkit.Resting, testkit.Socializing, testkit.Traveling}, grid.Behaviors)
	assert.Equal(t, int64(7), grid.Seed)

	snap, err := reg.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, snap.Version(), grid.EquationVersion)

	// row-major: latitude outer, longitude inner, both ends inclusive
	first, last := grid.Points[0], grid.Points[224]
	assert.Equal(t, 48.0, first.Latitude)
	assert.Equal(t, -124.0, first.Longitude)
	assert.Equal(t, 49.0, last.Latitude)
	assert.Equal(t, -122.5, last.Longitude)
	assert.Equal(t, 48.0, grid.Points[14].Latitude)
	assert.Equal(t, -122.5, grid.Points[14].Longitude)
	assert.Greater(t, grid.Points[15].Latitude, 48.0)
	assert.Equal(t, -124.0, grid.Points[15].Longitude)

	for _, p := range grid.Points {
		require.Len(t, p.Behaviors, 4)
		for label, s := range p.Behaviors {
			assert.Equal(t, 3*50, s.SampleCount, label)
			assert.GreaterOrEqual(t, s.LowerBound, 0.0)
			assert.LessOrEqual(t, s.LowerBound, s.MeanProbability)
			assert.LessOrEqual(t, s.MeanProbability, s.UpperBound)
			assert.LessOrEqual(t, s.UpperBound, 1.0)
		}
	}

	// prey density rises with latitude, so feeding does too
	assert.Greater(t, last.Behaviors[testkit.Feeding].MeanProbability, first.Behaviors[testkit.Feeding].MeanProbability)
}

func TestGenerateDefaultsStartToCurrentHour(t *testing.T) {
	reg := testRegistry(t)
	now := time.Date(2024, 6, 1, 13, 47, 5, 0, time.UTC)
	gen := testGenerator(t, reg, 10, nil, nil, WithClock(testkit.FixedClock(now)))

	req := salishRequest(2, 1)
	req.StartTime = time.Time{}
	grid, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC), grid.Request.StartTime)
}

func TestGenerateIsDeterministicAcrossWorkerCounts(t *testing.T) {
	reg := testRegistry(t)
	spatial := testkit.GradientSpatialModel{LatMin: 48, LatMax: 49}

	serial, err := testGenerator(t, reg, 100, spatial, nil, WithWorkers(1)).Generate(context.Background(), salishRequest(6, 2))
	require.NoError(t, err)
	parallel, err := testGenerator(t, reg, 100, spatial, nil, WithWorkers(16)).Generate(context.Background(), salishRequest(6, 2))
	require.NoError(t, err)

	assert.NotEqual(t, serial.ID, parallel.ID)
	if diff := cmp.Diff(serial.Points, parallel.Points); diff != "" {
		t.Errorf("points differ between worker counts (-serial +parallel):\n%s", diff)
	}

	reseeded, err := testGenerator(t, reg, 100, spatial, nil, WithSeed(8)).Generate(context.Background(), salishRequest(6, 2))
	require.NoError(t, err)
	assert.NotEqual(t, serial.Points[0].Behaviors[testkit.Feeding], reseeded.Points[0].Behaviors[testkit.Feeding])
}

func TestGenerateResolutionOneMatchesLiveQuery(t *testing.T) {
	reg := testRegistry(t)
	pipeline := NewPipeline(mustSampler(t, 5000), nil, nil)
	gen := NewGridGenerator(reg, pipeline, testkit.NewRNGAdapter(), WithLogger(internal.NewNopLogger()))

	grid, err := gen.Generate(context.Background(), salishRequest(1, 1))
	require.NoError(t, err)
	require.Len(t, grid.Points, 1)
	point := grid.Points[0]
	assert.Equal(t, 48.0, point.Latitude)
	assert.Equal(t, -124.0, point.Longitude)

	snap, err := reg.Snapshot()
	require.NoError(t, err)
	live, err := pipeline.PredictAll(snap, environment.Context{}, rand.New(rand.NewPCG(99, 1)))
	require.NoError(t, err)

	for label, s := range live {
		assert.InDelta(t, s.Mean, point.Behaviors[label].MeanProbability, 0.02, label)
	}
	// no uncertainty means no sampling noise either
	assert.Equal(t, live[testkit.Resting].Mean, point.Behaviors[testkit.Resting].MeanProbability)
	assert.InDelta(t, 0.5498, point.Behaviors[testkit.Feeding].MeanProbability, 0.02)
}

func TestGenerateRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*forecast.GridRequest)
		want   error
	}{
		{"zero resolution", func(r *forecast.GridRequest) { r.GridResolution = 0 }, core.ErrInvalidGrid},
		{"zero hours", func(r *forecast.GridRequest) { r.TimeHours = 0 }, core.ErrInvalidGrid},
		{"empty lat range", func(r *forecast.GridRequest) { r.LatRange.Max = r.LatRange.Min }, core.ErrInvalidGrid},
		{"inverted lng range", func(r *forecast.GridRequest) { r.LngRange = forecast.Range{Min: -122, Max: -124} }, core.ErrInvalidGrid},
		{"latitude out of bounds", func(r *forecast.GridRequest) { r.LatRange.Max = 91 }, core.ErrInvalidGrid},
		{"resolution above cap", func(r *forecast.GridRequest) { r.GridResolution = 1 << 20 }, core.ErrInvalidGrid},
		{"hours above cap", func(r *forecast.GridRequest) { r.TimeHours = DefaultMaxTimeHours + 1 }, core.ErrInvalidGrid},
		{"unknown covariate", func(r *forecast.GridRequest) { r.BaseEnvironment = environment.Context{"wind": 2} }, core.ErrUnknownCovariate},
	}

	reg := testRegistry(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := testkit.NewRNGAdapter()
			gen := NewGridGenerator(reg, NewPipeline(mustSampler(t, 10), nil, nil), rng, WithLogger(internal.NewNopLogger()))
			req := salishRequest(3, 2)
			tt.mutate(&req)

			grid, err := gen.Generate(context.Background(), req)
			assert.Nil(t, grid)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Zero(t, rng.Calls(), "no cell runs for a rejected request")
		})
	}
}

func TestGenerateConfiguredLimits(t *testing.T) {
	reg := testRegistry(t)
	rng := testkit.NewRNGAdapter()
	gen := NewGridGenerator(reg, NewPipeline(mustSampler(t, 10), nil, nil), rng,
		WithLogger(internal.NewNopLogger()), WithLimits(4, 6))

	grid, err := gen.Generate(context.Background(), salishRequest(4, 6))
	require.NoError(t, err)
	assert.Len(t, grid.Points, 16)

	_, err = gen.Generate(context.Background(), salishRequest(5, 1))
	assert.True(t, errors.Is(err, core.ErrInvalidGrid))
	assert.Contains(t, err.Error(), "grid_resolution")

	_, err = gen.Generate(context.Background(), salishRequest(2, 7))
	assert.True(t, errors.Is(err, core.ErrInvalidGrid))
	assert.Contains(t, err.Error(), "time_hours")
}

func TestGenerateWithoutEquations(t *testing.T) {
	gen := testGenerator(t, registry.New(internal.NewNopLogger()), 10, nil, nil)
	_, err := gen.Generate(context.Background(), salishRequest(2, 1))
	assert.True(t, errors.Is(err, core.ErrNotLoaded))
}

func TestGenerateFailingCellFailsGrid(t *testing.T) {
	reg := testRegistry(t)
	gen := testGenerator(t, reg, 10, testkit.FixedSpatialModel{Err: errors.New("bathymetry tile missing")}, nil)

	grid, err := gen.Generate(context.Background(), salishRequest(4, 1))
	assert.Nil(t, grid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bathymetry tile missing")
}

func TestGenerateMissingCovariate(t *testing.T) {
	sst := behavior.Equation{
		Label:        "feeding",
		KeyFactors:   []string{environment.SSTAnomaly},
		Coefficients: map[string]float64{environment.SSTAnomaly: -0.5},
	}
	reg := testRegistry(t, sst)
	gen := testGenerator(t, reg, 10, nil, nil)

	_, err := gen.Generate(context.Background(), salishRequest(2, 1))
	assert.True(t, errors.Is(err, core.ErrMissingCovariate), "got %v", err)

	req := salishRequest(2, 1)
	req.BaseEnvironment = environment.Context{environment.SSTAnomaly: 1.2}
	grid, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, grid.Points, 4)
}

func TestGenerateEnvironmentPrecedence(t *testing.T) {
	exact := behavior.Equation{
		Label:        "feeding",
		KeyFactors:   []string{environment.PreyDensity, environment.Daylight},
		Coefficients: map[string]float64{environment.PreyDensity: 2, environment.Daylight: 1},
		Intercept:    -1,
	}
	reg := testRegistry(t, exact)
	gen := testGenerator(t, reg, 10,
		testkit.FixedSpatialModel{Overrides: environment.Context{environment.PreyDensity: 0.9, environment.Daylight: 1}},
		testkit.FixedTemporalModel{Overrides: environment.Context{environment.Daylight: 0}},
	)

	req := salishRequest(2, 1)
	req.BaseEnvironment = environment.Context{environment.PreyDensity: 0.1, environment.Daylight: 0.5}
	grid, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)

	// spatial beats the caller, temporal beats spatial: -1 + 2*0.9 + 0
	want := Logistic(-1 + 2*0.9)
	for _, p := range grid.Points {
		assert.Equal(t, want, p.Behaviors["feeding"].MeanProbability)
		assert.Equal(t, 0.0, p.Behaviors["feeding"].Width())
	}
	assert.Equal(t, 0.1, req.BaseEnvironment[environment.PreyDensity], "request environment is not mutated")
}

func TestGenerateHonoursCancellation(t *testing.T) {
	reg := testRegistry(t)

	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		grid, err := testGenerator(t, reg, 10, nil, nil).Generate(ctx, salishRequest(5, 1))
		assert.Nil(t, grid)
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	})

	t.Run("mid grid", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		spatial := &cancellingSpatialModel{after: 10, cancel: cancel}

		grid, err := testGenerator(t, reg, 10, spatial, nil, WithWorkers(2)).Generate(ctx, salishRequest(15, 4))
		assert.Nil(t, grid)
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
		assert.Less(t, spatial.calls.Load(), int64(225))
	})
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, Linspace(0, 1, 5))
	assert.Equal(t, []float64{-3}, Linspace(-3, 7, 1))
	assert.Nil(t, Linspace(0, 1, 0))

	values := Linspace(48.1, 48.9, 15)
	assert.Equal(t, 48.1, values[0])
	assert.Equal(t, 48.9, values[14])
	assert.IsIncreasing(t, values)
}

func mustSampler(t *testing.T, n int) *Sampler {
	t.Helper()
	s, err := NewSampler(n, 0.9)
	require.NoError(t, err)
	return s
}

// cancellingSpatialModel cancels the request after a number of cells have been visited
type cancellingSpatialModel struct {
	after  int64
	cancel context.CancelFunc
	calls  atomic.Int64
}

func (m *cancellingSpatialModel) Covariates(latitude, longitude float64) (environment.Context, error) {
	if m.calls.Add(1) == m.after {
		m.cancel()
	}
	return environment.Context{}, nil
}
