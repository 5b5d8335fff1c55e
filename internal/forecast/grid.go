package forecast

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"orcacast/domain/core"
	"orcacast/domain/forecast"
	"orcacast/internal"
	"orcacast/internal/registry"
	"orcacast/ports"
)

const gridStage = "grid"

// GridGenerator evaluates the pipeline over every cell of a lat/lon mesh. Cells are
// independent: each reads the shared snapshot and writes only its own slot of the
// output, so they run on a bounded worker pool without locking.
type GridGenerator struct {
	registry *registry.Registry
	pipeline *Pipeline
	rng      ports.RNGPort
	workers  int
	maxRes   int
	maxHours int
	seed     int64
	logger   *internal.Logger
	now      func() time.Time
}

// Request limits used when WithLimits is not given
const (
	DefaultMaxResolution = 200
	DefaultMaxTimeHours  = 168
)

// GridOption configures a GridGenerator
type GridOption func(*GridGenerator)

// WithWorkers bounds the number of cells evaluated concurrently
func WithWorkers(n int) GridOption {
	return func(g *GridGenerator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithLimits caps grid_resolution and time_hours per request
func WithLimits(maxResolution, maxTimeHours int) GridOption {
	return func(g *GridGenerator) {
		if maxResolution > 0 {
			g.maxRes = maxResolution
		}
		if maxTimeHours > 0 {
			g.maxHours = maxTimeHours
		}
	}
}

// WithSeed sets the base seed that per-cell streams are derived from
func WithSeed(seed int64) GridOption {
	return func(g *GridGenerator) { g.seed = seed }
}

// WithLogger overrides the default logger
func WithLogger(logger *internal.Logger) GridOption {
	return func(g *GridGenerator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock sets the clock used when a request has no start time
func WithClock(now func() time.Time) GridOption {
	return func(g *GridGenerator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGridGenerator creates a generator reading equations from reg
func NewGridGenerator(reg *registry.Registry, pipeline *Pipeline, rng ports.RNGPort, opts ...GridOption) *GridGenerator {
	g := &GridGenerator{
		registry: reg,
		pipeline: pipeline,
		rng:      rng,
		workers:  runtime.NumCPU(),
		maxRes:   DefaultMaxResolution,
		maxHours: DefaultMaxTimeHours,
		seed:     42,
		logger:   internal.DefaultLogger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds a new ForecastGrid. Any failing cell fails the whole request; on
// cancellation the partially built grid is discarded.
func (g *GridGenerator) Generate(ctx context.Context, req forecast.GridRequest) (*forecast.ForecastGrid, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.GridResolution > g.maxRes {
		return nil, core.NewInvalidGridError("grid_resolution", fmt.Sprintf("must be <= %d", g.maxRes))
	}
	if req.TimeHours > g.maxHours {
		return nil, core.NewInvalidGridError("time_hours", fmt.Sprintf("must be <= %d", g.maxHours))
	}
	snap, err := g.registry.Snapshot()
	if err != nil {
		return nil, err
	}

	if req.StartTime.IsZero() {
		req.StartTime = g.now().UTC().Truncate(time.Hour)
	}
	req.BaseEnvironment = req.BaseEnvironment.Clone()

	lats := Linspace(req.LatRange.Min, req.LatRange.Max, req.GridResolution)
	lngs := Linspace(req.LngRange.Min, req.LngRange.Max, req.GridResolution)
	points := make([]forecast.ForecastPoint, len(lats)*len(lngs))

	started := time.Now()
	g.logger.Info("Generating forecast grid: %dx%d cells, %d hours, %d behaviors, %d samples (equations %s)",
		req.GridResolution, req.GridResolution, req.TimeHours, snap.Len(), g.pipeline.Sampler().SampleCount(), snap.Version().Short())

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

cells:
	for i, lat := range lats {
		for j, lng := range lngs {
			// cancellation is checked between cells; a running cell always completes
			if egCtx.Err() != nil {
				break cells
			}
			idx := i*len(lngs) + j
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				point, err := g.cell(egCtx, snap, req, lat, lng, fmt.Sprintf("cell:%d:%d", i, j))
				if err != nil {
					return err
				}
				points[idx] = point
				return nil
			})
		}
	}

	if err := eg.Wait(); err != nil {
		g.logger.Warn("Forecast grid aborted after %v: %v", time.Since(started), err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grid := &forecast.ForecastGrid{
		ID:              core.NewForecastID(),
		CreatedAt:       g.now().UTC(),
		Request:         req,
		EquationVersion: snap.Version(),
		Seed:            g.seed,
		Behaviors:       snap.Behaviors(),
		Points:          points,
	}
	g.logger.Info("Forecast grid %s generated: %d points in %v", grid.ID, len(points), time.Since(started))
	return grid, nil
}

// cell evaluates one grid cell across every hour slice of the horizon
func (g *GridGenerator) cell(ctx context.Context, snap *registry.Snapshot, req forecast.GridRequest, lat, lng float64, key string) (forecast.ForecastPoint, error) {
	location, err := g.pipeline.LocationEnvironment(req.BaseEnvironment, lat, lng)
	if err != nil {
		return forecast.ForecastPoint{}, err
	}
	rng, err := g.rng.Stream(ctx, snap.Version().String(), gridStage, key, g.seed)
	if err != nil {
		return forecast.ForecastPoint{}, fmt.Errorf("rng stream for %s: %w", key, err)
	}

	slices := make(map[string]*sliceSeries, snap.Len())
	for _, label := range snap.Behaviors() {
		slices[label] = newSliceSeries(req.TimeHours)
	}

	for h := 0; h < req.TimeHours; h++ {
		at := req.StartTime.Add(time.Duration(h) * time.Hour)
		env := g.pipeline.SliceEnvironment(location, at)
		summaries, err := g.pipeline.PredictAll(snap, env, rng)
		if err != nil {
			return forecast.ForecastPoint{}, fmt.Errorf("cell (%.5f, %.5f) hour %s: %w", lat, lng, at.Format(time.RFC3339), err)
		}
		for label, s := range summaries {
			slices[label].add(s)
		}
	}

	point := forecast.ForecastPoint{
		Latitude:  lat,
		Longitude: lng,
		Behaviors: make(map[string]forecast.BehaviorSummary, len(slices)),
	}
	for label, series := range slices {
		summary, err := series.summary()
		if err != nil {
			return forecast.ForecastPoint{}, fmt.Errorf("cell (%.5f, %.5f) behavior %q: %w", lat, lng, label, err)
		}
		point.Behaviors[label] = summary
	}
	g.logger.Trace("cell %s (%.5f, %.5f) done", key, lat, lng)
	return point, nil
}

// sliceSeries collects per-hour summaries of one behavior in one cell
type sliceSeries struct {
	means, lowers, uppers stats.Float64Data
	samples               int
}

func newSliceSeries(hours int) *sliceSeries {
	return &sliceSeries{
		means:  make(stats.Float64Data, 0, hours),
		lowers: make(stats.Float64Data, 0, hours),
		uppers: make(stats.Float64Data, 0, hours),
	}
}

func (s *sliceSeries) add(p forecast.PosteriorSummary) {
	s.means = append(s.means, p.Mean)
	s.lowers = append(s.lowers, p.Lower)
	s.uppers = append(s.uppers, p.Upper)
	s.samples += p.SampleCount
}

func (s *sliceSeries) summary() (forecast.BehaviorSummary, error) {
	mean, err := s.means.Mean()
	if err != nil {
		return forecast.BehaviorSummary{}, err
	}
	lower, err := s.lowers.Mean()
	if err != nil {
		return forecast.BehaviorSummary{}, err
	}
	upper, err := s.uppers.Mean()
	if err != nil {
		return forecast.BehaviorSummary{}, err
	}
	return forecast.BehaviorSummary{
		MeanProbability: mean,
		LowerBound:      min(lower, mean),
		UpperBound:      max(upper, mean),
		SampleCount:     s.samples,
	}, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive. n == 1 yields lo.
func Linspace(lo, hi float64, n int) []float64 {
	if n < 1 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
