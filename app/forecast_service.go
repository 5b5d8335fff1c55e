package app

import (
	"context"
	"fmt"
	"time"

	"orcacast/domain/core"
	"orcacast/domain/forecast"
	"orcacast/internal"
	pipeline "orcacast/internal/forecast"
	"orcacast/internal/registry"
	"orcacast/internal/report"
	"orcacast/ports"
)

// ForecastService coordinates grid generation, the optional forecast sink and equation reloads
type ForecastService struct {
	registry  *registry.Registry
	generator *pipeline.GridGenerator
	source    ports.EquationSource
	repo      ports.ForecastRepository
	logger    *internal.Logger
}

// NewForecastService creates a forecast service. repo may be nil when persistence is disabled.
func NewForecastService(reg *registry.Registry, generator *pipeline.GridGenerator, source ports.EquationSource, repo ports.ForecastRepository, logger *internal.Logger) *ForecastService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ForecastService{
		registry:  reg,
		generator: generator,
		source:    source,
		repo:      repo,
		logger:    logger,
	}
}

// GenerateGrid builds a forecast grid and, when persist is set, stores it before returning.
// A grid that cannot be stored is still returned alongside the error.
func (s *ForecastService) GenerateGrid(ctx context.Context, req forecast.GridRequest, persist bool) (*forecast.ForecastGrid, error) {
	if persist && s.repo == nil {
		return nil, core.ErrNoPersistence
	}
	grid, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if !persist {
		return grid, nil
	}

	started := time.Now()
	if err := s.repo.SaveGrid(ctx, grid); err != nil {
		return grid, fmt.Errorf("failed to store forecast grid %s: %w", grid.ID, err)
	}
	s.logger.Info("Forecast grid %s stored (%d points) in %v", grid.ID, len(grid.Points), time.Since(started))
	return grid, nil
}

// GetGrid loads a stored grid
func (s *ForecastService) GetGrid(ctx context.Context, id string) (*forecast.ForecastGrid, error) {
	if s.repo == nil {
		return nil, core.ErrNoPersistence
	}
	forecastID, err := core.ParseForecastID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.GetGrid(ctx, forecastID)
}

// ListGrids returns the most recent stored grids
func (s *ForecastService) ListGrids(ctx context.Context, limit int) ([]ports.GridHeader, error) {
	if s.repo == nil {
		return nil, core.ErrNoPersistence
	}
	return s.repo.ListGrids(ctx, limit)
}

// Report renders a stored grid as an HTML page
func (s *ForecastService) Report(ctx context.Context, id string, hotspots int) ([]byte, error) {
	grid, err := s.GetGrid(ctx, id)
	if err != nil {
		return nil, err
	}
	return report.HTML(grid, hotspots)
}

// ReloadEquations re-reads the configured equation source. A failed reload keeps the
// current equation set.
func (s *ForecastService) ReloadEquations(ctx context.Context) (core.EquationSetHash, error) {
	if err := s.registry.Load(ctx, s.source); err != nil {
		return "", err
	}
	snap, err := s.registry.Snapshot()
	if err != nil {
		return "", err
	}
	return snap.Version(), nil
}

// Registry exposes the equation registry backing the service
func (s *ForecastService) Registry() *registry.Registry {
	return s.registry
}
