package container

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"orcacast/adapters/api"
	"orcacast/adapters/excel"
	"orcacast/adapters/file"
	"orcacast/adapters/postgres"
	"orcacast/adapters/rng"
	"orcacast/adapters/spatial"
	"orcacast/app"
	"orcacast/internal"
	"orcacast/internal/config"
	"orcacast/internal/errors"
	"orcacast/internal/forecast"
	"orcacast/internal/migration"
	"orcacast/internal/registry"
	"orcacast/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Adapters
	EquationSource ports.EquationSource
	ForecastRepo   ports.ForecastRepository
	RNG            ports.RNGPort
	Spatial        ports.SpatialModel
	Temporal       ports.TemporalModel

	// Engine
	Registry  *registry.Registry
	Pipeline  *forecast.Pipeline
	Generator *forecast.GridGenerator

	// Services
	Forecasts   *app.ForecastService
	Predictions *app.PredictionService
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Container{Config: cfg, Logger: logger}, nil
}

// ConnectDatabase opens the configured database and runs migrations. It is a no-op when
// no DATABASE_URL is set.
func (c *Container) ConnectDatabase(ctx context.Context) error {
	if !c.Config.Database.Enabled() {
		c.Logger.Info("No DATABASE_URL configured, running without persistence")
		return nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)

	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return errors.Wrap(err, "database migration failed")
	}
	c.Logger.Info("Database connected, schema version %s", migrator.Version())
	return c.InitWithDatabase(db)
}

// InitWithDatabase initializes components that require database access
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	c.DB = db
	c.ForecastRepo = postgres.NewForecastRepository(db)
	return nil
}

// Init builds the engine and services and performs the initial equation load
func (c *Container) Init(ctx context.Context) error {
	source, err := c.equationSource()
	if err != nil {
		return err
	}
	c.EquationSource = source

	if err := c.initCovariateModels(ctx); err != nil {
		return err
	}

	sampler, err := forecast.NewSampler(c.Config.Forecast.SampleCount, c.Config.Forecast.CredibleLevel)
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}

	if c.RNG == nil {
		c.RNG = rng.NewSeeded()
	}
	c.Registry = registry.New(c.Logger)
	c.Pipeline = forecast.NewPipeline(sampler, c.Spatial, c.Temporal)
	c.Generator = forecast.NewGridGenerator(c.Registry, c.Pipeline, c.RNG,
		forecast.WithWorkers(c.Config.Forecast.GridWorkers),
		forecast.WithLimits(c.Config.Forecast.MaxResolution, c.Config.Forecast.MaxTimeHours),
		forecast.WithSeed(c.Config.Forecast.RandomSeed),
		forecast.WithLogger(c.Logger),
	)

	c.Forecasts = app.NewForecastService(c.Registry, c.Generator, c.EquationSource, c.ForecastRepo, c.Logger)

	opts := []app.PredictionOption{
		app.WithPredictionSeed(c.Config.Forecast.RandomSeed),
		app.WithPredictionLogger(c.Logger),
	}
	if c.Config.Forecast.PersistLive && c.ForecastRepo != nil {
		opts = append(opts, app.WithPredictionRepository(c.ForecastRepo))
	}
	c.Predictions = app.NewPredictionService(c.Registry, c.Pipeline, c.RNG, opts...)

	if err := c.Registry.Load(ctx, c.EquationSource); err != nil {
		return errors.Wrapf(err, "initial equation load from %s failed", c.EquationSource.Describe())
	}
	return nil
}

// equationSource selects the source named by EQUATIONS_SOURCE
func (c *Container) equationSource() (ports.EquationSource, error) {
	cfg := c.Config.Equations
	switch {
	case cfg.Source == config.EquationsFromPostgres:
		if c.DB == nil {
			return nil, errors.ConfigInvalid("EQUATIONS_SOURCE=postgres requires a database connection")
		}
		return postgres.NewEquationRepository(c.DB), nil
	case cfg.IsEndpoint():
		endpoint := api.DefaultEndpointConfig(cfg.Source)
		endpoint.DataPath = cfg.DataPath
		if cfg.AuthToken != "" {
			endpoint.AuthMethod = "bearer"
			endpoint.AuthToken = cfg.AuthToken
		}
		return api.NewEquationEndpoint(endpoint), nil
	}

	switch strings.ToLower(filepath.Ext(cfg.Source)) {
	case ".xlsx", ".csv":
		sheet := excel.DefaultSheetConfig(cfg.Source)
		if cfg.Sheet != "" {
			sheet.SheetName = cfg.Sheet
		}
		return excel.NewEquationSheet(sheet), nil
	default:
		return file.NewEquationFile(cfg.Source), nil
	}
}

// initCovariateModels builds the coastal and diel/tidal covariate models
func (c *Container) initCovariateModels(ctx context.Context) error {
	cfg := c.Config.Spatial

	zones, err := spatial.ParsePoints(cfg.FeedingZones)
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("FEEDING_ZONES: %w", err))
	}

	var shoreline []spatial.Point
	if cfg.OverpassURL != "" {
		bounds, err := spatial.ParseBounds(cfg.ShorelineBounds)
		if err != nil {
			return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("SHORELINE_BBOX: %w", err))
		}
		started := time.Now()
		shoreline, err = spatial.NewOverpassShoreline(cfg.OverpassURL, cfg.OverpassTimeout).FetchShoreline(ctx, bounds)
		if err != nil {
			return errors.ExternalServiceError("overpass", err)
		}
		c.Logger.Info("Loaded %d shoreline nodes from Overpass in %v", len(shoreline), time.Since(started))
	}

	if len(zones) > 0 || len(shoreline) > 0 {
		c.Spatial = spatial.NewCoastalModel(zones, shoreline)
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	c.Temporal = spatial.NewDielTidalModel(location, cfg.TidalEpoch)
	return nil
}

// Close releases held resources
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
