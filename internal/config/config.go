package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"orcacast/internal/errors"
)

// EquationsFromPostgres selects the behavior_equations table as the equation source
const EquationsFromPostgres = "postgres"

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Forecast  ForecastConfig
	Equations EquationsConfig
	Spatial   SpatialConfig
}

// DatabaseConfig holds database connection settings. An empty URL runs the service
// without persistence.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port      string
	AdminPort string
	GinMode   string
}

// ForecastConfig holds sampling and grid settings
type ForecastConfig struct {
	SampleCount   int
	CredibleLevel float64
	GridWorkers   int
	RandomSeed    int64
	PersistLive   bool
	MaxResolution int
	MaxTimeHours  int
}

// EquationsConfig names where behavior equations are loaded from
type EquationsConfig struct {
	Source    string
	Sheet     string
	DataPath  string
	AuthToken string
}

// IsEndpoint reports whether equations are fetched over HTTP
func (e EquationsConfig) IsEndpoint() bool {
	return strings.HasPrefix(e.Source, "http://") || strings.HasPrefix(e.Source, "https://")
}

// SpatialConfig holds the inputs of the coastal covariate model
type SpatialConfig struct {
	OverpassURL     string
	OverpassTimeout time.Duration
	ShorelineBounds string
	FeedingZones    string
	Timezone        string
	TidalEpoch      time.Time
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database:  *loadDatabaseConfig(),
		Server:    *loadServerConfig(),
		Equations: *loadEquationsConfig(),
		Spatial:   *loadSpatialConfig(),
	}

	forecastConfig, err := loadForecastConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load forecast configuration")
	}
	config.Forecast = *forecastConfig

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:             os.Getenv("DATABASE_URL"),
		MaxOpenConns:    getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		ConnMaxLifetime: getEnvDurationOrDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:      getEnvOrDefault("PORT", "8080"),
		AdminPort: getEnvOrDefault("ADMIN_PORT", "6060"),
		GinMode:   getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadForecastConfig() (*ForecastConfig, error) {
	seed, err := strconv.ParseInt(getEnvOrDefault("RANDOM_SEED", "42"), 10, 64)
	if err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("RANDOM_SEED must be an integer: %v", err))
	}
	return &ForecastConfig{
		SampleCount:   getEnvIntOrDefault("SAMPLE_COUNT", 1000),
		CredibleLevel: getEnvFloatOrDefault("CREDIBLE_LEVEL", 0.90),
		GridWorkers:   getEnvIntOrDefault("GRID_WORKERS", runtime.NumCPU()),
		RandomSeed:    seed,
		PersistLive:   getEnvBoolOrDefault("PERSIST_LIVE_PREDICTIONS", false),
		MaxResolution: getEnvIntOrDefault("MAX_GRID_RESOLUTION", 200),
		MaxTimeHours:  getEnvIntOrDefault("MAX_TIME_HOURS", 168),
	}, nil
}

func loadEquationsConfig() *EquationsConfig {
	return &EquationsConfig{
		Source:    getEnvOrDefault("EQUATIONS_SOURCE", "equations.yaml"),
		Sheet:     getEnvOrDefault("EQUATIONS_SHEET", ""),
		DataPath:  dataPath(getEnvOrDefault("EQUATIONS_DATA_PATH", "equations")),
		AuthToken: getEnvOrDefault("EQUATIONS_TOKEN", ""),
	}
}

// dataPath maps "." and "@this" to the empty path, which selects the document root
func dataPath(value string) string {
	if value == "." || value == "@this" {
		return ""
	}
	return value
}

func loadSpatialConfig() *SpatialConfig {
	return &SpatialConfig{
		OverpassURL:     getEnvOrDefault("OVERPASS_URL", ""),
		OverpassTimeout: getEnvDurationOrDefault("OVERPASS_TIMEOUT", 60*time.Second),
		ShorelineBounds: getEnvOrDefault("SHORELINE_BBOX", ""),
		FeedingZones:    getEnvOrDefault("FEEDING_ZONES", ""),
		Timezone:        getEnvOrDefault("FORECAST_TZ", "UTC"),
		TidalEpoch:      getEnvTimeOrDefault("TIDAL_EPOCH", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func validateConfig(config *Config) error {
	if config.Forecast.SampleCount < 1 {
		return errors.ConfigInvalid("SAMPLE_COUNT must be >= 1")
	}
	if !(config.Forecast.CredibleLevel > 0 && config.Forecast.CredibleLevel < 1) {
		return errors.ConfigInvalid("CREDIBLE_LEVEL must be in (0,1)")
	}
	if config.Forecast.GridWorkers < 1 {
		return errors.ConfigInvalid("GRID_WORKERS must be >= 1")
	}
	if config.Forecast.MaxResolution < 1 {
		return errors.ConfigInvalid("MAX_GRID_RESOLUTION must be >= 1")
	}
	if config.Forecast.MaxTimeHours < 1 {
		return errors.ConfigInvalid("MAX_TIME_HOURS must be >= 1")
	}
	if config.Server.Port == config.Server.AdminPort {
		return errors.ConfigInvalid("PORT and ADMIN_PORT must differ")
	}
	if _, err := time.LoadLocation(config.Spatial.Timezone); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("FORECAST_TZ: %v", err))
	}
	if config.Spatial.OverpassURL != "" && config.Spatial.ShorelineBounds == "" {
		return errors.ConfigInvalid("OVERPASS_URL requires SHORELINE_BBOX")
	}

	source := strings.TrimSpace(config.Equations.Source)
	if source == "" {
		return errors.ConfigInvalid("EQUATIONS_SOURCE is required")
	}
	if source == EquationsFromPostgres {
		if !config.Database.Enabled() {
			return errors.ConfigInvalid("EQUATIONS_SOURCE=postgres requires DATABASE_URL")
		}
		return nil
	}
	if config.Equations.IsEndpoint() {
		return nil
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml", ".json", ".xlsx", ".csv":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unsupported EQUATIONS_SOURCE %q", source))
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvTimeOrDefault(key string, defaultValue time.Time) time.Time {
	if value := os.Getenv(key); value != "" {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t
		}
	}
	return defaultValue
}
