package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orcacast/internal/errors"
)

var configKeys = []string{
	"DATABASE_URL", "DB_MAX_OPEN_CONNS", "DB_CONN_MAX_LIFETIME",
	"PORT", "ADMIN_PORT", "GIN_MODE",
	"RANDOM_SEED", "SAMPLE_COUNT", "CREDIBLE_LEVEL", "GRID_WORKERS", "PERSIST_LIVE_PREDICTIONS",
	"MAX_GRID_RESOLUTION", "MAX_TIME_HOURS",
	"EQUATIONS_SOURCE", "EQUATIONS_SHEET", "EQUATIONS_DATA_PATH", "EQUATIONS_TOKEN",
	"OVERPASS_URL", "OVERPASS_TIMEOUT", "SHORELINE_BBOX", "FEEDING_ZONES", "FORECAST_TZ", "TIDAL_EPOCH",
}

func cleanEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "6060", cfg.Server.AdminPort)
	assert.Equal(t, 1000, cfg.Forecast.SampleCount)
	assert.Equal(t, 0.90, cfg.Forecast.CredibleLevel)
	assert.Equal(t, int64(42), cfg.Forecast.RandomSeed)
	assert.GreaterOrEqual(t, cfg.Forecast.GridWorkers, 1)
	assert.False(t, cfg.Forecast.PersistLive)
	assert.Equal(t, 200, cfg.Forecast.MaxResolution)
	assert.Equal(t, 168, cfg.Forecast.MaxTimeHours)
	assert.Equal(t, "equations.yaml", cfg.Equations.Source)
	assert.False(t, cfg.Equations.IsEndpoint())
	assert.Equal(t, "UTC", cfg.Spatial.Timezone)
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Spatial.TidalEpoch)
}

func TestLoadOverrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("DATABASE_URL", "postgres://orca@localhost/orcacast?sslmode=disable")
	t.Setenv("EQUATIONS_SOURCE", "postgres")
	t.Setenv("SAMPLE_COUNT", "250")
	t.Setenv("CREDIBLE_LEVEL", "0.8")
	t.Setenv("RANDOM_SEED", "-7")
	t.Setenv("PERSIST_LIVE_PREDICTIONS", "true")
	t.Setenv("TIDAL_EPOCH", "2024-06-01T04:12:00Z")
	t.Setenv("OVERPASS_TIMEOUT", "5s")
	t.Setenv("MAX_GRID_RESOLUTION", "50")
	t.Setenv("MAX_TIME_HOURS", "48")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, 250, cfg.Forecast.SampleCount)
	assert.Equal(t, 0.8, cfg.Forecast.CredibleLevel)
	assert.Equal(t, int64(-7), cfg.Forecast.RandomSeed)
	assert.True(t, cfg.Forecast.PersistLive)
	assert.Equal(t, 5*time.Second, cfg.Spatial.OverpassTimeout)
	assert.Equal(t, 50, cfg.Forecast.MaxResolution)
	assert.Equal(t, 48, cfg.Forecast.MaxTimeHours)
	assert.Equal(t, time.Date(2024, 6, 1, 4, 12, 0, 0, time.UTC), cfg.Spatial.TidalEpoch)
}

func TestLoadEndpointSource(t *testing.T) {
	cleanEnv(t)
	t.Setenv("EQUATIONS_SOURCE", "https://models.example.org/equations")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Equations.IsEndpoint())
	assert.Equal(t, "equations", cfg.Equations.DataPath)
}

func TestLoadEndpointRootDataPath(t *testing.T) {
	for _, value := range []string{".", "@this"} {
		t.Run(value, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv("EQUATIONS_SOURCE", "https://models.example.org/equations")
			t.Setenv("EQUATIONS_DATA_PATH", value)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, "", cfg.Equations.DataPath)
		})
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero samples", map[string]string{"SAMPLE_COUNT": "0"}},
		{"level of one", map[string]string{"CREDIBLE_LEVEL": "1"}},
		{"zero workers", map[string]string{"GRID_WORKERS": "0"}},
		{"zero max resolution", map[string]string{"MAX_GRID_RESOLUTION": "0"}},
		{"zero max hours", map[string]string{"MAX_TIME_HOURS": "0"}},
		{"same ports", map[string]string{"PORT": "9000", "ADMIN_PORT": "9000"}},
		{"bad timezone", map[string]string{"FORECAST_TZ": "Salish/Sea"}},
		{"overpass without bbox", map[string]string{"OVERPASS_URL": "https://overpass-api.de/api/interpreter"}},
		{"postgres without database", map[string]string{"EQUATIONS_SOURCE": "postgres"}},
		{"unsupported file", map[string]string{"EQUATIONS_SOURCE": "equations.toml"}},
		{"bad seed", map[string]string{"RANDOM_SEED": "forty-two"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err), "got %v", err)
		})
	}
}
