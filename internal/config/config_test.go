package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Duration(0), cfg.Upsample)
	assert.Empty(t, cfg.MetricsFile)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("TCTRACK_WORKERS", "16")
	t.Setenv("TCTRACK_UPSAMPLE", "1h")
	t.Setenv("METRICS_FILE", "/var/lib/node_exporter/tctrack.prom")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, time.Hour, cfg.Upsample)
	assert.Equal(t, "/var/lib/node_exporter/tctrack.prom", cfg.MetricsFile)
}

func TestLoad_InvalidWorkers(t *testing.T) {
	for _, v := range []string{"0", "65", "many"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("TCTRACK_WORKERS", v)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "TCTRACK_WORKERS")
		})
	}
}

func TestLoad_InvalidUpsample(t *testing.T) {
	for _, v := range []string{"hourly", "-30m"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("TCTRACK_UPSAMPLE", v)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "TCTRACK_UPSAMPLE")
		})
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}
