package config

import (
	"errors"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

const maxWorkers = 64

// Config holds the command-line tool settings, populated from environment variables.
type Config struct {
	LogLevel  string
	LogFormat string

	// Workers bounds how many files the plural readers parse at once.
	Workers int

	// Upsample is the track interpolation interval; zero disables it.
	Upsample time.Duration

	// MetricsFile, when set, receives the Prometheus metrics in text format.
	MetricsFile string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	workers, err := parseWorkers()
	if err != nil {
		return nil, err
	}

	upsample, err := parseUpsample()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:    sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:   sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		Workers:     workers,
		Upsample:    upsample,
		MetricsFile: sharedcfg.EnvOrDefault("METRICS_FILE", ""),
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, errors.New("LOG_FORMAT must be text or json")
	}

	return cfg, nil
}

func parseWorkers() (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault("TCTRACK_WORKERS", "4"))
	if err != nil || n < 1 || n > maxWorkers {
		return 0, errors.New("invalid TCTRACK_WORKERS: must be between 1 and 64")
	}
	return n, nil
}

func parseUpsample() (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault("TCTRACK_UPSAMPLE", "0s"))
	if err != nil || d < 0 {
		return 0, errors.New("invalid TCTRACK_UPSAMPLE")
	}
	return d, nil
}
