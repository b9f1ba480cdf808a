package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DefaultsAreValid(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"relative base url", func(c *Config) { c.BaseURL = "api.stlouisfed.org" }, "base_url"},
		{"rpm too low", func(c *Config) { c.RequestsPerMinute = 0 }, "requests_per_minute"},
		{"rpm too high", func(c *Config) { c.RequestsPerMinute = 5000 }, "requests_per_minute"},
		{"bad timeout", func(c *Config) { c.RequestTimeout = "soon" }, "request_timeout"},
		{"tiny timeout", func(c *Config) { c.RequestTimeout = "10ms" }, "request_timeout"},
		{"no roots", func(c *Config) { c.RootCategories = nil }, "root_categories"},
		{"negative root", func(c *Config) { c.RootCategories = []int{-1} }, "non-negative"},
		{"bad cutoff", func(c *Config) { c.MinObservationEnd = "2020-13-01" }, "min_observation_end"},
		{"workers zero", func(c *Config) { c.ExpandWorkers = 0 }, "expand_workers"},
		{"workers too many", func(c *Config) { c.ExpandWorkers = 33 }, "expand_workers"},
		{"bad level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"short poll", func(c *Config) { c.PollInterval = "30s" }, "poll_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_AccumulatesAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpandWorkers = 0
	cfg.LogLevel = "loud"
	cfg.PollInterval = "never"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expand_workers")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "poll_interval")
}

func TestRequireAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorIs(t, RequireAPIKey(cfg), ErrMissingAPIKey)

	cfg.APIKey = "k"
	assert.NoError(t, RequireAPIKey(cfg))
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.RequestTimeoutDuration())
	assert.Equal(t, 24*time.Hour, cfg.PollIntervalDuration())

	cfg.RequestTimeout = "2m"
	cfg.PollInterval = "garbage"
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeoutDuration())
	assert.Equal(t, defaultPollIntervalDur, cfg.PollIntervalDuration())
}
