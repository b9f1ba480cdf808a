// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for fredsync. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
// All keys are flat at the top level of the file; the section structs below
// only group related settings in Go.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	APIConfig
	CatalogConfig
	StorageConfig
	LoggingConfig
	WatchConfig
}

// APIConfig controls how the FRED web API is reached. FRED allows 120
// requests per minute per key.
type APIConfig struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	RequestTimeout    string `toml:"request_timeout"`
}

// CatalogConfig selects which part of the catalog is mirrored.
// RootCategories = [0] means the whole catalog.
type CatalogConfig struct {
	RootCategories    []int    `toml:"root_categories"`
	MinObservationEnd string   `toml:"min_observation_end"`
	SeriesFilter      []string `toml:"series_filter"`
	ExpandWorkers     int      `toml:"expand_workers"`
}

// StorageConfig locates the local database and the optional metrics file.
type StorageConfig struct {
	DBPath      string `toml:"db_path"`
	MetricsFile string `toml:"metrics_file"`
}

// LoggingConfig controls log output: level, format, and destination.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
}

// WatchConfig controls `sync --watch`.
type WatchConfig struct {
	PollInterval string `toml:"poll_interval"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer and nil-slice fields distinguish "not
// specified" from "explicitly set".
type CLIOverrides struct {
	ConfigPath        string   // --config flag (empty = use default)
	DBPath            *string  // --db
	RootCategories    []int    // --root (nil = not specified)
	MinObservationEnd *string  // --min-observation-end
	SeriesFilter      []string // --series (nil = not specified)
}

// RequestTimeoutDuration returns the parsed request timeout. Validate has
// already rejected unparseable values, so the fallback is only reached for
// unvalidated configs.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return parseDurationOr(c.RequestTimeout, defaultRequestTimeoutDur)
}

// PollIntervalDuration returns the parsed watch-mode poll interval.
func (c *Config) PollIntervalDuration() time.Duration {
	return parseDurationOr(c.PollInterval, defaultPollIntervalDur)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}

	return d
}
