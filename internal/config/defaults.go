package config

import "time"

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain.
const (
	defaultBaseURL           = "https://api.stlouisfed.org/fred"
	defaultRequestsPerMinute = 120
	defaultRequestTimeout    = "30s"
	defaultMinObservationEnd = "2000-01-01"
	defaultExpandWorkers     = 4
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	defaultPollInterval      = "24h"

	defaultRequestTimeoutDur = 30 * time.Second
	defaultPollIntervalDur   = 24 * time.Hour
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
// DBPath is left empty and filled in by Resolve.
func DefaultConfig() *Config {
	return &Config{
		APIConfig: APIConfig{
			BaseURL:           defaultBaseURL,
			RequestsPerMinute: defaultRequestsPerMinute,
			RequestTimeout:    defaultRequestTimeout,
		},
		CatalogConfig: CatalogConfig{
			RootCategories:    []int{0},
			MinObservationEnd: defaultMinObservationEnd,
			ExpandWorkers:     defaultExpandWorkers,
		},
		LoggingConfig: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		WatchConfig: WatchConfig{
			PollInterval: defaultPollInterval,
		},
	}
}
