package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validation range constants.
const (
	minExpandWorkers     = 1
	maxExpandWorkers     = 32
	minRequestsPerMinute = 1
	maxRequestsPerMinute = 1000
	minRequestTimeout    = 1 * time.Second
	minPollInterval      = 1 * time.Minute
	dateLayout           = "2006-01-02"
)

// ErrMissingAPIKey is returned by RequireAPIKey when no key is configured.
var ErrMissingAPIKey = errors.New("api_key: not set (use the config file or " + EnvAPIKey + ")")

// Validate checks all configuration values and returns all errors found,
// so users can fix every issue in one pass. The API key is not required
// here because offline commands (status, series) work without it.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAPI(&cfg.APIConfig)...)
	errs = append(errs, validateCatalog(&cfg.CatalogConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)
	errs = append(errs, validateWatch(&cfg.WatchConfig)...)

	return errors.Join(errs...)
}

// RequireAPIKey reports ErrMissingAPIKey for commands that talk to FRED.
func RequireAPIKey(cfg *Config) error {
	if cfg.APIKey == "" {
		return ErrMissingAPIKey
	}

	return nil
}

func validateAPI(a *APIConfig) []error {
	var errs []error

	if u, err := url.Parse(a.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url: must be an absolute URL, got %q", a.BaseURL))
	}

	if a.RequestsPerMinute < minRequestsPerMinute || a.RequestsPerMinute > maxRequestsPerMinute {
		errs = append(errs, fmt.Errorf("requests_per_minute: must be between %d and %d, got %d",
			minRequestsPerMinute, maxRequestsPerMinute, a.RequestsPerMinute))
	}

	errs = append(errs, validateDuration("request_timeout", a.RequestTimeout, minRequestTimeout)...)

	return errs
}

func validateCatalog(c *CatalogConfig) []error {
	var errs []error

	if len(c.RootCategories) == 0 {
		errs = append(errs, errors.New("root_categories: must list at least one category (use [0] for the whole catalog)"))
	}

	for _, id := range c.RootCategories {
		if id < 0 {
			errs = append(errs, fmt.Errorf("root_categories: category IDs must be non-negative, got %d", id))
		}
	}

	if _, err := time.Parse(dateLayout, c.MinObservationEnd); err != nil {
		errs = append(errs, fmt.Errorf("min_observation_end: must be a YYYY-MM-DD date, got %q", c.MinObservationEnd))
	}

	if c.ExpandWorkers < minExpandWorkers || c.ExpandWorkers > maxExpandWorkers {
		errs = append(errs, fmt.Errorf("expand_workers: must be between %d and %d, got %d",
			minExpandWorkers, maxExpandWorkers, c.ExpandWorkers))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateWatch(w *WatchConfig) []error {
	return validateDuration("poll_interval", w.PollInterval, minPollInterval)
}

func validateDuration(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}
