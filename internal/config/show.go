package config

import (
	"fmt"
	"io"
	"strings"
)

// RenderEffective writes the resolved configuration as TOML-like text to w,
// for the "config show" command. The API key is redacted.
func RenderEffective(cfg *Config, path string, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", orNone(path))

	ew.printf("# api\n")
	ew.printf("api_key             = %q\n", RedactKey(cfg.APIKey))
	ew.printf("base_url            = %q\n", cfg.BaseURL)
	ew.printf("requests_per_minute = %d\n", cfg.RequestsPerMinute)
	ew.printf("request_timeout     = %q\n\n", cfg.RequestTimeout)

	ew.printf("# catalog\n")
	ew.printf("root_categories     = [%s]\n", joinInts(cfg.RootCategories))
	ew.printf("min_observation_end = %q\n", cfg.MinObservationEnd)

	if len(cfg.SeriesFilter) > 0 {
		ew.printf("series_filter       = [%s]\n", joinQuoted(cfg.SeriesFilter))
	}

	ew.printf("expand_workers      = %d\n\n", cfg.ExpandWorkers)

	ew.printf("# storage\n")
	ew.printf("db_path             = %q\n", cfg.DBPath)

	if cfg.MetricsFile != "" {
		ew.printf("metrics_file        = %q\n", cfg.MetricsFile)
	}

	ew.printf("\n# logging\n")
	ew.printf("log_level           = %q\n", cfg.LogLevel)
	ew.printf("log_format          = %q\n", cfg.LogFormat)

	if cfg.LogFile != "" {
		ew.printf("log_file            = %q\n", cfg.LogFile)
	}

	ew.printf("\n# watch\n")
	ew.printf("poll_interval       = %q\n", cfg.PollInterval)

	return ew.err
}

// RedactKey hides all but the last four characters of an API key.
func RedactKey(key string) string {
	const visible = 4

	if key == "" {
		return ""
	}

	if len(key) <= visible {
		return strings.Repeat("*", len(key))
	}

	return strings.Repeat("*", len(key)-visible) + key[len(key)-visible:]
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}

	return s
}

func joinInts(items []int) string {
	parts := make([]string, len(items))
	for i, n := range items {
		parts[i] = fmt.Sprintf("%d", n)
	}

	return strings.Join(parts, ", ")
}

// joinQuoted formats a string slice as comma-separated quoted values.
func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}

	return strings.Join(quoted, ", ")
}
