package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values, so fredsync runs with only
// FRED_API_KEY set.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// ConfigPath picks the config file location: CLI > env > default.
func ConfigPath(env EnvOverrides, cli CLIOverrides) string {
	if cli.ConfigPath != "" {
		return cli.ConfigPath
	}

	if env.ConfigPath != "" {
		return env.ConfigPath
	}

	return DefaultConfigPath()
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags. The
// returned config is validated and has its paths expanded.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfg, err := LoadOrDefault(ConfigPath(env, cli))
	if err != nil {
		return nil, err
	}

	applyEnv(cfg, env)
	applyCLI(cfg, cli)

	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}

	cfg.DBPath = expandTilde(cfg.DBPath)
	cfg.LogFile = expandTilde(cfg.LogFile)
	cfg.MetricsFile = expandTilde(cfg.MetricsFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config, env EnvOverrides) {
	if env.APIKey != "" {
		cfg.APIKey = env.APIKey
	}

	if env.DBPath != "" {
		cfg.DBPath = env.DBPath
	}
}

func applyCLI(cfg *Config, cli CLIOverrides) {
	if cli.DBPath != nil {
		cfg.DBPath = *cli.DBPath
	}

	if cli.RootCategories != nil {
		cfg.RootCategories = cli.RootCategories
	}

	if cli.MinObservationEnd != nil {
		cfg.MinObservationEnd = *cli.MinObservationEnd
	}

	if cli.SeriesFilter != nil {
		cfg.SeriesFilter = cli.SeriesFilter
	}
}
