package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig = "FREDSYNC_CONFIG"
	EnvAPIKey = "FRED_API_KEY"
	EnvDBPath = "FREDSYNC_DB_PATH"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // FREDSYNC_CONFIG: override config file path
	APIKey     string // FRED_API_KEY: API key, preferred over the file
	DBPath     string // FREDSYNC_DB_PATH: database path override
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		APIKey:     os.Getenv(EnvAPIKey),
		DBPath:     os.Getenv(EnvDBPath),
	}
}
