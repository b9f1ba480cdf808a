package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fredsync/internal/config"
)

// Global flag reset pattern: newRootCmd() binds flags via StringVar/BoolVar,
// which reset the global flag variables to their zero values. Tests must either:
//   - Set globals AFTER newRootCmd() returns (direct function tests), or
//   - Use cmd.SetArgs() + cmd.Execute() to let Cobra parse flags.

// testLogger returns a debug-level logger that writes to t.Log.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(&testLogWriter{t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testLogWriter struct {
	t *testing.T
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))

	return len(p), nil
}

// --- buildLogger tests ---

func TestBuildLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		cfgLevel string
		flags    CLIFlags
		enabled  slog.Level
		disabled slog.Level
	}{
		{"default info", "info", CLIFlags{}, slog.LevelInfo, slog.LevelDebug},
		{"config debug", "debug", CLIFlags{}, slog.LevelDebug, slog.LevelDebug - 1},
		{"config warn", "warn", CLIFlags{}, slog.LevelWarn, slog.LevelInfo},
		{"config error", "error", CLIFlags{}, slog.LevelError, slog.LevelWarn},
		{"verbose overrides config", "error", CLIFlags{Verbose: true}, slog.LevelDebug, slog.LevelDebug - 1},
		{"quiet overrides config", "debug", CLIFlags{Quiet: true}, slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.LogLevel = tt.cfgLevel

			logger, closeFn, err := buildLogger(cfg, tt.flags, os.Stderr)
			require.NoError(t, err)

			defer closeFn()

			ctx := context.Background()
			assert.True(t, logger.Handler().Enabled(ctx, tt.enabled))
			assert.False(t, logger.Handler().Enabled(ctx, tt.disabled))
		})
	}
}

func TestBuildLogger_LogFileJSON(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "fredsync.log")

	logger, closeFn, err := buildLogger(cfg, CLIFlags{}, os.Stderr)
	require.NoError(t, err)

	logger.Info("hello", slog.String("series_id", "GDP"))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)

	// auto format writes JSON to a file.
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"series_id":"GDP"`)
}

func TestBuildLogger_LogFileText(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "fredsync.log")
	cfg.LogFormat = "text"

	logger, closeFn, err := buildLogger(cfg, CLIFlags{}, os.Stderr)
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
}

func TestBuildLogger_LogFileUnwritable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "missing", "dir", "fredsync.log")

	_, _, err := buildLogger(cfg, CLIFlags{}, os.Stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening log file")
}

// --- command tree ---

func TestNewRootCmd_RegistersCommands(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"sync", "discover", "status", "series", "config"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	show, _, err := cmd.Find([]string{"config", "show"})
	require.NoError(t, err)
	assert.Equal(t, "show", show.Name())
}

func TestCLIOverrides_OnlyChangedFlags(t *testing.T) {
	root := newRootCmd()

	syncCmd, _, err := root.Find([]string{"sync"})
	require.NoError(t, err)
	require.NoError(t, syncCmd.ParseFlags([]string{"--root", "32991,10", "--series", "GDP,UNRATE"}))

	cli, err := cliOverrides(syncCmd, "/tmp/config.toml")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/config.toml", cli.ConfigPath)
	assert.Equal(t, []int{32991, 10}, cli.RootCategories)
	assert.Equal(t, []string{"GDP", "UNRATE"}, cli.SeriesFilter)
	assert.Nil(t, cli.MinObservationEnd)
	assert.Nil(t, cli.DBPath)
}

func TestCLIOverrides_DBAndCutoff(t *testing.T) {
	root := newRootCmd()

	syncCmd, _, err := root.Find([]string{"sync"})
	require.NoError(t, err)
	require.NoError(t, syncCmd.ParseFlags([]string{"--db", "/data/f.db", "--min-observation-end", "2020-01-01"}))

	cli, err := cliOverrides(syncCmd, "")
	require.NoError(t, err)

	require.NotNil(t, cli.DBPath)
	assert.Equal(t, "/data/f.db", *cli.DBPath)
	require.NotNil(t, cli.MinObservationEnd)
	assert.Equal(t, "2020-01-01", *cli.MinObservationEnd)
	assert.Nil(t, cli.RootCategories)
}

func TestCLIOverrides_CommandWithoutCatalogFlags(t *testing.T) {
	root := newRootCmd()

	statusCmd, _, err := root.Find([]string{"status"})
	require.NoError(t, err)
	require.NoError(t, statusCmd.ParseFlags(nil))

	cli, err := cliOverrides(statusCmd, "")
	require.NoError(t, err)
	assert.Nil(t, cli.RootCategories)
	assert.Nil(t, cli.SeriesFilter)
}

func TestRootCmd_ConfigShowExecutes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("api_key = \"abcdef123456\"\n"), 0o600))

	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvDBPath, "")
	t.Setenv(config.EnvConfig, "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "--db", filepath.Join(t.TempDir(), "f.db"), "-q", "config", "show"})

	require.NoError(t, cmd.Execute())
}

func TestRootCmd_InvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("expand_wrokers = 4\n"), 0o600))

	t.Setenv(config.EnvConfig, "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "config", "show"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
	assert.Contains(t, err.Error(), "expand_workers")
}

func TestMustCLIContext_PanicsWithoutContext(t *testing.T) {
	assert.Panics(t, func() { mustCLIContext(context.Background()) })
}

func TestCLIContext_CloseIdempotent(t *testing.T) {
	calls := 0
	cc := &CLIContext{closeLog: func() error { calls++; return nil }}

	require.NoError(t, cc.Close())
	require.NoError(t, cc.Close())
	assert.Equal(t, 1, calls)
}
