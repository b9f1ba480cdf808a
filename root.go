package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/fredsync/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagDBPath     string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// logFilePermissions keeps log files private to the owner.
const logFilePermissions = 0o600

// CLIFlags is a snapshot of the global persistent flags.
type CLIFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext carries the resolved configuration and logger to subcommands.
// It is built once in PersistentPreRunE and stored on the command context.
type CLIContext struct {
	Flags   CLIFlags
	Cfg     *config.Config
	CfgPath string
	Env     config.EnvOverrides
	CLI     config.CLIOverrides
	Logger  *slog.Logger

	closeLog func() error
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext returns the CLIContext installed by the root pre-run. A
// missing context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		panic("fredsync: command run without CLIContext")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fredsync",
		Short: "Mirror the FRED economic data catalog into a local database",
		Long: `fredsync walks the FRED category tree, lists every series under the
configured roots, and keeps a local SQLite copy of each series' metadata,
tags and observations up to date.`,
		Version: version,
		// Errors are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadCLIContext(cmd)
			if err != nil {
				return err
			}

			cmd.SetContext(withCLIContext(cmd.Context(), cc))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return mustCLIContext(cmd.Context()).Close()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "database path (overrides db_path)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSeriesCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadCLIContext resolves the effective configuration from the four-layer
// override chain and builds the logger.
func loadCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	flags := CLIFlags{
		ConfigPath: flagConfigPath,
		JSON:       flagJSON,
		Verbose:    flagVerbose,
		Quiet:      flagQuiet,
	}

	cli, err := cliOverrides(cmd, flags.ConfigPath)
	if err != nil {
		return nil, err
	}

	env := config.ReadEnvOverrides()

	cfg, err := config.Resolve(env, cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, closeLog, err := buildLogger(cfg, flags, os.Stderr)
	if err != nil {
		return nil, err
	}

	return &CLIContext{
		Flags:    flags,
		Cfg:      cfg,
		CfgPath:  config.ConfigPath(env, cli),
		Env:      env,
		CLI:      cli,
		Logger:   logger,
		closeLog: closeLog,
	}, nil
}

// cliOverrides collects the flags that override config values. Only flags
// the user explicitly set are passed on; catalog flags exist only on the
// commands that walk the catalog.
func cliOverrides(cmd *cobra.Command, configPath string) (config.CLIOverrides, error) {
	cli := config.CLIOverrides{ConfigPath: configPath}
	flags := cmd.Flags()

	if flags.Changed("db") {
		db := flagDBPath
		cli.DBPath = &db
	}

	if flags.Lookup("root") != nil && flags.Changed("root") {
		roots, err := flags.GetIntSlice("root")
		if err != nil {
			return cli, fmt.Errorf("reading --root: %w", err)
		}

		cli.RootCategories = roots
	}

	if flags.Lookup("min-observation-end") != nil && flags.Changed("min-observation-end") {
		cutoff, err := flags.GetString("min-observation-end")
		if err != nil {
			return cli, fmt.Errorf("reading --min-observation-end: %w", err)
		}

		cli.MinObservationEnd = &cutoff
	}

	if flags.Lookup("series") != nil && flags.Changed("series") {
		series, err := flags.GetStringSlice("series")
		if err != nil {
			return cli, fmt.Errorf("reading --series: %w", err)
		}

		cli.SeriesFilter = series
	}

	return cli, nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it. With log_format = "auto", text is used when the
// destination is a terminal and JSON otherwise.
func buildLogger(cfg *config.Config, flags CLIFlags, stderr *os.File) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo

	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	var (
		out      io.Writer = stderr
		terminal           = isTerminal(stderr)
		closeFn            = func() error { return nil }
	)

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file %s: %w", cfg.LogFile, err)
		}

		out = f
		terminal = false
		closeFn = f.Close
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler

	switch cfg.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		if terminal {
			handler = slog.NewTextHandler(out, opts)
		} else {
			handler = slog.NewJSONHandler(out, opts)
		}
	}

	return slog.New(handler), closeFn, nil
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Close releases the log file, if any. Safe to call more than once.
func (cc *CLIContext) Close() error {
	if cc.closeLog == nil {
		return nil
	}

	err := cc.closeLog()
	cc.closeLog = nil

	if err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("closing log file: %w", err)
	}

	return nil
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
