package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tonimelisma/fredsync/internal/config"
	"github.com/tonimelisma/fredsync/internal/metrics"
	"github.com/tonimelisma/fredsync/internal/sync"
)

// watchLoop repeats sync cycles every poll interval until its context is
// canceled. A signal on reload re-resolves the configuration; an invalid
// config is logged and the previous one kept.
type watchLoop struct {
	holder  *config.Holder
	resolve func() (*config.Config, error)
	cycle   func(ctx context.Context, cfg *config.Config) error
	reload  <-chan struct{}
	logger  *slog.Logger

	// newTicker is injectable so tests can drive the loop by hand.
	newTicker func(d time.Duration) (<-chan time.Time, func())
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)

	return t.C, t.Stop
}

// run executes one cycle immediately and then one per tick. Cycle errors
// are logged and do not stop the loop; only cancellation does.
func (w *watchLoop) run(ctx context.Context) error {
	w.runCycle(ctx)

	interval := w.holder.Config().PollIntervalDuration()
	tick, stop := w.newTicker(interval)

	defer func() { stop() }()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watch stopped")

			return nil

		case <-tick:
			w.runCycle(ctx)

		case <-w.reload:
			if !w.reloadConfig() {
				continue
			}

			next := w.holder.Config().PollIntervalDuration()
			if next != interval {
				stop()

				interval = next
				tick, stop = w.newTicker(interval)

				w.logger.Info("poll interval changed", slog.Duration("interval", interval))
			}
		}
	}
}

func (w *watchLoop) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if err := w.cycle(ctx, w.holder.Config()); err != nil && ctx.Err() == nil {
		w.logger.Error("sync cycle failed", slog.String("error", err.Error()))
	}
}

// reloadConfig reports whether a new config was installed.
func (w *watchLoop) reloadConfig() bool {
	cfg, err := w.resolve()
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config",
			slog.String("path", w.holder.Path()),
			slog.String("error", err.Error()),
		)

		return false
	}

	w.holder.Update(cfg)
	w.logger.Info("config reloaded", slog.String("path", w.holder.Path()))

	return true
}

// runWatch holds the PID file lock for the life of the loop and reloads
// config on SIGHUP or when the config file changes.
func runWatch(ctx context.Context, cc *CLIContext, opts sync.RunOpts) error {
	pidPath := config.PIDFilePath(cc.Cfg.DBPath)

	cleanup, err := writePIDFile(pidPath)
	if err != nil {
		return err
	}
	defer cleanup()

	reload := make(chan struct{}, 1)

	stopHUP := reloadOnSIGHUP(ctx, reload)
	defer stopHUP()

	stopWatch := watchConfigFile(ctx, cc.CfgPath, reload, cc.Logger)
	defer stopWatch()

	// One registry for the life of the watcher so the textfile keeps
	// counters and the last success time across cycles.
	m := metrics.New()

	cc.Statusf("Watching catalog every %s (PID file %s).\n", cc.Cfg.PollInterval, pidPath)

	loop := &watchLoop{
		holder: config.NewHolder(cc.Cfg, cc.CfgPath),
		resolve: func() (*config.Config, error) {
			return config.Resolve(config.ReadEnvOverrides(), cc.CLI)
		},
		cycle: func(ctx context.Context, cfg *config.Config) error {
			return runWatchCycle(ctx, cc, cfg, m, opts)
		},
		reload:    reload,
		logger:    cc.Logger,
		newTicker: realTicker,
	}

	return loop.run(ctx)
}

// runWatchCycle opens a fresh session per cycle so a reloaded db_path or
// api_key takes effect on the next tick. m is shared by every cycle.
func runWatchCycle(
	ctx context.Context, cc *CLIContext, cfg *config.Config, m *metrics.Metrics, opts sync.RunOpts,
) error {
	session, err := newSyncSession(ctx, cfg, m, cc.Logger)
	if err != nil {
		return err
	}
	defer session.Close()

	report, err := session.run(ctx, cfg, opts, cc.Logger)
	if report != nil && cc.Flags.JSON {
		if printErr := printJSON(os.Stdout, report); printErr != nil {
			return printErr
		}
	}

	return err
}

// requestReload queues a reload without blocking; one pending request is
// enough.
func requestReload(reload chan<- struct{}) {
	select {
	case reload <- struct{}{}:
	default:
	}
}

// watchConfigFile watches the directory holding path, since editors
// commonly replace files by rename. Failure to watch is logged and watch
// mode continues without file-change reloads.
func watchConfigFile(ctx context.Context, path string, reload chan<- struct{}, logger *slog.Logger) func() {
	noop := func() {}

	if path == "" {
		return noop
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config file watching unavailable", slog.String("error", err.Error()))

		return noop
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		logger.Warn("cannot watch config directory",
			slog.String("path", filepath.Dir(path)),
			slog.String("error", err.Error()),
		)

		return noop
	}

	go forwardConfigEvents(ctx, watcher, path, reload, logger)

	return func() { watcher.Close() }
}

func forwardConfigEvents(
	ctx context.Context, watcher *fsnotify.Watcher, path string,
	reload chan<- struct{}, logger *slog.Logger,
) {
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}

			if isConfigChange(ev, target) {
				logger.Debug("config file changed", slog.String("op", ev.Op.String()))
				requestReload(reload)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Warn("config watcher error", slog.String("error", err.Error()))
			}
		}
	}
}

func isConfigChange(ev fsnotify.Event, target string) bool {
	if filepath.Clean(ev.Name) != target {
		return false
	}

	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

// errWatchNotRunning is returned by watcherPID when no live watcher holds
// the PID file.
var errWatchNotRunning = errors.New("no sync --watch running")

// watcherPID returns the PID of a live sync --watch for dbPath. A PID file
// whose process is gone is treated as not running.
func watcherPID(dbPath string) (int, error) {
	pidPath := config.PIDFilePath(dbPath)

	pid, err := readPIDFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, errWatchNotRunning
		}

		return 0, err
	}

	if !processAlive(pid) {
		return 0, fmt.Errorf("%w (stale PID %d in %s)", errWatchNotRunning, pid, pidPath)
	}

	return pid, nil
}
