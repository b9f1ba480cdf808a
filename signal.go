package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context that cancels on the first SIGINT/SIGTERM
// and force-exits on the second. The first signal lets the engine abandon the
// series in flight and record the run; the second is for when that hangs.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("received signal, stopping after current series",
				slog.String("signal", sig.String()),
			)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit",
				slog.String("signal", sig.String()),
			)
			os.Exit(1)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}

// reloadOnSIGHUP queues a config reload on each SIGHUP until ctx is done or
// the returned stop function is called.
func reloadOnSIGHUP(ctx context.Context, reload chan<- struct{}) (stop func()) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-hup:
				requestReload(reload)
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(hup)
		close(done)
	}
}
