package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tonimelisma/fredsync/internal/config"
	"github.com/tonimelisma/fredsync/internal/fred"
	"github.com/tonimelisma/fredsync/internal/metrics"
	"github.com/tonimelisma/fredsync/internal/store"
	"github.com/tonimelisma/fredsync/internal/sync"
)

// newHTTPClient returns the HTTP client used for FRED API calls. The
// timeout bounds each request, including reading the body.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// newFredClient builds a rate-limited FRED client from cfg. m may be nil.
func newFredClient(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *fred.Client {
	client := fred.NewClient(cfg.BaseURL, cfg.APIKey, newHTTPClient(cfg.RequestTimeoutDuration()), logger)
	client.SetRequestsPerMinute(cfg.RequestsPerMinute)

	if m != nil {
		client.SetObserver(m)
	}

	return client
}

// syncSession bundles the resources one sync cycle needs. Close releases
// the store.
type syncSession struct {
	store   *store.Store
	engine  *sync.Engine
	metrics *metrics.Metrics
}

// newSyncSession opens the store and wires client, metrics and engine
// together for cfg. m outlives the session so watch mode can accumulate
// counters across cycles; nil gets a fresh registry.
func newSyncSession(
	ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger,
) (*syncSession, error) {
	if err := config.RequireAPIKey(cfg); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}

	if m == nil {
		m = metrics.New()
	}

	client := newFredClient(cfg, m, logger)

	engine, err := sync.NewEngine(&sync.EngineConfig{
		Client:            client,
		Metrics:           st,
		Writer:            st,
		Recorder:          st,
		Observer:          m,
		Roots:             cfg.RootCategories,
		MinObservationEnd: cfg.MinObservationEnd,
		SeriesFilter:      cfg.SeriesFilter,
		ExpandWorkers:     cfg.ExpandWorkers,
		Logger:            logger,
	})
	if err != nil {
		st.Close()

		return nil, fmt.Errorf("creating sync engine: %w", err)
	}

	return &syncSession{store: st, engine: engine, metrics: m}, nil
}

// run executes one cycle and flushes metrics to the configured textfile.
// A textfile failure is logged, never returned.
func (s *syncSession) run(ctx context.Context, cfg *config.Config, opts sync.RunOpts, logger *slog.Logger) (*sync.RunReport, error) {
	report, err := s.engine.Run(ctx, opts)

	if writeErr := s.metrics.WriteTextfile(cfg.MetricsFile); writeErr != nil {
		logger.Warn("failed to write metrics textfile",
			slog.String("path", cfg.MetricsFile),
			slog.String("error", writeErr.Error()),
		)
	}

	return report, err
}

func (s *syncSession) Close() error {
	return s.store.Close()
}
