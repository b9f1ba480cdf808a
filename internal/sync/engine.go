package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/fredsync/internal/fred"
	"github.com/tonimelisma/fredsync/internal/store"
)

// EngineConfig holds the options for NewEngine.
type EngineConfig struct {
	Client            CatalogClient // satisfied by *fred.Client
	Metrics           MetricStore   // satisfied by *store.Store
	Writer            SeriesWriter  // satisfied by *store.Store
	Recorder          RunRecorder   // optional: run ledger; nil skips recording
	Observer          RunObserver   // optional: metrics; nil disables
	Roots             []int         // [0] = whole catalog
	MinObservationEnd string        // YYYY-MM-DD cutoff
	SeriesFilter      []string      // optional allow-list
	ExpandWorkers     int           // concurrent category listings; <1 means 1
	Logger            *slog.Logger
}

// RunOpts holds per-run options for Run.
type RunOpts struct {
	DryRun bool
}

// Catalog is the result of discovery and expansion.
type Catalog struct {
	Categories []int
	Series     *SeriesSet
}

// Engine runs sync cycles: resolve roots, discover categories, expand
// series, then decide and sync each series in turn.
type Engine struct {
	client   CatalogClient
	writer   SeriesWriter
	recorder RunRecorder
	observer RunObserver
	decider  *Decider
	roots    []int
	filter   []string
	workers  int
	logger   *slog.Logger
	nowFunc  func() time.Time
}

// NewEngine validates cfg and returns an Engine. The cutoff is parsed here,
// once, and reused for every decision.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	if cfg.Client == nil || cfg.Metrics == nil || cfg.Writer == nil {
		return nil, errors.New("sync: engine requires a client, a metric store and a writer")
	}

	cutoff, err := ParseDate(cfg.MinObservationEnd)
	if err != nil {
		return nil, fmt.Errorf("sync: parsing min observation end %q: %w", cfg.MinObservationEnd, err)
	}

	if len(cfg.Roots) == 0 {
		return nil, ErrNoRoots
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workers := cfg.ExpandWorkers
	if workers < 1 {
		workers = 1
	}

	return &Engine{
		client:   cfg.Client,
		writer:   cfg.Writer,
		recorder: cfg.Recorder,
		observer: cfg.Observer,
		decider:  NewDecider(cutoff, cfg.Metrics, logger),
		roots:    append([]int(nil), cfg.Roots...),
		filter:   append([]string(nil), cfg.SeriesFilter...),
		workers:  workers,
		logger:   logger,
		nowFunc:  time.Now,
	}, nil
}

// BuildCatalog resolves roots, walks the category tree, and lists every
// series under it, narrowed to seriesFilter when that is non-empty. It
// needs no local state, so it also backs the read-only discover command.
func BuildCatalog(
	ctx context.Context,
	client CatalogClient,
	roots []int,
	seriesFilter []string,
	workers int,
	logger *slog.Logger,
) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	resolved, err := ResolveRoots(ctx, client, roots, logger)
	if err != nil {
		return nil, err
	}

	categories, err := DiscoverCategories(ctx, client, resolved, logger)
	if err != nil {
		return nil, err
	}

	set, err := ExpandAll(ctx, client, categories, workers, logger)
	if err != nil {
		return nil, err
	}

	newSeriesFilter(seriesFilter).apply(set, logger)

	return &Catalog{Categories: categories, Series: set}, nil
}

// Run executes one sync cycle. Discovery and expansion failures abort the
// run. Per-series failures are retried and, once exhausted, recorded as
// abandoned without stopping the run. If ctx is canceled mid-run, the
// report so far is returned together with the error.
func (e *Engine) Run(ctx context.Context, opts RunOpts) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		DryRun:    opts.DryRun,
		StartedAt: e.nowFunc(),
		Created:   []string{},
		Updated:   []string{},
		Abandoned: []string{},
	}

	e.logger.Info("sync run starting",
		slog.String("run_id", report.RunID),
		slog.Bool("dry_run", opts.DryRun),
		slog.Any("roots", e.roots),
	)

	runErr := e.run(ctx, opts, report)
	report.Duration = e.nowFunc().Sub(report.StartedAt)

	e.finish(ctx, report, runErr)

	return report, runErr
}

func (e *Engine) run(ctx context.Context, opts RunOpts, report *RunReport) error {
	catalog, err := BuildCatalog(ctx, e.client, e.roots, e.filter, e.workers, e.logger)
	if err != nil {
		return err
	}

	report.Categories = len(catalog.Categories)
	report.Series = catalog.Series.Len()

	for _, s := range catalog.Series.Items() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sync: run canceled: %w", err)
		}

		e.syncOne(ctx, s, opts, report)
	}

	return ctx.Err()
}

// syncOne drives a single series through the retry state machine and
// records the outcome in report.
func (e *Engine) syncOne(ctx context.Context, s fred.Series, opts RunOpts, report *RunReport) {
	var dec Decision

	onAttempt := func() {
		if e.observer != nil {
			e.observer.ObserveAttempt()
		}
	}

	t := runWithRetry(s.ID, e.logger, onAttempt, func(int) error {
		d, err := e.decider.Decide(ctx, &s)
		if err != nil {
			return err
		}

		dec = d

		if d.Action == ActionSkip || opts.DryRun {
			return nil
		}

		return e.syncSeries(ctx, &s)
	})

	if t.interrupted() {
		return
	}

	if !t.succeeded() {
		report.Abandoned = append(report.Abandoned, s.ID)
		if e.observer != nil {
			e.observer.ObserveAbandoned()
		}

		return
	}

	switch dec.Action {
	case ActionCreate:
		report.Created = append(report.Created, s.ID)
	case ActionUpdate:
		report.Updated = append(report.Updated, s.ID)
	case ActionSkip:
		report.Skipped++
	}

	if e.observer != nil {
		e.observer.ObserveDecision(dec.Action.String())
	}

	if dec.Action != ActionSkip {
		e.logger.Info("series synced",
			slog.String("series_id", s.ID),
			slog.String("action", dec.Action.String()),
			slog.String("prior_end", dec.PriorEnd),
			slog.String("new_end", dec.NewEnd),
			slog.Bool("dry_run", opts.DryRun),
		)
	}
}

// syncSeries fetches the categories, parent, tags and observations of s and
// writes them in one call. Nothing is written unless every fetch succeeds.
func (e *Engine) syncSeries(ctx context.Context, s *fred.Series) error {
	cats, err := e.client.SeriesCategories(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("sync: fetching categories of %s: %w", s.ID, err)
	}

	primary, err := PrimaryCategory(cats)
	if err != nil {
		return fmt.Errorf("sync: attributing %s: %w", s.ID, err)
	}

	parent, err := parentCategory(ctx, e.client, primary)
	if err != nil {
		return err
	}

	tags, err := e.client.SeriesTags(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("sync: fetching tags of %s: %w", s.ID, err)
	}

	obs, err := e.client.SeriesObservations(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("sync: fetching observations of %s: %w", s.ID, err)
	}

	if err := e.writer.WriteSeries(ctx, &store.SeriesRecord{
		Series:       *s,
		Category:     primary,
		Parent:       parent,
		Tags:         tags,
		Observations: obs,
	}); err != nil {
		return fmt.Errorf("sync: writing %s: %w", s.ID, err)
	}

	return nil
}

// finish logs the outcome, feeds metrics, and appends the run to the
// ledger. The ledger write outlives cancellation of ctx.
func (e *Engine) finish(ctx context.Context, report *RunReport, runErr error) {
	attrs := []any{
		slog.String("run_id", report.RunID),
		slog.Int("categories", report.Categories),
		slog.Int("series", report.Series),
		slog.Int("created", len(report.Created)),
		slog.Int("updated", len(report.Updated)),
		slog.Int("skipped", report.Skipped),
		slog.Int("abandoned", len(report.Abandoned)),
		slog.Duration("duration", report.Duration),
	}

	if runErr != nil {
		e.logger.Error("sync run failed", append(attrs, slog.String("error", runErr.Error()))...)
	} else {
		e.logger.Info("sync run complete", attrs...)
	}

	if e.observer != nil {
		e.observer.ObserveRun(report.Duration, runErr != nil)
	}

	if e.recorder == nil {
		return
	}

	rec := &store.RunRecord{
		ID:         report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.StartedAt.Add(report.Duration),
		DryRun:     report.DryRun,
		Categories: report.Categories,
		Series:     report.Series,
		Created:    len(report.Created),
		Updated:    len(report.Updated),
		Skipped:    report.Skipped,
		Abandoned:  len(report.Abandoned),
	}

	if runErr != nil {
		rec.Error = runErr.Error()
	}

	if err := e.recorder.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Warn("failed to record sync run",
			slog.String("run_id", report.RunID),
			slog.String("error", err.Error()),
		)
	}
}
