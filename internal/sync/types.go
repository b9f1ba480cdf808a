// Package sync implements the catalog synchronization engine for fredsync:
// category discovery, paginated series expansion, the create/update/skip
// decision policy, and the bounded-retry per-series executor.
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/tonimelisma/fredsync/internal/fred"
	"github.com/tonimelisma/fredsync/internal/store"
)

// Action is the outcome of the decision policy for one series.
type Action int

// Actions produced by the Decider.
const (
	ActionSkip   Action = iota // nothing new, or too stale to track
	ActionCreate               // never stored before
	ActionUpdate               // stored freshness is older than remote
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Decision records why a series was classified the way it was. PriorEnd is
// empty when there is no stored metric.
type Decision struct {
	SeriesID string
	Action   Action
	PriorEnd string
	NewEnd   string
	Reason   string
}

// Sentinel errors.
var (
	// ErrMalformedFreshness marks a series whose remote observation_end does
	// not parse. Retrying cannot fix it, so the executor abandons the series
	// without further attempts.
	ErrMalformedFreshness = errors.New("sync: malformed observation_end")

	// ErrNoCategories is returned when a series reports no categories, so no
	// primary category can be attributed.
	ErrNoCategories = errors.New("sync: series has no categories")

	// ErrNoRoots is returned when root resolution leaves nothing to traverse.
	ErrNoRoots = errors.New("sync: no root categories")
)

// RunReport summarizes one sync run. Created and Updated preserve the order
// in which series were written.
type RunReport struct {
	RunID      string        `json:"run_id"`
	DryRun     bool          `json:"dry_run"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Categories int           `json:"categories"`
	Series     int           `json:"series"`
	Skipped    int           `json:"skipped"`
	Created    []string      `json:"created"`
	Updated    []string      `json:"updated"`
	Abandoned  []string      `json:"abandoned"`
}

// --- Consumer-defined interfaces ---
// These decouple the engine from the concrete FRED client and SQLite store,
// following the "accept interfaces, return structs" Go convention.

// CatalogClient reads the remote category/series catalog. Satisfied by
// *fred.Client.
type CatalogClient interface {
	CategoryChildren(ctx context.Context, categoryID int) ([]fred.Category, error)
	Category(ctx context.Context, categoryID int) (*fred.Category, error)
	CategorySeries(ctx context.Context, categoryID, offset, limit int) ([]fred.Series, error)
	SeriesCategories(ctx context.Context, seriesID string) ([]fred.Category, error)
	SeriesTags(ctx context.Context, seriesID string) ([]string, error)
	SeriesObservations(ctx context.Context, seriesID string) ([]fred.Observation, error)
}

// MetricStore looks up previously stored state. Satisfied by *store.Store.
// A nil metric with a nil error means the series was never stored.
type MetricStore interface {
	LookupMetric(ctx context.Context, seriesID string) (*store.Metric, error)
}

// SeriesWriter persists a fully fetched series. Satisfied by *store.Store.
type SeriesWriter interface {
	WriteSeries(ctx context.Context, rec *store.SeriesRecord) error
}

// RunRecorder appends finished runs to a ledger. Optional; satisfied by
// *store.Store.
type RunRecorder interface {
	RecordRun(ctx context.Context, r *store.RunRecord) error
}

// RunObserver receives per-series outcomes for metrics. Optional; satisfied
// by *metrics.Metrics.
type RunObserver interface {
	ObserveDecision(action string)
	ObserveAttempt()
	ObserveAbandoned()
	ObserveRun(duration time.Duration, failed bool)
}
