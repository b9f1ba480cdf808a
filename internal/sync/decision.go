package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/fredsync/internal/fred"
)

// Decider classifies a listed series as create, update, or skip by comparing
// its remote observation_end with the cutoff and with the stored marker.
type Decider struct {
	cutoff time.Time
	store  MetricStore
	logger *slog.Logger
}

// NewDecider returns a Decider for an already-parsed cutoff.
func NewDecider(cutoff time.Time, store MetricStore, logger *slog.Logger) *Decider {
	if logger == nil {
		logger = slog.Default()
	}

	return &Decider{cutoff: cutoff, store: store, logger: logger}
}

// ParseDate parses a catalog date (YYYY-MM-DD) as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(fred.DateLayout, s, time.UTC)
}

// Decide returns the action for s. A remote marker that does not parse is
// reported as ErrMalformedFreshness. A stored marker that does not parse is
// treated as older than anything, so the series is rewritten.
func (d *Decider) Decide(ctx context.Context, s *fred.Series) (Decision, error) {
	dec := Decision{SeriesID: s.ID, NewEnd: s.ObservationEnd}

	remoteEnd, err := ParseDate(s.ObservationEnd)
	if err != nil {
		return dec, fmt.Errorf("%w: series %s: %q", ErrMalformedFreshness, s.ID, s.ObservationEnd)
	}

	if remoteEnd.Before(d.cutoff) {
		dec.Action = ActionSkip
		dec.Reason = "observation_end before cutoff"
		d.log(dec)

		return dec, nil
	}

	stored, err := d.store.LookupMetric(ctx, s.ID)
	if err != nil {
		return dec, fmt.Errorf("sync: looking up stored metric for %s: %w", s.ID, err)
	}

	if stored == nil {
		dec.Action = ActionCreate
		dec.Reason = "not stored"
		d.log(dec)

		return dec, nil
	}

	dec.PriorEnd = stored.ObservationEnd

	storedEnd, err := ParseDate(stored.ObservationEnd)

	switch {
	case err != nil:
		dec.Action = ActionUpdate
		dec.Reason = "stored observation_end unparseable"
	case storedEnd.Before(remoteEnd):
		dec.Action = ActionUpdate
		dec.Reason = "remote has newer observations"
	default:
		dec.Action = ActionSkip
		dec.Reason = "up to date"
	}

	d.log(dec)

	return dec, nil
}

// log records every decision at info, cutoff skips included, as the
// per-series audit trail of a run.
func (d *Decider) log(dec Decision) {
	d.logger.Info("sync decision",
		slog.String("series_id", dec.SeriesID),
		slog.String("action", dec.Action.String()),
		slog.String("prior_end", dec.PriorEnd),
		slog.String("new_end", dec.NewEnd),
		slog.String("reason", dec.Reason),
	)
}
