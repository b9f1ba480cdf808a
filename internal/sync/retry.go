package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// MaxAttempts bounds how many times one series is tried in a run.
const MaxAttempts = 5

// attemptState is the lifecycle of one series within a run.
type attemptState int

const (
	statePending attemptState = iota
	stateAttempting
	stateSucceeded
	stateAbandoned
)

func (s attemptState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateAttempting:
		return "attempting"
	case stateSucceeded:
		return "succeeded"
	case stateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// attemptTracker drives one series through pending -> attempting ->
// (succeeded | pending | abandoned). Retries are immediate. Permanent errors
// abandon on the first failure regardless of remaining attempts.
type attemptTracker struct {
	seriesID string
	state    attemptState
	attempts int
	lastErr  error
}

func newAttemptTracker(seriesID string) *attemptTracker {
	return &attemptTracker{seriesID: seriesID, state: statePending}
}

// begin moves pending to attempting. Returns false once the tracker has
// reached a terminal state.
func (t *attemptTracker) begin() bool {
	if t.state != statePending {
		return false
	}

	t.state = stateAttempting
	t.attempts++

	return true
}

// finish records the outcome of the current attempt.
func (t *attemptTracker) finish(err error) {
	if t.state != stateAttempting {
		panic(fmt.Sprintf("sync: attempt finished in state %s", t.state))
	}

	if err == nil {
		t.state = stateSucceeded
		t.lastErr = nil

		return
	}

	t.lastErr = err

	if isPermanent(err) || t.attempts >= MaxAttempts {
		t.state = stateAbandoned
		return
	}

	t.state = statePending
}

func (t *attemptTracker) succeeded() bool { return t.state == stateSucceeded }

// interrupted reports whether the series stopped because the run itself was
// canceled. Such a series was not given up on and is retried next run.
func (t *attemptTracker) interrupted() bool {
	return t.state == stateAbandoned &&
		(errors.Is(t.lastErr, context.Canceled) || errors.Is(t.lastErr, context.DeadlineExceeded))
}

// isPermanent reports whether retrying err within this run is pointless.
func isPermanent(err error) bool {
	return errors.Is(err, ErrMalformedFreshness) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// runWithRetry calls fn until it succeeds or the tracker abandons the
// series. It returns the final tracker so callers can inspect the outcome.
func runWithRetry(seriesID string, logger *slog.Logger, onAttempt func(), fn func(attempt int) error) *attemptTracker {
	t := newAttemptTracker(seriesID)

	for t.begin() {
		if onAttempt != nil {
			onAttempt()
		}

		err := fn(t.attempts)
		t.finish(err)

		if err != nil && t.state == statePending {
			logger.Warn("series sync failed, retrying",
				slog.String("series_id", seriesID),
				slog.Int("attempt", t.attempts),
				slog.Int("max_attempts", MaxAttempts),
				slog.String("error", err.Error()),
			)
		}
	}

	if t.interrupted() {
		logger.Info("series interrupted by shutdown", slog.String("series_id", seriesID))

		return t
	}

	if t.state == stateAbandoned {
		logger.Error("giving up on series",
			slog.String("series_id", seriesID),
			slog.Int("attempts", t.attempts),
			slog.String("error", t.lastErr.Error()),
		)
	}

	return t
}
