package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"testing"
	"time"

	"github.com/tonimelisma/fredsync/internal/fred"
	"github.com/tonimelisma/fredsync/internal/store"
)

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

// fakeCatalog is an in-memory catalog with per-method call counters and
// injectable failures. Safe for concurrent use.
type fakeCatalog struct {
	mu gosync.Mutex

	categories map[int]fred.Category
	children   map[int][]int
	series     map[int][]fred.Series // category -> listed series
	seriesCats map[string][]fred.Category
	tags       map[string][]string
	obs        map[string][]fred.Observation

	// failures[key] is consumed one entry per call; a non-nil entry is
	// returned as the call's error. Keys look like "observations:GDP".
	failures map[string][]error

	childrenCalls     map[int]int
	categoryCalls     map[int]int
	pageCalls         map[int]int
	seriesCatsCalls   int
	tagsCalls         int
	observationsCalls int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		categories:    make(map[int]fred.Category),
		children:      make(map[int][]int),
		series:        make(map[int][]fred.Series),
		seriesCats:    make(map[string][]fred.Category),
		tags:          make(map[string][]string),
		obs:           make(map[string][]fred.Observation),
		failures:      make(map[string][]error),
		childrenCalls: make(map[int]int),
		categoryCalls: make(map[int]int),
		pageCalls:     make(map[int]int),
	}
}

func (f *fakeCatalog) addCategory(id, parent int, name string) {
	f.categories[id] = fred.Category{ID: id, ParentID: parent, Name: name}
	f.children[parent] = append(f.children[parent], id)
}

// addSeries lists s in category cat and gives it full detail data.
func (f *fakeCatalog) addSeries(cat int, s fred.Series) {
	f.series[cat] = append(f.series[cat], s)

	if _, ok := f.seriesCats[s.ID]; !ok {
		f.seriesCats[s.ID] = []fred.Category{f.categories[cat]}
		f.tags[s.ID] = []string{"usa"}
		f.obs[s.ID] = []fred.Observation{{Date: s.ObservationEnd, Value: 1}}
	}
}

func (f *fakeCatalog) failNext(key string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures[key] = append(f.failures[key], errs...)
}

// injected pops the next injected failure for key. Caller holds f.mu.
func (f *fakeCatalog) injected(key string) error {
	queue := f.failures[key]
	if len(queue) == 0 {
		return nil
	}

	f.failures[key] = queue[1:]

	return queue[0]
}

func (f *fakeCatalog) detailCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.seriesCatsCalls + f.tagsCalls + f.observationsCalls
}

func (f *fakeCatalog) CategoryChildren(ctx context.Context, id int) ([]fred.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.childrenCalls[id]++

	if err := f.injected(fmt.Sprintf("children:%d", id)); err != nil {
		return nil, err
	}

	var out []fred.Category
	for _, c := range f.children[id] {
		out = append(out, f.categories[c])
	}

	return out, ctx.Err()
}

func (f *fakeCatalog) Category(_ context.Context, id int) (*fred.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.categoryCalls[id]++

	if err := f.injected(fmt.Sprintf("category:%d", id)); err != nil {
		return nil, err
	}

	c, ok := f.categories[id]
	if !ok {
		return nil, &fred.APIError{StatusCode: 400, Endpoint: "/category", Message: "no such category", Err: fred.ErrNotFound}
	}

	return &c, nil
}

func (f *fakeCatalog) CategorySeries(_ context.Context, id, offset, limit int) ([]fred.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pageCalls[id]++

	if err := f.injected(fmt.Sprintf("page:%d", id)); err != nil {
		return nil, err
	}

	all := f.series[id]
	if offset >= len(all) {
		return nil, nil
	}

	end := min(offset+limit, len(all))

	return append([]fred.Series(nil), all[offset:end]...), nil
}

func (f *fakeCatalog) SeriesCategories(ctx context.Context, id string) ([]fred.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seriesCatsCalls++

	if err := f.injected("categories:" + id); err != nil {
		return nil, err
	}

	return f.seriesCats[id], ctx.Err()
}

func (f *fakeCatalog) SeriesTags(_ context.Context, id string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tagsCalls++

	if err := f.injected("tags:" + id); err != nil {
		return nil, err
	}

	return f.tags[id], nil
}

func (f *fakeCatalog) SeriesObservations(_ context.Context, id string) ([]fred.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.observationsCalls++

	if err := f.injected("observations:" + id); err != nil {
		return nil, err
	}

	return f.obs[id], nil
}

// fakeStore is an in-memory MetricStore and SeriesWriter.
type fakeStore struct {
	mu         gosync.Mutex
	metrics    map[string]*store.Metric
	written    []*store.SeriesRecord
	lookupErrs []error
	writeErrs  []error
	runs       []*store.RunRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{metrics: make(map[string]*store.Metric)}
}

func (s *fakeStore) put(id, end string) {
	s.metrics[id] = &store.Metric{SeriesID: id, ObservationEnd: end}
}

func (s *fakeStore) LookupMetric(_ context.Context, id string) (*store.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.lookupErrs) > 0 {
		err := s.lookupErrs[0]
		s.lookupErrs = s.lookupErrs[1:]

		if err != nil {
			return nil, err
		}
	}

	return s.metrics[id], nil
}

func (s *fakeStore) WriteSeries(_ context.Context, rec *store.SeriesRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.writeErrs) > 0 {
		err := s.writeErrs[0]
		s.writeErrs = s.writeErrs[1:]

		if err != nil {
			return err
		}
	}

	s.written = append(s.written, rec)
	s.metrics[rec.Series.ID] = &store.Metric{
		SeriesID:       rec.Series.ID,
		ObservationEnd: rec.Series.ObservationEnd,
		CategoryID:     rec.Category.ID,
	}

	return nil
}

func (s *fakeStore) RecordRun(_ context.Context, r *store.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, r)

	return nil
}

// recordingObserver counts RunObserver callbacks.
type recordingObserver struct {
	decisions map[string]int
	attempts  int
	abandoned int
	runs      int
	failed    int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{decisions: make(map[string]int)}
}

func (o *recordingObserver) ObserveDecision(action string) { o.decisions[action]++ }
func (o *recordingObserver) ObserveAttempt()               { o.attempts++ }
func (o *recordingObserver) ObserveAbandoned()             { o.abandoned++ }

func (o *recordingObserver) ObserveRun(_ time.Duration, failed bool) {
	o.runs++
	if failed {
		o.failed++
	}
}
