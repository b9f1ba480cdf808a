package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/fredsync/internal/fred"
)

// SeriesPageLimit is the page size used when listing a category's series.
// It matches the largest page the catalog serves.
const SeriesPageLimit = fred.MaxPageLimit

// SeriesSet is an insertion-ordered set of series keyed by ID. Adding a
// series whose ID is already present is a no-op, so the first occurrence
// wins. Safe for concurrent use.
type SeriesSet struct {
	mu    gosync.Mutex
	index map[string]int
	items []fred.Series
}

// NewSeriesSet returns an empty set.
func NewSeriesSet() *SeriesSet {
	return &SeriesSet{index: make(map[string]int)}
}

// Add inserts s unless a series with the same ID is present. Returns true
// if s was inserted.
func (ss *SeriesSet) Add(s fred.Series) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if _, ok := ss.index[s.ID]; ok {
		return false
	}

	ss.index[s.ID] = len(ss.items)
	ss.items = append(ss.items, s)

	return true
}

// Len returns the number of distinct series.
func (ss *SeriesSet) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	return len(ss.items)
}

// Items returns a copy of the series in first-seen order.
func (ss *SeriesSet) Items() []fred.Series {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	out := make([]fred.Series, len(ss.items))
	copy(out, ss.items)

	return out
}

// Retain drops every series whose ID is not in ids, preserving order.
func (ss *SeriesSet) Retain(ids map[string]bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	kept := ss.items[:0]
	ss.index = make(map[string]int, len(ids))

	for _, s := range ss.items {
		if !ids[s.ID] {
			continue
		}

		ss.index[s.ID] = len(kept)
		kept = append(kept, s)
	}

	ss.items = kept
}

// ExpandCategory lists every series directly in a category by walking pages
// of SeriesPageLimit. Paging stops at the first page shorter than the limit,
// including an empty one; the total count reported by the server is not
// consulted.
func ExpandCategory(ctx context.Context, client CatalogClient, categoryID int) ([]fred.Series, error) {
	var all []fred.Series

	for offset := 0; ; offset += SeriesPageLimit {
		page, err := client.CategorySeries(ctx, categoryID, offset, SeriesPageLimit)
		if err != nil {
			return nil, fmt.Errorf("sync: listing series of category %d at offset %d: %w",
				categoryID, offset, err)
		}

		all = append(all, page...)

		if len(page) < SeriesPageLimit {
			return all, nil
		}
	}
}

// ExpandAll expands every category and merges the results into one
// deduplicated set. Up to workers categories are listed concurrently; the
// per-category results are merged in category order afterward so the set's
// order does not depend on scheduling. The first failure cancels the
// remaining work and is returned.
func ExpandAll(
	ctx context.Context,
	client CatalogClient,
	categories []int,
	workers int,
	logger *slog.Logger,
) (*SeriesSet, error) {
	if workers < 1 {
		workers = 1
	}

	pages := make([][]fred.Series, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, id := range categories {
		g.Go(func() error {
			series, err := ExpandCategory(gctx, client, id)
			if err != nil {
				return err
			}

			logger.Debug("category expanded",
				slog.Int("category_id", id),
				slog.Int("series", len(series)),
			)

			pages[i] = series

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := NewSeriesSet()
	listed := 0

	for _, page := range pages {
		listed += len(page)

		for _, s := range page {
			set.Add(s)
		}
	}

	logger.Info("series expansion complete",
		slog.Int("categories", len(categories)),
		slog.Int("listed", listed),
		slog.Int("distinct", set.Len()),
	)

	return set, nil
}
