package sync

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fredsync/internal/fred"
)

func seriesN(prefix string, n int) []fred.Series {
	out := make([]fred.Series, n)
	for i := range out {
		out[i] = fred.Series{ID: fmt.Sprintf("%s%04d", prefix, i), ObservationEnd: "2024-01-01"}
	}

	return out
}

func TestExpandCategory_Pagination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		count     int
		wantPages int
	}{
		{"empty category", 0, 1},
		{"short first page", 3, 1},
		{"exact page then empty page", SeriesPageLimit, 2},
		{"full page then short page", SeriesPageLimit + 1, 2},
		{"two full pages then empty", 2 * SeriesPageLimit, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFakeCatalog()
			f.series[7] = seriesN("S", tt.count)

			got, err := ExpandCategory(context.Background(), f, 7)
			require.NoError(t, err)

			assert.Len(t, got, tt.count)
			assert.Equal(t, tt.wantPages, f.pageCalls[7])
		})
	}
}

func TestExpandCategory_PageErrorPropagates(t *testing.T) {
	t.Parallel()

	f := newFakeCatalog()
	f.series[7] = seriesN("S", SeriesPageLimit+5)
	f.failNext("page:7", nil, fred.ErrThrottled)

	_, err := ExpandCategory(context.Background(), f, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, fred.ErrThrottled)
	assert.Contains(t, err.Error(), "offset 1000")
}

func TestExpandAll_DeduplicatesFirstSeenWins(t *testing.T) {
	t.Parallel()

	f := newFakeCatalog()
	f.series[1] = []fred.Series{{ID: "A", Title: "from 1"}, {ID: "B"}}
	f.series[2] = []fred.Series{{ID: "B", Title: "from 2"}, {ID: "C"}}

	set, err := ExpandAll(context.Background(), f, []int{1, 2}, 1, testLogger(t))
	require.NoError(t, err)

	items := set.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []string{"A", "B", "C"}, ids(items))
	assert.Equal(t, "from 1", items[0].Title)
	assert.Empty(t, items[1].Title, "first occurrence of B is kept")
}

func TestExpandAll_OrderIndependentOfWorkers(t *testing.T) {
	t.Parallel()

	f := newFakeCatalog()

	var cats []int
	for c := 1; c <= 20; c++ {
		cats = append(cats, c)
		f.series[c] = seriesN(fmt.Sprintf("C%02d-", c), c*7)
		// Every category also lists a shared series.
		f.series[c] = append(f.series[c], fred.Series{ID: "SHARED"})
	}

	serial, err := ExpandAll(context.Background(), f, cats, 1, testLogger(t))
	require.NoError(t, err)

	parallel, err := ExpandAll(context.Background(), f, cats, 8, testLogger(t))
	require.NoError(t, err)

	assert.Equal(t, ids(serial.Items()), ids(parallel.Items()))
}

func TestExpandAll_FirstErrorAborts(t *testing.T) {
	t.Parallel()

	f := newFakeCatalog()
	f.series[1] = seriesN("A", 2)
	f.failNext("page:2", fred.ErrServerError)

	set, err := ExpandAll(context.Background(), f, []int{1, 2, 3}, 3, testLogger(t))
	require.Error(t, err)
	assert.Nil(t, set)
	assert.ErrorIs(t, err, fred.ErrServerError)
}

func TestSeriesSet_Retain(t *testing.T) {
	t.Parallel()

	set := NewSeriesSet()
	for _, id := range []string{"A", "B", "C", "D"} {
		assert.True(t, set.Add(fred.Series{ID: id}))
	}

	assert.False(t, set.Add(fred.Series{ID: "A"}))

	set.Retain(map[string]bool{"D": true, "B": true, "Z": true})
	assert.Equal(t, []string{"B", "D"}, ids(set.Items()))

	// Index is rebuilt: re-adding a retained ID is still rejected.
	assert.False(t, set.Add(fred.Series{ID: "D"}))
	assert.True(t, set.Add(fred.Series{ID: "A"}))
}

func ids(series []fred.Series) []string {
	out := make([]string, len(series))
	for i, s := range series {
		out[i] = s.ID
	}

	return out
}
