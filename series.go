package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fredsync/internal/fred"
	"github.com/tonimelisma/fredsync/internal/store"
)

const defaultSeriesTail = 10

// errSeriesNotStored is returned when the requested series has never been
// synced into the local database.
var errSeriesNotStored = errors.New("series not stored")

func newSeriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series <id>",
		Short: "Show a stored series and its latest observations",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeries,
	}

	cmd.Flags().Int("tail", defaultSeriesTail, "number of most recent observations to show (0 = none)")

	return cmd
}

// seriesOutput is the JSON shape of the series command. Missing values
// encode as null.
type seriesOutput struct {
	SeriesID         string              `json:"series_id"`
	Title            string              `json:"title"`
	ObservationEnd   string              `json:"observation_end"`
	CategoryID       int                 `json:"category_id"`
	ParentCategoryID int                 `json:"parent_category_id"`
	Tags             []string            `json:"tags"`
	UpdatedAt        time.Time           `json:"updated_at"`
	Observations     int                 `json:"observations"`
	Tail             []seriesObservation `json:"tail"`
}

type seriesObservation struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

func runSeries(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	tail, err := cmd.Flags().GetInt("tail")
	if err != nil {
		return err
	}

	if tail < 0 {
		return fmt.Errorf("--tail must not be negative, got %d", tail)
	}

	out, err := loadSeries(cmd.Context(), cc, strings.TrimSpace(args[0]), tail)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(os.Stdout, out)
	}

	printSeries(os.Stdout, out)

	return nil
}

func loadSeries(ctx context.Context, cc *CLIContext, id string, tail int) (*seriesOutput, error) {
	if _, err := os.Stat(cc.Cfg.DBPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (no database at %s)", errSeriesNotStored, id, cc.Cfg.DBPath)
		}

		return nil, fmt.Errorf("checking database: %w", err)
	}

	st, err := store.Open(ctx, cc.Cfg.DBPath, cc.Logger)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	m, err := st.LookupMetric(ctx, id)
	if err != nil {
		return nil, err
	}

	if m == nil {
		return nil, fmt.Errorf("%w: %s", errSeriesNotStored, id)
	}

	obs, err := st.Observations(ctx, id)
	if err != nil {
		return nil, err
	}

	return toSeriesOutput(m, obs, tail), nil
}

func toSeriesOutput(m *store.Metric, obs []fred.Observation, tail int) *seriesOutput {
	out := &seriesOutput{
		SeriesID:         m.SeriesID,
		Title:            m.Title,
		ObservationEnd:   m.ObservationEnd,
		CategoryID:       m.CategoryID,
		ParentCategoryID: m.ParentCategoryID,
		Tags:             m.Tags,
		UpdatedAt:        m.UpdatedAt,
		Observations:     len(obs),
		Tail:             []seriesObservation{},
	}

	if out.Tags == nil {
		out.Tags = []string{}
	}

	start := max(len(obs)-tail, 0)

	for _, o := range obs[start:] {
		so := seriesObservation{Date: o.Date}
		if !o.Missing {
			v := o.Value
			so.Value = &v
		}

		out.Tail = append(out.Tail, so)
	}

	return out
}

func printSeries(w io.Writer, s *seriesOutput) {
	fmt.Fprintf(w, "%s  %s\n", s.SeriesID, s.Title)
	fmt.Fprintf(w, "  observation end: %s\n", s.ObservationEnd)
	fmt.Fprintf(w, "  category:        %d (parent %d)\n", s.CategoryID, s.ParentCategoryID)
	fmt.Fprintf(w, "  tags:            %s\n", strings.Join(s.Tags, ", "))
	fmt.Fprintf(w, "  synced:          %s\n", formatTime(s.UpdatedAt))
	fmt.Fprintf(w, "  observations:    %d\n", s.Observations)

	if len(s.Tail) == 0 {
		return
	}

	fmt.Fprintln(w)

	rows := make([][]string, 0, len(s.Tail))
	for _, o := range s.Tail {
		value := "."
		if o.Value != nil {
			value = strconv.FormatFloat(*o.Value, 'f', -1, 64)
		}

		rows = append(rows, []string{o.Date, value})
	}

	printTable(w, []string{"DATE", "VALUE"}, rows)
}
