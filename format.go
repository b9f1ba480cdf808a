package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tonimelisma/fredsync/internal/sync"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Statusf prints a status message to stderr unless quiet mode is set.
// Method form of statusf, so callers need not thread `quiet bool` around.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// formatTime returns a compact timestamp for display.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	now := time.Now()

	// Same calendar year: show "Jan  2 15:04"
	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	// Different year: show "Jan  2  2006"
	return t.Format("Jan _2  2006")
}

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// printRunReport writes a human-readable summary of a sync run. Created
// series are listed before updated ones, each in write order.
func printRunReport(w io.Writer, r *sync.RunReport) {
	mode := "sync"
	if r.DryRun {
		mode = "dry run"
	}

	fmt.Fprintf(w, "%s %s: %d categories, %d series in %s\n",
		mode, r.RunID, r.Categories, r.Series, formatDuration(r.Duration))
	fmt.Fprintf(w, "  created:   %d\n", len(r.Created))
	fmt.Fprintf(w, "  updated:   %d\n", len(r.Updated))
	fmt.Fprintf(w, "  skipped:   %d\n", r.Skipped)
	fmt.Fprintf(w, "  abandoned: %d\n", len(r.Abandoned))

	printIDList(w, "created", r.Created)
	printIDList(w, "updated", r.Updated)
	printIDList(w, "abandoned", r.Abandoned)
}

func printIDList(w io.Writer, label string, ids []string) {
	if len(ids) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%s:\n", label)

	for _, id := range ids {
		fmt.Fprintf(w, "  %s\n", id)
	}
}
