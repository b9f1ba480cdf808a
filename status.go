package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fredsync/internal/store"
)

const defaultStatusRuns = 5

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local mirror, recent sync runs, and watcher state",
		Long: `Display how many series are stored locally, the most recent sync runs from
the run ledger, and whether a sync --watch is running against the database.
Does not contact the FRED API.`,
		RunE: runStatus,
	}

	cmd.Flags().Int("limit", defaultStatusRuns, "number of recent runs to show")

	return cmd
}

// statusOutput is the JSON shape of the status command.
type statusOutput struct {
	DBPath     string      `json:"db_path"`
	DBExists   bool        `json:"db_exists"`
	Series     int         `json:"series"`
	WatcherPID int         `json:"watcher_pid,omitempty"`
	Runs       []statusRun `json:"runs"`
}

type statusRun struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`
	Categories int       `json:"categories"`
	Series     int       `json:"series"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`
	Abandoned  int       `json:"abandoned"`
	Error      string    `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	if limit < 1 {
		return fmt.Errorf("--limit must be at least 1, got %d", limit)
	}

	out, err := collectStatus(cmd.Context(), cc, limit)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(os.Stdout, out)
	}

	printStatus(os.Stdout, out)

	return nil
}

// collectStatus gathers status without creating a database that does not
// exist yet.
func collectStatus(ctx context.Context, cc *CLIContext, limit int) (*statusOutput, error) {
	out := &statusOutput{DBPath: cc.Cfg.DBPath, Runs: []statusRun{}}

	if pid, err := watcherPID(cc.Cfg.DBPath); err == nil {
		out.WatcherPID = pid
	} else if !errors.Is(err, errWatchNotRunning) {
		cc.Logger.Debug("reading watcher PID", slog.String("error", err.Error()))
	}

	if _, err := os.Stat(cc.Cfg.DBPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}

		return nil, fmt.Errorf("checking database: %w", err)
	}

	out.DBExists = true

	st, err := store.Open(ctx, cc.Cfg.DBPath, cc.Logger)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if out.Series, err = st.CountMetrics(ctx); err != nil {
		return nil, err
	}

	runs, err := st.RecentRuns(ctx, limit)
	if err != nil {
		return nil, err
	}

	for i := range runs {
		out.Runs = append(out.Runs, toStatusRun(&runs[i]))
	}

	return out, nil
}

func toStatusRun(r *store.RunRecord) statusRun {
	return statusRun{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DryRun:     r.DryRun,
		Categories: r.Categories,
		Series:     r.Series,
		Created:    r.Created,
		Updated:    r.Updated,
		Skipped:    r.Skipped,
		Abandoned:  r.Abandoned,
		Error:      r.Error,
	}
}

func printStatus(w io.Writer, s *statusOutput) {
	fmt.Fprintf(w, "Database: %s\n", s.DBPath)

	if !s.DBExists {
		fmt.Fprintln(w, "  not created yet; run 'fredsync sync'")
	} else {
		fmt.Fprintf(w, "  series stored: %d\n", s.Series)
	}

	if s.WatcherPID > 0 {
		fmt.Fprintf(w, "Watcher: running (PID %d)\n", s.WatcherPID)
	} else {
		fmt.Fprintln(w, "Watcher: not running")
	}

	if len(s.Runs) == 0 {
		return
	}

	fmt.Fprintln(w)

	headers := []string{"STARTED", "DURATION", "CREATED", "UPDATED", "SKIPPED", "ABANDONED", "RESULT"}
	rows := make([][]string, 0, len(s.Runs))

	for i := range s.Runs {
		r := &s.Runs[i]
		rows = append(rows, []string{
			formatTime(r.StartedAt),
			formatDuration(r.FinishedAt.Sub(r.StartedAt)),
			strconv.Itoa(r.Created),
			strconv.Itoa(r.Updated),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Abandoned),
			runResult(r),
		})
	}

	printTable(w, headers, rows)
}

func runResult(r *statusRun) string {
	switch {
	case r.Error != "":
		return "failed: " + r.Error
	case r.DryRun:
		return "dry run"
	default:
		return "ok"
	}
}
