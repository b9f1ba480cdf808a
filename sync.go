package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fredsync/internal/metrics"
	"github.com/tonimelisma/fredsync/internal/sync"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror new and updated FRED series into the local database",
		Long: `Run a sync cycle: walk the category tree under the configured roots, list
every series, and fetch metadata, tags and observations for each series that
is new or whose observation_end has advanced. Series whose observation_end is
before min_observation_end are skipped.

Use --dry-run to see what would be created or updated without fetching
details or writing anything. Use --watch to repeat the cycle every
poll_interval until interrupted.`,
		RunE: runSync,
	}

	cmd.Flags().Bool("dry-run", false, "decide and report without fetching details or writing")
	cmd.Flags().Bool("watch", false, "run continuously, one cycle every poll_interval")
	addCatalogFlags(cmd)

	return cmd
}

// addCatalogFlags registers the flags that select which part of the
// catalog is walked. Shared by sync and discover.
func addCatalogFlags(cmd *cobra.Command) {
	cmd.Flags().IntSlice("root", nil, "root category IDs (0 = whole catalog)")
	cmd.Flags().String("min-observation-end", "", "skip series whose observation_end is before this date (YYYY-MM-DD)")
	cmd.Flags().StringSlice("series", nil, "only sync these series IDs")
}

func runSync(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return err
	}

	ctx := shutdownContext(cmd.Context(), cc.Logger)
	opts := sync.RunOpts{DryRun: dryRun}

	if watch {
		return runWatch(ctx, cc, opts)
	}

	return runSyncOnce(ctx, cc, opts)
}

// runSyncOnce performs a single cycle and prints its report. A partial
// report from an interrupted run is still printed before the error is
// returned.
func runSyncOnce(ctx context.Context, cc *CLIContext, opts sync.RunOpts) error {
	session, err := newSyncSession(ctx, cc.Cfg, metrics.New(), cc.Logger)
	if err != nil {
		return err
	}
	defer session.Close()

	if opts.DryRun {
		cc.Statusf("Dry run: nothing will be written.\n")
	}

	report, runErr := session.run(ctx, cc.Cfg, opts, cc.Logger)
	if report != nil {
		if err := printSyncReport(cc, report); err != nil {
			return err
		}
	}

	return runErr
}

func printSyncReport(cc *CLIContext, report *sync.RunReport) error {
	if cc.Flags.JSON {
		return printJSON(os.Stdout, report)
	}

	printRunReport(os.Stdout, report)

	return nil
}
