package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fredsync/internal/config"
	"github.com/tonimelisma/fredsync/internal/sync"
)

func newDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the categories and series a sync would visit",
		Long: `Walk the category tree under the configured roots and list every series,
without consulting or writing the local database. With --json, prints the
category IDs and series IDs.`,
		RunE: runDiscover,
	}

	addCatalogFlags(cmd)

	return cmd
}

// discoverOutput is the JSON shape of the discover command.
type discoverOutput struct {
	Categories []int    `json:"categories"`
	Series     []string `json:"series"`
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if err := config.RequireAPIKey(cc.Cfg); err != nil {
		return err
	}

	ctx := shutdownContext(cmd.Context(), cc.Logger)
	client := newFredClient(cc.Cfg, nil, cc.Logger)

	catalog, err := sync.BuildCatalog(ctx, client, cc.Cfg.RootCategories,
		cc.Cfg.SeriesFilter, cc.Cfg.ExpandWorkers, cc.Logger)
	if err != nil {
		return err
	}

	out := toDiscoverOutput(catalog)

	if cc.Flags.JSON {
		return printJSON(os.Stdout, out)
	}

	printDiscover(os.Stdout, out)

	return nil
}

func toDiscoverOutput(c *sync.Catalog) *discoverOutput {
	items := c.Series.Items()
	ids := make([]string, len(items))

	for i := range items {
		ids[i] = items[i].ID
	}

	return &discoverOutput{Categories: c.Categories, Series: ids}
}

func printDiscover(w io.Writer, d *discoverOutput) {
	fmt.Fprintf(w, "%d categories, %d series\n", len(d.Categories), len(d.Series))
}
