package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fredsync/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigReloadCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if cc.Flags.JSON {
		return printJSON(os.Stdout, redactedConfig(cc.Cfg))
	}

	return config.RenderEffective(cc.Cfg, cc.CfgPath, os.Stdout)
}

// redactedConfig returns a copy of cfg safe to print.
func redactedConfig(cfg *config.Config) *config.Config {
	out := *cfg
	out.APIKey = config.RedactKey(cfg.APIKey)

	return &out
}

func newConfigReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask a running sync --watch to reload its configuration",
		Long: `Send SIGHUP to the sync --watch process holding the PID file for the
configured database. The watcher re-reads the config file and environment;
an invalid config is logged and the previous one kept.`,
		RunE: runConfigReload,
	}
}

func runConfigReload(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	pid, err := sendSIGHUP(config.PIDFilePath(cc.Cfg.DBPath))
	if err != nil {
		return err
	}

	cc.Statusf("Reload requested (PID %d).\n", pid)

	return nil
}
