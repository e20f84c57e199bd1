package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podscribe/internal/ledger"
	"podscribe/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether podscribe is ready to transcribe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			section := func(title string, lines []string) {
				for _, line := range renderSectionHeader(title, colorize) {
					fmt.Fprintln(out, line)
				}
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out)
			}

			section("Configuration", []string{
				renderStatusLine("Config", statusInfo, ctx.configPath, colorize),
				renderStatusLine("Backend", statusInfo, cfg.Recognizer.Backend, colorize),
				renderStatusLine("Language", statusInfo, cfg.Pipeline.Language, colorize),
				renderStatusLine("Normalize script", statusInfo, yesNo(cfg.Pipeline.NormalizeScript), colorize),
				renderStatusLine("Output", statusInfo, cfg.Paths.OutputDir+" ("+cfg.Output.Format+")", colorize),
			})

			section("Dependencies", dependencyLines(preflight.CheckSystemDeps(cmd.Context(), cfg), colorize))

			results := preflight.RunAll(cmd.Context(), cfg)
			if probe {
				results = append(results, preflight.CheckRecognizer(cmd.Context(), cfg))
			}
			section("Checks", checkLines(results, colorize))

			if lines := lastRunLines(cmd, cfg.LedgerPath(), colorize); len(lines) > 0 {
				section("Last run", lines)
			}
			return preflight.Err(results)
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "Also contact the configured recognizer")
	return cmd
}

func lastRunLines(cmd *cobra.Command, path string, colorize bool) []string {
	store, err := ledger.Open(path)
	if err != nil {
		return []string{renderStatusLine("Ledger", statusWarn, err.Error(), colorize)}
	}
	defer store.Close()
	runs, err := store.ListRuns(cmd.Context(), 1)
	if err != nil {
		return []string{renderStatusLine("Ledger", statusWarn, err.Error(), colorize)}
	}
	if len(runs) == 0 {
		return nil
	}
	run := runs[0]
	return []string{
		renderStatusLine("Source", statusInfo, run.SourcePath, colorize),
		renderStatusLine("Status", runStatusKind(run.Status), string(run.Status), colorize),
		renderStatusLine("Started", statusInfo, run.StartedAt.Local().Format("2006-01-02 15:04:05"), colorize),
	}
}
