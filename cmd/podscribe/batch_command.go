package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"podscribe/internal/pipeline"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "batch <directory>",
		Short: "Transcribe every recording in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()

			summary, runErr := s.service.RunDir(cmd.Context(), args[0], s.cfg.Watch.Extensions)
			out := cmd.OutOrStdout()
			if table := batchTable(summary); table != "" {
				fmt.Fprintln(out, table)
			}
			fmt.Fprintf(out, "Processed %d file(s), %d failed, in %s\n",
				len(summary.Results)+len(summary.Failed), len(summary.Failed), pipeline.FormatElapsed(summary.Elapsed))
			if runErr != nil {
				return runErr
			}
			if len(summary.Failed) > 0 {
				return fmt.Errorf("%d file(s) failed", len(summary.Failed))
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func batchTable(summary pipeline.BatchSummary) string {
	if len(summary.Results) == 0 && len(summary.Failed) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(summary.Results)+len(summary.Failed))
	for _, r := range summary.Results {
		rows = append(rows, []string{
			filepath.Base(r.Source),
			string(r.Status()),
			strconv.Itoa(r.Succeeded) + "/" + strconv.Itoa(r.Chunks),
			pipeline.FormatElapsed(r.Elapsed),
			r.Document,
		})
	}
	failed := make([]string, 0, len(summary.Failed))
	for path := range summary.Failed {
		failed = append(failed, path)
	}
	sort.Strings(failed)
	for _, path := range failed {
		rows = append(rows, []string{filepath.Base(path), "error", "-", "-", summary.Failed[path].Error()})
	}
	return renderTable([]column{
		col("File"), col("Status"), numCol("Chunks"), numCol("Elapsed"), col("Output"),
	}, rows)
}
