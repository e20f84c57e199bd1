package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"podscribe/internal/ledger"
	"podscribe/internal/pipeline"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded transcription runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg.LedgerPath())
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()

			if id := strings.TrimSpace(runID); id != "" {
				run, err := store.GetRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				chunks, err := store.Chunks(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, struct {
						Run    ledger.Run     `json:"run"`
						Chunks []ledger.Chunk `json:"chunks"`
					}{run, chunks})
				}
				printRunDetail(cmd, run, chunks)
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, runsTable(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show one run with its chunks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func runsTable(runs []ledger.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			filepath.Base(r.SourcePath),
			string(r.Status),
			r.Backend,
			strconv.Itoa(r.Succeeded) + "/" + strconv.Itoa(r.ChunkCount),
			elapsedCell(r),
		})
	}
	return renderTable([]column{
		col("Run"), col("Started"), col("Source"), col("Status"), col("Backend"), numCol("Chunks"), numCol("Elapsed"),
	}, rows)
}

func printRunDetail(cmd *cobra.Command, run ledger.Run, chunks []ledger.Chunk) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Run "+run.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", runStatusKind(run.Status), string(run.Status), colorize))
	fmt.Fprintln(out, renderStatusLine("Source", statusInfo, run.SourcePath, colorize))
	fmt.Fprintln(out, renderStatusLine("Backend", statusInfo, run.Backend, colorize))
	if run.Language != "" {
		fmt.Fprintln(out, renderStatusLine("Language", statusInfo, run.Language, colorize))
	}
	if run.Strategy != "" {
		fmt.Fprintln(out, renderStatusLine("Strategy", statusInfo, run.Strategy, colorize))
	}
	if run.OutputPath != "" {
		fmt.Fprintln(out, renderStatusLine("Output", statusInfo, run.OutputPath, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Started", statusInfo, run.StartedAt.Local().Format(time.RFC3339), colorize))
	fmt.Fprintln(out, renderStatusLine("Elapsed", statusInfo, elapsedCell(run), colorize))
	if run.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, run.ErrorMessage, colorize))
	}
	if len(chunks) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, chunksTable(chunks))
}

func chunksTable(chunks []ledger.Chunk) string {
	rows := make([][]string, 0, len(chunks))
	for _, c := range chunks {
		result := "ok"
		if !c.OK {
			result = c.ErrorKind
			if c.ErrorMessage != "" {
				result += ": " + c.ErrorMessage
			}
		}
		rows = append(rows, []string{
			strconv.Itoa(c.Index),
			clockCell(c.Offset),
			clockCell(c.Duration),
			strconv.Itoa(c.Segments),
			pipeline.FormatElapsed(c.Elapsed),
			result,
		})
	}
	return renderTable([]column{
		numCol("#"), numCol("Offset"), numCol("Length"), numCol("Segments"), numCol("Elapsed"), col("Result"),
	}, rows)
}

func elapsedCell(r ledger.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return pipeline.FormatElapsed(r.Elapsed())
}

func clockCell(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
