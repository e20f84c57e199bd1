package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"podscribe/internal/logging"
	"podscribe/internal/notifications"
)

// BatchSummary reports a directory run.
type BatchSummary struct {
	Results []Result
	Failed  map[string]error
	Elapsed time.Duration
}

// ListAudio returns the files in dir whose extension is in exts, sorted by
// name. Subdirectories and hidden files are skipped.
func ListAudio(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if len(allowed) > 0 && !allowed[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// RunDir transcribes every audio file in dir in name order. A failed file is
// logged and recorded in the summary; the batch continues. Cancellation stops
// the batch and is returned.
func (r *Runner) RunDir(ctx context.Context, dir string, exts []string) (BatchSummary, error) {
	started := time.Now()
	summary := BatchSummary{Failed: make(map[string]error)}
	files, err := ListAudio(dir, exts)
	if err != nil {
		return summary, err
	}
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("batch started", logging.String("dir", dir), logging.Int("files", len(files)))

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(started)
			return summary, err
		}
		logger.Info("batch item",
			logging.Int("item", i+1),
			logging.Int("total", len(files)),
			logging.String(logging.FieldSource, path),
		)
		result, err := r.Run(ctx, path)
		if err != nil {
			summary.Failed[path] = err
			logging.ErrorWithContext(logger, "batch item failed", "batch_item_failed",
				logging.String(logging.FieldSource, path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file skipped; batch continues"),
			)
			continue
		}
		summary.Results = append(summary.Results, result)
	}

	summary.Elapsed = time.Since(started)
	logger.Info("batch complete",
		logging.String("dir", dir),
		logging.Int("succeeded", len(summary.Results)),
		logging.Int("failed", len(summary.Failed)),
		logging.String("elapsed", FormatElapsed(summary.Elapsed)),
	)
	if r.notifier != nil && ctx.Err() == nil {
		err := r.notifier.Publish(context.WithoutCancel(ctx), notifications.EventBatchCompleted, notifications.Payload{
			"dir":       dir,
			"succeeded": strconv.Itoa(len(summary.Results)),
			"failed":    strconv.Itoa(len(summary.Failed)),
			"elapsed":   FormatElapsed(summary.Elapsed),
		})
		if err != nil {
			logging.WarnWithContext(logger, "notification not delivered", "notification_failed", logging.Error(err))
		}
	}
	return summary, ctx.Err()
}

// FormatElapsed renders d as "Xh Ym Z.ZZs".
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	seconds := (d % time.Minute).Seconds()
	return fmt.Sprintf("%dh %dm %.2fs", hours, minutes, seconds)
}
