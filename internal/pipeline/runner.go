package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"podscribe/internal/ledger"
	"podscribe/internal/logging"
	"podscribe/internal/media/audio"
	"podscribe/internal/notifications"
	"podscribe/internal/orchestrator"
	"podscribe/internal/render"
	"podscribe/internal/runlock"
	"podscribe/internal/segment"
	"podscribe/internal/tracing"
	"podscribe/internal/transcript"
)

// Splitter divides a clip into chunks. *segment.Engine implements it.
type Splitter interface {
	Split(ctx context.Context, clip audio.Clip, outDir string) ([]segment.Chunk, error)
}

// Config holds per-run settings.
type Config struct {
	OutputDir       string
	Language        string
	NormalizeScript bool
	Format          render.Format
	Title           string
	OffsetMode      transcript.OffsetMode
	// Backend is recorded in the ledger.
	Backend string
	// LockPath enables the cross-process run lock when set.
	LockPath string
	LockWait time.Duration
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	Source     string
	Document   string
	Strategy   segment.Strategy
	Chunks     int
	Succeeded  int
	Elapsed    time.Duration
	Transcript transcript.Transcript
}

// Failed returns the number of chunks that produced no transcript.
func (r Result) Failed() int { return r.Chunks - r.Succeeded }

// Status maps the chunk counts onto a ledger status.
func (r Result) Status() ledger.Status {
	switch {
	case r.Chunks > 0 && r.Succeeded == r.Chunks:
		return ledger.StatusCompleted
	case r.Succeeded > 0:
		return ledger.StatusPartial
	default:
		return ledger.StatusFailed
	}
}

// Runner executes runs with fixed collaborators.
type Runner struct {
	cfg        Config
	inspect    audio.Inspector
	splitter   Splitter
	recognizer orchestrator.Recognizer
	normalizer orchestrator.Normalizer
	ledger     *ledger.Store
	notifier   notifications.Service
	logger     *slog.Logger
	newID      func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithInspector sets how sources are probed.
func WithInspector(inspect audio.Inspector) Option { return func(r *Runner) { r.inspect = inspect } }

// WithNormalizer sets the script normalizer.
func WithNormalizer(n orchestrator.Normalizer) Option {
	return func(r *Runner) { r.normalizer = n }
}

// WithLedger records every run in store.
func WithLedger(store *ledger.Store) Option { return func(r *Runner) { r.ledger = store } }

// WithNotifier publishes run outcomes through svc.
func WithNotifier(svc notifications.Service) Option { return func(r *Runner) { r.notifier = svc } }

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logging.NewComponentLogger(logger, "pipeline") }
}

// WithIDGenerator replaces the run ID source (for testing).
func WithIDGenerator(fn func() string) Option { return func(r *Runner) { r.newID = fn } }

// NewRunner returns a Runner. inspect defaults to ffprobe on PATH.
func NewRunner(cfg Config, splitter Splitter, recognizer orchestrator.Recognizer, opts ...Option) *Runner {
	if cfg.Format == "" {
		cfg.Format = render.FormatMarkdown
	}
	if cfg.OffsetMode == "" {
		cfg.OffsetMode = transcript.OffsetLastSegmentEnd
	}
	r := &Runner{
		cfg:        cfg,
		inspect:    audio.FFprobeInspector("ffprobe"),
		splitter:   splitter,
		recognizer: recognizer,
		logger:     logging.NewComponentLogger(nil, "pipeline"),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the effective run configuration.
func (r *Runner) Config() Config { return r.cfg }

// Run transcribes source into a document under the configured output
// directory. A run whose chunks all fail still renders an empty document.
func (r *Runner) Run(ctx context.Context, source string) (result Result, err error) {
	started := time.Now()
	runID := r.newID()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldSource, source))
	result = Result{RunID: runID, Source: source}

	ctx, span := tracing.Start(ctx, "podscribe.run", "run_id", runID, "source", source)
	defer func() { tracing.End(span, err) }()

	lock, err := r.acquire(ctx, logger)
	if err != nil {
		return result, &StageError{Stage: StageLock, Source: source, Err: err}
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.Warn("run lock not released", logging.Error(releaseErr))
		}
	}()

	r.begin(ctx, logger, runID, source, lock != nil)
	defer func() {
		result.Elapsed = time.Since(started)
		r.finish(ctx, logger, result, err)
	}()

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("language", r.cfg.Language),
		logging.String("format", string(r.cfg.Format)),
	)

	chunks, clip, err := r.split(ctx, source)
	if err != nil {
		stageErr := &StageError{Stage: StageSegment, Source: source, Err: err}
		var exportErr *segment.ExportError
		if errors.As(err, &exportErr) {
			stageErr.Chunk = exportErr.Chunk
		}
		return result, stageErr
	}
	result.Chunks = len(chunks)
	result.Strategy = chunks[0].Strategy
	layout := LayoutFor(r.cfg.OutputDir, clip.Base(), r.cfg.Format)

	results := r.transcribe(ctx, runID, chunks, logger)
	result.Succeeded = orchestrator.Succeeded(results)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, &StageError{Stage: StageTranscribe, Source: source, Err: ctxErr}
	}

	merged := transcript.Merge(orchestrator.Results(results), transcript.MergeOptions{
		Mode:     r.cfg.OffsetMode,
		Language: r.cfg.Language,
	})
	result.Transcript = merged

	if err := r.render(ctx, layout, merged); err != nil {
		return result, &StageError{Stage: StageRender, Source: source, Err: err}
	}
	result.Document = layout.Document

	if result.Succeeded == 0 {
		logging.WarnWithContext(logger, "no chunk was transcribed", "run_empty",
			logging.Int("chunks", result.Chunks),
			logging.String(logging.FieldImpact, "document rendered without transcript text"),
			logging.String(logging.FieldErrorHint, "check recognizer configuration with podscribe status"),
		)
	}
	logger.Info("run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("document", result.Document),
		logging.String("strategy", string(result.Strategy)),
		logging.Int("chunks", result.Chunks),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("segments", len(merged.Segments)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (r *Runner) acquire(ctx context.Context, logger *slog.Logger) (*runlock.Lock, error) {
	if strings.TrimSpace(r.cfg.LockPath) == "" {
		return nil, nil
	}
	lock, err := runlock.Acquire(ctx, r.cfg.LockPath, r.cfg.LockWait)
	if err != nil {
		return nil, err
	}
	logger.Debug("run lock acquired", logging.String("lock", lock.Path()))
	return lock, nil
}

func (r *Runner) split(ctx context.Context, source string) ([]segment.Chunk, audio.Clip, error) {
	ctx, span := tracing.Start(ctx, "podscribe.segment")
	clip, err := audio.Open(ctx, r.inspect, source, r.cfg.Language)
	if err != nil {
		tracing.End(span, err)
		return nil, audio.Clip{}, err
	}
	layout := LayoutFor(r.cfg.OutputDir, clip.Base(), r.cfg.Format)
	chunks, err := r.splitter.Split(ctx, clip, layout.ChunkDir)
	if err == nil && len(chunks) == 0 {
		err = errors.New("segmentation produced no chunks")
	}
	tracing.End(span, err)
	return chunks, clip, err
}

func (r *Runner) transcribe(ctx context.Context, runID string, chunks []segment.Chunk, logger *slog.Logger) []orchestrator.ChunkResult {
	ctx, span := tracing.Start(ctx, "podscribe.transcribe")
	defer span.End()

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithConfig(orchestrator.Config{
			NormalizeScript: r.cfg.NormalizeScript,
			WriteArtifacts:  true,
			Title:           r.cfg.Title,
		}),
	}
	if r.normalizer != nil {
		opts = append(opts, orchestrator.WithNormalizer(r.normalizer))
	}
	if r.ledger != nil {
		opts = append(opts, orchestrator.WithObserver(r.ledger.Observer(runID, logger)))
	}
	return orchestrator.New(r.recognizer, opts...).Run(ctx, chunks, r.cfg.Language)
}

func (r *Runner) render(ctx context.Context, layout Layout, merged transcript.Transcript) error {
	_, span := tracing.Start(ctx, "podscribe.render", "document", layout.Document)
	var err error
	defer func() { tracing.End(span, err) }()

	if err = os.MkdirAll(layout.TranscriptDir, 0o755); err != nil {
		return fmt.Errorf("ensure transcript dir: %w", err)
	}
	err = render.WriteFile(layout.Document, merged, r.cfg.Format, render.Options{Title: r.cfg.Title})
	return err
}

// begin records the run. Runs left open by a dead process are closed first,
// which is only safe while holding the run lock.
func (r *Runner) begin(ctx context.Context, logger *slog.Logger, runID, source string, locked bool) {
	if r.ledger == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if locked {
		if n, err := r.ledger.MarkInterrupted(ctx); err != nil {
			logger.Warn("stale runs not closed", logging.Error(err))
		} else if n > 0 {
			logger.Info("closed interrupted runs", logging.Int64("count", n))
		}
	}
	err := r.ledger.BeginRun(ctx, ledger.Run{
		ID:         runID,
		SourcePath: source,
		Backend:    r.cfg.Backend,
		Language:   r.cfg.Language,
	})
	if err != nil {
		logging.WarnWithContext(logger, "run not recorded", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run missing from history"),
		)
	}
}

func (r *Runner) finish(ctx context.Context, logger *slog.Logger, result Result, runErr error) {
	ctx = context.WithoutCancel(ctx)
	r.record(ctx, logger, result, runErr)
	r.notify(ctx, logger, result, runErr)
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, result Result, runErr error) {
	if r.ledger == nil {
		return
	}
	outcome := ledger.Outcome{
		Status:     result.Status(),
		Strategy:   string(result.Strategy),
		ChunkCount: result.Chunks,
		Succeeded:  result.Succeeded,
		Failed:     result.Failed(),
		OutputPath: result.Document,
	}
	if runErr != nil {
		outcome.Status = ledger.StatusFailed
		if errors.Is(runErr, context.Canceled) {
			outcome.Status = ledger.StatusInterrupted
		}
		outcome.ErrorMessage = runErr.Error()
	}
	if err := r.ledger.FinishRun(ctx, result.RunID, outcome); err != nil {
		logging.WarnWithContext(logger, "run outcome not recorded", "ledger_write_failed", logging.Error(err))
	}
}

// notify publishes the outcome. Interrupted runs are not announced.
func (r *Runner) notify(ctx context.Context, logger *slog.Logger, result Result, runErr error) {
	if r.notifier == nil || errors.Is(runErr, context.Canceled) {
		return
	}
	event := notifications.EventRunCompleted
	payload := notifications.Payload{
		"run_id": result.RunID,
		"source": filepath.Base(result.Source),
	}
	if runErr != nil {
		event = notifications.EventRunFailed
		payload["error"] = runErr.Error()
	} else {
		payload["status"] = string(result.Status())
		payload["chunks"] = fmt.Sprintf("%d/%d", result.Succeeded, result.Chunks)
		payload["document"] = result.Document
	}
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification not delivered", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run outcome only visible in history"),
		)
	}
}
