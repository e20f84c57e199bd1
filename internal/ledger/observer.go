package ledger

import (
	"context"
	"log/slog"

	"podscribe/internal/logging"
	"podscribe/internal/orchestrator"
	"podscribe/internal/services"
)

// ChunkObserver records orchestrator results as chunk rows of one run.
// Write failures are logged and never fail the chunk.
type ChunkObserver struct {
	store  *Store
	runID  string
	logger *slog.Logger
}

// Observer returns an orchestrator.Observer bound to runID.
func (s *Store) Observer(runID string, logger *slog.Logger) *ChunkObserver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ChunkObserver{store: s, runID: runID, logger: logger}
}

// ChunkDone implements orchestrator.Observer.
func (o *ChunkObserver) ChunkDone(ctx context.Context, result orchestrator.ChunkResult) {
	if err := o.store.RecordChunk(context.WithoutCancel(ctx), o.runID, ChunkFromResult(result)); err != nil {
		logging.WarnWithContext(o.logger, "ledger chunk write failed", "ledger_write_failed",
			logging.String("run_id", o.runID),
			logging.Int("chunk", result.Chunk.Index),
			logging.Error(err),
		)
	}
}

// ChunkFromResult converts an orchestrator result into a ledger row.
func ChunkFromResult(result orchestrator.ChunkResult) Chunk {
	c := Chunk{
		Index:    result.Chunk.Index,
		Path:     result.Chunk.Clip.Path,
		Offset:   result.Chunk.SourceOffset,
		Duration: result.Chunk.Clip.Duration,
		OK:       result.OK(),
		Elapsed:  result.Elapsed,
	}
	if result.OK() {
		c.Segments = len(result.Transcript.Segments)
		return c
	}
	c.ErrorKind = services.Kind(result.Err)
	c.ErrorMessage = result.Err.Error()
	return c
}
