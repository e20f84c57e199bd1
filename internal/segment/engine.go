package segment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podscribe/internal/logging"
	"podscribe/internal/media/audio"
)

// Chunk is one bounded piece of a recording. Index is 1-based and
// SourceOffset is where the piece starts on the original timeline.
type Chunk struct {
	Index        int
	Clip         audio.Clip
	SourceOffset time.Duration
	PassThrough  bool
	Strategy     Strategy
}

// End returns where the chunk stops on the original timeline.
func (c Chunk) End() time.Duration { return c.SourceOffset + c.Clip.Duration }

// ExportError reports a chunk file that could not be written. Chunk is the
// 1-based ordinal.
type ExportError struct {
	Chunk int
	Path  string
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export chunk %d to %s: %v", e.Chunk, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Decoder produces the energy profile of a clip.
type Decoder interface {
	Profile(ctx context.Context, clip audio.Clip) (audio.Profile, error)
}

// Exporter writes a time range of a clip to a new file.
type Exporter interface {
	Export(ctx context.Context, src audio.Clip, start, length time.Duration, dest string) (audio.Clip, error)
}

// Engine splits clips according to Config.
type Engine struct {
	cfg      Config
	decoder  Decoder
	exporter Exporter
	logger   *slog.Logger
}

// NewEngine constructs an Engine. Zero config fields take DefaultConfig values.
func NewEngine(cfg Config, decoder Decoder, exporter Exporter, logger *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.MaxChunk <= 0 {
		cfg.MaxChunk = def.MaxChunk
	}
	if cfg.MinSilence <= 0 {
		cfg.MinSilence = def.MinSilence
	}
	if cfg.Padding < 0 {
		cfg.Padding = 0
	}
	cfg.Format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(cfg.Format)), ".")
	if cfg.Format == "" {
		cfg.Format = def.Format
	}
	return &Engine{
		cfg:      cfg,
		decoder:  decoder,
		exporter: exporter,
		logger:   logging.NewComponentLogger(logger, "segment"),
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// ChunkFileName returns "<base>_<NNN>.<ext>" with a three-digit ordinal.
func ChunkFileName(base string, index int, ext string) string {
	return fmt.Sprintf("%s_%03d.%s", base, index, ext)
}

// Split divides clip into chunks written under outDir. A clip no longer than
// MaxChunk is returned as a single pass-through chunk and nothing is written.
func (e *Engine) Split(ctx context.Context, clip audio.Clip, outDir string) ([]Chunk, error) {
	logger := logging.WithContext(ctx, e.logger)
	if clip.Duration <= e.cfg.MaxChunk {
		logger.Info("clip within chunk limit, passing through",
			logging.String(logging.FieldSource, clip.Path),
			logging.Duration("duration", clip.Duration),
			logging.Duration("max_chunk", e.cfg.MaxChunk),
		)
		return []Chunk{{Index: 1, Clip: clip, PassThrough: true, Strategy: StrategyPassThrough}}, nil
	}

	started := time.Now()
	profile, err := e.decoder.Profile(ctx, clip)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", clip.Path, err)
	}

	if decoded := EffectiveDuration(profile, clip.Duration); decoded != clip.Duration {
		logging.WarnWithContext(logger, "decoded length disagrees with probed duration", "segment_duration_drift",
			logging.String(logging.FieldSource, clip.Path),
			logging.Duration("probed", clip.Duration),
			logging.Duration("decoded", decoded),
			logging.String(logging.FieldImpact, "chunk boundaries follow the decoded audio"),
		)
	}

	ranges, strategy := Plan(profile, clip.Duration, e.cfg)
	if strategy == StrategyFixed {
		logger.Info("silence split unusable, using fixed windows",
			logging.String(logging.FieldSource, clip.Path),
			logging.String("reason", fallbackReason(SilencePlan(profile, e.cfg), e.cfg.MaxChunk)),
			logging.Int("chunks", len(ranges)),
		)
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("plan %s: no ranges for duration %s", clip.Path, clip.Duration)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure chunk dir: %w", err)
	}

	chunks := make([]Chunk, 0, len(ranges))
	for i, r := range ranges {
		index := i + 1
		dest := filepath.Join(outDir, ChunkFileName(clip.Base(), index, e.cfg.Format))
		exported, err := e.exporter.Export(ctx, clip, r.Start, r.Duration(), dest)
		if err != nil {
			return nil, &ExportError{Chunk: index, Path: dest, Err: err}
		}
		chunks = append(chunks, Chunk{
			Index:        index,
			Clip:         exported,
			SourceOffset: r.Start,
			Strategy:     strategy,
		})
		logger.Debug("chunk exported",
			logging.Int(logging.FieldChunk, index),
			logging.String("path", dest),
			logging.Duration("offset", r.Start),
			logging.Duration("duration", r.Duration()),
		)
	}

	if err := WriteManifest(outDir, NewManifest(clip, strategy, e.cfg.MaxChunk, chunks)); err != nil {
		logging.WarnWithContext(logger, "chunk manifest not written", "segment_manifest",
			logging.Error(err),
			logging.String(logging.FieldImpact, "chunk files are still usable; manifest.yaml is missing"),
		)
	}

	logger.Info("segmentation complete",
		logging.String(logging.FieldSource, clip.Path),
		logging.String("strategy", string(strategy)),
		logging.Int("chunks", len(chunks)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return chunks, nil
}

func fallbackReason(ranges []Range, maxChunk time.Duration) string {
	if len(ranges) == 0 {
		return "no audible ranges detected"
	}
	for _, r := range ranges {
		if r.Duration() > maxChunk {
			return fmt.Sprintf("range of %s exceeds %s", r.Duration().Round(time.Second), maxChunk)
		}
	}
	return "silence plan rejected"
}
