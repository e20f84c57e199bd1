package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"podscribe/internal/language"
	"podscribe/internal/logging"
	"podscribe/internal/media/audio"
	"podscribe/internal/render"
	"podscribe/internal/segment"
	"podscribe/internal/transcript"
)

// Recognizer turns one clip into a transcript with clip-relative times.
type Recognizer interface {
	Transcribe(ctx context.Context, clip audio.Clip, language string) (transcript.Transcript, error)
}

// Normalizer rewrites recognized text, for example into Simplified script.
type Normalizer interface {
	Normalize(ctx context.Context, text string) (string, error)
}

// batchNormalizer is implemented by normalizers that convert many texts in
// one call.
type batchNormalizer interface {
	NormalizeAll(ctx context.Context, texts []string) ([]string, error)
}

// Observer is told about every finished chunk.
type Observer interface {
	ChunkDone(ctx context.Context, result ChunkResult)
}

// ChunkResult is the outcome of one chunk. Err is nil on success.
type ChunkResult struct {
	Chunk      segment.Chunk
	Transcript transcript.Transcript
	Err        error
	Elapsed    time.Duration
	// Artifact is the per-chunk markdown written next to the chunk file.
	Artifact string
}

// OK reports whether the chunk was transcribed.
func (r ChunkResult) OK() bool { return r.Err == nil }

// Config controls per-chunk post-processing.
type Config struct {
	// NormalizeScript converts Chinese output through the Normalizer.
	NormalizeScript bool
	// WriteArtifacts writes <chunk>.md next to every exported chunk.
	WriteArtifacts bool
	Title          string
}

// Orchestrator runs the recognizer over chunks.
type Orchestrator struct {
	recognizer Recognizer
	normalizer Normalizer
	observer   Observer
	cfg        Config
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNormalizer sets the script normalizer.
func WithNormalizer(n Normalizer) Option { return func(o *Orchestrator) { o.normalizer = n } }

// WithObserver registers a per-chunk observer.
func WithObserver(obs Observer) Option { return func(o *Orchestrator) { o.observer = obs } }

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.NewComponentLogger(logger, "orchestrator") }
}

// WithConfig replaces the default Config.
func WithConfig(cfg Config) Option { return func(o *Orchestrator) { o.cfg = cfg } }

// New returns an Orchestrator. By default artifacts are written and no
// normalization happens.
func New(recognizer Recognizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		recognizer: recognizer,
		cfg:        Config{WriteArtifacts: true},
		logger:     logging.NewComponentLogger(nil, "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run transcribes chunks in order and returns one result per chunk. Once ctx
// is cancelled the remaining chunks fail with the context error.
func (o *Orchestrator) Run(ctx context.Context, chunks []segment.Chunk, lang string) []ChunkResult {
	logger := logging.WithContext(ctx, o.logger)
	results := make([]ChunkResult, 0, len(chunks))
	succeeded := 0
	for _, chunk := range chunks {
		var result ChunkResult
		if err := ctx.Err(); err != nil {
			result = ChunkResult{Chunk: chunk, Err: err}
		} else {
			result = o.process(ctx, logger, chunk, lang)
		}
		if result.OK() {
			succeeded++
		} else {
			logging.WarnWithContext(logger, "chunk transcription failed",
				"chunk_failed",
				logging.Int(logging.FieldChunk, chunk.Index),
				logging.String("path", chunk.Clip.Path),
				logging.Error(result.Err),
				logging.String(logging.FieldImpact, "chunk omitted from transcript"),
				logging.String(logging.FieldErrorHint, "inspect the chunk file and recognizer output"),
			)
		}
		if o.observer != nil {
			o.observer.ChunkDone(ctx, result)
		}
		results = append(results, result)
	}
	logger.Info("chunks transcribed",
		logging.Int("total", len(chunks)),
		logging.Int("succeeded", succeeded),
		logging.Int("failed", len(chunks)-succeeded),
	)
	return results
}

func (o *Orchestrator) process(ctx context.Context, logger *slog.Logger, chunk segment.Chunk, lang string) ChunkResult {
	result := ChunkResult{Chunk: chunk}
	logger = logger.With(logging.Int(logging.FieldChunk, chunk.Index))
	logger.Debug("transcribing chunk",
		logging.String("path", chunk.Clip.Path),
		logging.Duration("offset", chunk.SourceOffset),
		logging.Duration("duration", chunk.Clip.Duration),
	)

	start := time.Now()
	tr, err := o.recognizer.Transcribe(ctx, chunk.Clip, lang)
	result.Elapsed = time.Since(start)
	if err != nil {
		result.Err = fmt.Errorf("transcribe chunk %d: %w", chunk.Index, err)
		return result
	}
	if err := tr.Validate(); err != nil {
		result.Err = fmt.Errorf("chunk %d: %w", chunk.Index, err)
		return result
	}

	if o.shouldNormalize(lang, tr.Language) {
		tr, err = o.normalize(ctx, tr)
		if err != nil {
			result.Err = fmt.Errorf("normalize chunk %d: %w", chunk.Index, err)
			return result
		}
	}
	result.Transcript = tr

	if o.cfg.WriteArtifacts && !chunk.PassThrough {
		path := ArtifactPath(chunk.Clip.Path)
		if err := render.WriteFile(path, tr, render.FormatMarkdown, render.Options{Title: o.cfg.Title}); err != nil {
			logging.WarnWithContext(logger, "chunk transcript not saved",
				"chunk_artifact_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "chunk is still merged; debug artifact missing"),
			)
		} else {
			result.Artifact = path
		}
	}

	logger.Info("chunk transcribed",
		logging.Int("segments", len(tr.Segments)),
		logging.Float64("last_end", tr.LastEnd()),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result
}

func (o *Orchestrator) shouldNormalize(hint, detected string) bool {
	if !o.cfg.NormalizeScript || o.normalizer == nil {
		return false
	}
	if strings.TrimSpace(hint) != "" {
		return language.IsChinese(hint)
	}
	return language.IsChinese(detected)
}

func (o *Orchestrator) normalize(ctx context.Context, tr transcript.Transcript) (transcript.Transcript, error) {
	out := tr.Clone()
	texts := make([]string, 0, len(out.Segments)+1)
	texts = append(texts, out.Text)
	for _, seg := range out.Segments {
		texts = append(texts, seg.Text)
	}

	var converted []string
	if batch, ok := o.normalizer.(batchNormalizer); ok {
		var err error
		if converted, err = batch.NormalizeAll(ctx, texts); err != nil {
			return tr, err
		}
	} else {
		converted = make([]string, len(texts))
		for i, text := range texts {
			c, err := o.normalizer.Normalize(ctx, text)
			if err != nil {
				return tr, err
			}
			converted[i] = c
		}
	}
	if len(converted) != len(texts) {
		return tr, fmt.Errorf("normalizer returned %d texts for %d inputs", len(converted), len(texts))
	}

	out.Text = converted[0]
	for i := range out.Segments {
		out.Segments[i].Text = converted[i+1]
	}
	return out, nil
}

// ArtifactPath returns the markdown path kept beside a chunk file.
func ArtifactPath(chunkPath string) string {
	return strings.TrimSuffix(chunkPath, filepath.Ext(chunkPath)) + ".md"
}

// Results converts chunk results into the merger's input.
func Results(results []ChunkResult) []transcript.Result {
	out := make([]transcript.Result, len(results))
	for i, r := range results {
		out[i] = transcript.Result{
			Offset:      r.Chunk.SourceOffset,
			Transcript:  r.Transcript,
			OK:          r.OK(),
			PassThrough: r.Chunk.PassThrough,
		}
	}
	return out
}

// Succeeded counts successful results.
func Succeeded(results []ChunkResult) int {
	n := 0
	for _, r := range results {
		if r.OK() {
			n++
		}
	}
	return n
}
