package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/pipeline"
	"podscribe/internal/preflight"
	"podscribe/internal/render"
	"podscribe/internal/transcript"
)

// runFlags are the per-invocation overrides shared by transcribe, batch and
// watch.
type runFlags struct {
	outputDir   string
	language    string
	backend     string
	format      string
	offsetMode  string
	traditional bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.outputDir, "output-dir", "o", "", "Directory for chunks and transcripts (overrides paths.output_dir)")
	flags.StringVarP(&f.language, "language", "l", "", "Language hint passed to the recognizer, e.g. zh or en")
	flags.StringVarP(&f.backend, "backend", "b", "", "Recognizer backend: whisperx, openai, gemini or google_speech")
	flags.StringVarP(&f.format, "format", "f", "", "Document format: markdown or docx")
	flags.StringVar(&f.offsetMode, "offset-mode", "", "Timeline merge: last_segment_end or source_timeline")
	flags.BoolVar(&f.traditional, "traditional", false, "Keep Traditional Chinese output (skip script normalization)")
}

// applyRunFlags copies non-empty overrides onto cfg and revalidates it.
func applyRunFlags(cfg *config.Config, f runFlags) error {
	if dir := strings.TrimSpace(f.outputDir); dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return fmt.Errorf("--output-dir: %w", err)
		}
		cfg.Paths.OutputDir = expanded
	}
	if lang := strings.TrimSpace(f.language); lang != "" {
		cfg.Pipeline.Language = strings.ToLower(lang)
	}
	if backend := strings.TrimSpace(f.backend); backend != "" {
		cfg.Recognizer.Backend = strings.ToLower(backend)
	}
	if strings.TrimSpace(f.format) != "" {
		format, err := render.ParseFormat(f.format)
		if err != nil {
			return fmt.Errorf("--format: %w", err)
		}
		cfg.Output.Format = string(format)
	}
	if strings.TrimSpace(f.offsetMode) != "" {
		mode, err := transcript.ParseOffsetMode(f.offsetMode)
		if err != nil {
			return fmt.Errorf("--offset-mode: %w", err)
		}
		cfg.Pipeline.OffsetMode = string(mode)
	}
	if f.traditional {
		cfg.Pipeline.NormalizeScript = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return cfg.EnsureDirectories()
}

// session is a configured pipeline plus the command-scoped resources that
// must be released with it.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *pipeline.Service
	stop    func()
}

func (s *session) Close() {
	if s.service != nil {
		if err := s.service.Close(); err != nil {
			s.logger.Warn("release pipeline resources", logging.Error(err))
		}
	}
	if s.stop != nil {
		s.stop()
	}
}

// openSession applies flags, runs preflight checks and wires the pipeline.
func (c *commandContext) openSession(ctx context.Context, flags runFlags) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := applyRunFlags(cfg, flags); err != nil {
		return nil, err
	}
	if err := preflight.Err(preflight.RunAll(ctx, cfg)); err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	stop, err := c.startTracing(ctx, logger)
	if err != nil {
		return nil, err
	}
	runCfg, err := pipeline.ConfigFrom(cfg)
	if err != nil {
		stop()
		return nil, err
	}
	service, err := pipeline.Build(ctx, cfg, runCfg, logger)
	if err != nil {
		stop()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, service: service, stop: stop}, nil
}

func printResult(out io.Writer, result pipeline.Result) {
	fmt.Fprintf(out, "Transcript: %s\n", result.Document)
	fmt.Fprintf(out, "Run:        %s\n", result.RunID)
	fmt.Fprintf(out, "Status:     %s\n", result.Status())
	fmt.Fprintf(out, "Chunks:     %d (%d ok, %d failed, %s)\n", result.Chunks, result.Succeeded, result.Failed(), result.Strategy)
	fmt.Fprintf(out, "Elapsed:    %s\n", pipeline.FormatElapsed(result.Elapsed))
}
