package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"podscribe/internal/config"
	"podscribe/internal/ledger"
	"podscribe/internal/media/audio"
	"podscribe/internal/normalize"
	"podscribe/internal/notifications"
	"podscribe/internal/recognizer"
	"podscribe/internal/render"
	"podscribe/internal/segment"
	"podscribe/internal/transcript"
)

// ConfigFrom derives run settings from the loaded configuration.
func ConfigFrom(cfg *config.Config) (Config, error) {
	format, err := render.ParseFormat(cfg.Output.Format)
	if err != nil {
		return Config{}, err
	}
	mode, err := transcript.ParseOffsetMode(cfg.Pipeline.OffsetMode)
	if err != nil {
		return Config{}, err
	}
	return Config{
		OutputDir:       cfg.Paths.OutputDir,
		Language:        cfg.Pipeline.Language,
		NormalizeScript: cfg.Pipeline.NormalizeScript,
		Format:          format,
		Title:           cfg.Output.Title,
		OffsetMode:      mode,
		Backend:         cfg.Recognizer.Backend,
		LockPath:        cfg.LockPath(),
		LockWait:        cfg.Pipeline.LockTimeout(),
	}, nil
}

// SegmentConfig maps the [pipeline] section onto the segmentation engine.
func SegmentConfig(cfg *config.Config) segment.Config {
	return segment.Config{
		MaxChunk:           cfg.Pipeline.MaxChunk(),
		MinSilence:         cfg.Pipeline.MinSilence(),
		SilenceThresholdDB: cfg.Pipeline.SilenceThreshold,
		Padding:            cfg.Pipeline.Padding(),
		Format:             cfg.Pipeline.ChunkFormat,
	}
}

// Service is a Runner wired from configuration together with the resources
// it owns.
type Service struct {
	*Runner
	backend recognizer.Backend
	ledger  *ledger.Store
}

// Build wires a Runner from cfg: ffprobe and ffmpeg from [tools], the
// configured recognizer backend, the OpenCC normalizer, the run ledger and
// the ntfy notifier.
// run overrides the settings derived by ConfigFrom.
func Build(ctx context.Context, cfg *config.Config, run Config, logger *slog.Logger) (*Service, error) {
	backend, err := recognizer.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("recognizer: %w", err)
	}
	store, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("run ledger: %w", err)
	}

	ffmpeg := audio.NewFFmpeg(cfg.Tools.FFmpeg)
	engine := segment.NewEngine(SegmentConfig(cfg), ffmpeg, ffmpeg, logger)
	opts := []Option{
		WithInspector(audio.FFprobeInspector(cfg.Tools.FFprobe)),
		WithLedger(store),
		WithNotifier(notifications.NewService(cfg)),
		WithLogger(logger),
	}
	if run.NormalizeScript {
		opts = append(opts, WithNormalizer(normalize.New(normalize.NewOpenCC(cfg.Normalize.Profile))))
	}
	run.Backend = backend.Name()
	return &Service{
		Runner:  NewRunner(run, engine, backend, opts...),
		backend: backend,
		ledger:  store,
	}, nil
}

// Close releases the recognizer and the ledger.
func (s *Service) Close() error {
	return errors.Join(s.backend.Close(), s.ledger.Close())
}
