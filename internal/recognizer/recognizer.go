// Package recognizer builds the speech recognition backend named in the
// configuration.
package recognizer

import (
	"context"
	"fmt"
	"log/slog"

	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/orchestrator"
	"podscribe/internal/services/gemini"
	"podscribe/internal/services/gspeech"
	"podscribe/internal/services/openai"
	"podscribe/internal/services/whisperx"
)

// Backend is a recognizer that names itself and holds releasable clients.
type Backend interface {
	orchestrator.Recognizer
	Name() string
	Close() error
}

// New returns the backend selected by cfg.Recognizer.Backend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Backend, error) {
	r := cfg.Recognizer
	var (
		backend Backend
		err     error
	)
	switch r.Backend {
	case config.BackendWhisperX:
		backend = whisperx.NewService(whisperx.Config{
			Model:       r.WhisperX.Model,
			CUDAEnabled: r.WhisperX.CUDAEnabled,
			VADMethod:   r.WhisperX.VADMethod,
			HFToken:     r.WhisperX.HFToken,
			ModelDir:    r.WhisperX.CacheDir,
		}, cfg.Tools.UVX)
	case config.BackendOpenAI:
		backend = openai.NewClient(openai.Config{
			APIKey:         r.OpenAI.APIKey,
			BaseURL:        r.OpenAI.BaseURL,
			Model:          r.OpenAI.Model,
			TimeoutSeconds: r.OpenAI.TimeoutSeconds,
		})
	case config.BackendGemini:
		backend, err = gemini.New(ctx, gemini.Config{APIKey: r.Gemini.APIKey, Model: r.Gemini.Model})
	case config.BackendGoogleSpeech:
		backend, err = gspeech.New(ctx, gspeech.Config{
			Bucket:          r.GoogleSpeech.Bucket,
			ObjectPrefix:    r.GoogleSpeech.ObjectPrefix,
			CredentialsFile: r.GoogleSpeech.CredentialsFile,
			Model:           r.GoogleSpeech.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported recognizer backend %q", r.Backend)
	}
	if err != nil {
		return nil, err
	}
	logging.NewComponentLogger(logger, "recognizer").Info("recognizer ready",
		logging.String("backend", backend.Name()),
	)
	return backend, nil
}
