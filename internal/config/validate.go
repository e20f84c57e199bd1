package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateRecognizer(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be >= 0")
	}
	return c.validateWatch()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.MinFreeMiB < 0 {
		return errors.New("paths.min_free_mib must be >= 0")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	p := c.Pipeline
	if err := positiveDuration("pipeline.max_chunk_duration", p.MaxChunkDuration); err != nil {
		return err
	}
	if err := positiveDuration("pipeline.min_silence_length", p.MinSilenceLength); err != nil {
		return err
	}
	if err := nonNegativeDuration("pipeline.silence_padding", p.SilencePadding); err != nil {
		return err
	}
	if err := nonNegativeDuration("pipeline.lock_wait", p.LockWait); err != nil {
		return err
	}
	if math.IsNaN(p.SilenceThreshold) || p.SilenceThreshold > 0 {
		return fmt.Errorf("pipeline.silence_threshold_db must be <= 0 dBFS, got %v", p.SilenceThreshold)
	}
	if p.MinSilence() >= p.MaxChunk() {
		return errors.New("pipeline.min_silence_length must be shorter than pipeline.max_chunk_duration")
	}
	switch p.ChunkFormat {
	case "mp3", "wav", "flac", "m4a", "ogg":
	default:
		return fmt.Errorf("pipeline.chunk_format: unsupported value %q", p.ChunkFormat)
	}
	switch p.OffsetMode {
	case "last_segment_end", "source_timeline":
	default:
		return fmt.Errorf("pipeline.offset_mode must be last_segment_end or source_timeline, got %q", p.OffsetMode)
	}
	return nil
}

func (c *Config) validateRecognizer() error {
	r := c.Recognizer
	switch r.Backend {
	case BackendWhisperX:
		switch r.WhisperX.VADMethod {
		case "silero", "pyannote":
		default:
			return fmt.Errorf("recognizer.whisperx.vad_method must be silero or pyannote, got %q", r.WhisperX.VADMethod)
		}
		if r.WhisperX.VADMethod == "pyannote" && r.WhisperX.HFToken == "" {
			return errors.New("recognizer.whisperx.hf_token must be set when vad_method is pyannote (or set HF_TOKEN)")
		}
	case BackendOpenAI:
		if r.OpenAI.APIKey == "" {
			return errors.New("recognizer.openai.api_key must be set when backend is openai (or set OPENAI_API_KEY)")
		}
		if r.OpenAI.TimeoutSeconds < 0 {
			return errors.New("recognizer.openai.timeout_seconds must be >= 0")
		}
	case BackendGemini:
		if r.Gemini.APIKey == "" {
			return errors.New("recognizer.gemini.api_key must be set when backend is gemini (or set GEMINI_API_KEY)")
		}
	case BackendGoogleSpeech:
		if r.GoogleSpeech.Bucket == "" {
			return errors.New("recognizer.google_speech.bucket must be set when backend is google_speech (or set GOOGLE_CLOUD_BUCKET)")
		}
	default:
		return fmt.Errorf("recognizer.backend: unsupported value %q", r.Backend)
	}
	return nil
}

func (c *Config) validateOutput() error {
	switch c.Output.Format {
	case "markdown", "docx":
		return nil
	default:
		return fmt.Errorf("output.format must be markdown or docx, got %q", c.Output.Format)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateWatch() error {
	return nonNegativeDuration("watch.settle_delay", c.Watch.SettleDelay)
}

func positiveDuration(key, value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", key)
	}
	return nil
}

func nonNegativeDuration(key, value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must be >= 0", key)
	}
	return nil
}
