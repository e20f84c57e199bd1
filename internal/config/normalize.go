package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeTools()
	if err := c.normalizeRecognizer(); err != nil {
		return err
	}
	c.normalizeOutput()
	c.normalizeLogging()
	if err := c.normalizeTracing(); err != nil {
		return err
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return c.normalizeWatch()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	p := &c.Pipeline
	p.Language = strings.ToLower(strings.TrimSpace(p.Language))
	p.ChunkFormat = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(p.ChunkFormat)), ".")
	if p.ChunkFormat == "" {
		p.ChunkFormat = defaultChunkFormat
	}
	p.OffsetMode = strings.ToLower(strings.TrimSpace(p.OffsetMode))
	if p.OffsetMode == "" {
		p.OffsetMode = defaultOffsetMode
	}
	if strings.TrimSpace(p.LockWait) == "" {
		p.LockWait = defaultLockWait
	}
}

func (c *Config) normalizeTools() {
	t := &c.Tools
	if t.FFmpeg = strings.TrimSpace(t.FFmpeg); t.FFmpeg == "" {
		t.FFmpeg = "ffmpeg"
	}
	if t.FFprobe = strings.TrimSpace(t.FFprobe); t.FFprobe == "" {
		t.FFprobe = "ffprobe"
	}
	if t.UVX = strings.TrimSpace(t.UVX); t.UVX == "" {
		t.UVX = "uvx"
	}
	c.Normalize.Profile = strings.TrimSuffix(strings.TrimSpace(c.Normalize.Profile), ".json")
	if c.Normalize.Profile == "" {
		c.Normalize.Profile = defaultOpenCCProfile
	}
}

func (c *Config) normalizeRecognizer() error {
	r := &c.Recognizer
	r.Backend = strings.ToLower(strings.TrimSpace(r.Backend))
	if r.Backend == "" {
		r.Backend = defaultBackend
	}

	if strings.TrimSpace(r.WhisperX.Model) == "" {
		r.WhisperX.Model = defaultWhisperXModel
	}
	r.WhisperX.VADMethod = strings.ToLower(strings.TrimSpace(r.WhisperX.VADMethod))
	if r.WhisperX.VADMethod == "" {
		r.WhisperX.VADMethod = defaultWhisperXVAD
	}
	if r.WhisperX.HFToken == "" {
		if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			r.WhisperX.HFToken = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(r.WhisperX.CacheDir) == "" {
		r.WhisperX.CacheDir = defaultWhisperXCacheDir
	}
	var err error
	if r.WhisperX.CacheDir, err = expandPath(r.WhisperX.CacheDir); err != nil {
		return fmt.Errorf("recognizer.whisperx.cache_dir: %w", err)
	}

	if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok && strings.TrimSpace(value) != "" {
		r.OpenAI.APIKey = strings.TrimSpace(value)
	}
	r.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(r.OpenAI.BaseURL), "/")
	if r.OpenAI.BaseURL == "" {
		r.OpenAI.BaseURL = defaultOpenAIBaseURL
	}
	if strings.TrimSpace(r.OpenAI.Model) == "" {
		r.OpenAI.Model = defaultOpenAIModel
	}
	if r.OpenAI.TimeoutSeconds == 0 {
		r.OpenAI.TimeoutSeconds = defaultOpenAITimeout
	}

	if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok && strings.TrimSpace(value) != "" {
		r.Gemini.APIKey = strings.TrimSpace(value)
	}
	if strings.TrimSpace(r.Gemini.Model) == "" {
		r.Gemini.Model = defaultGeminiModel
	}

	if r.GoogleSpeech.Bucket == "" {
		if value, ok := os.LookupEnv("GOOGLE_CLOUD_BUCKET"); ok {
			r.GoogleSpeech.Bucket = strings.TrimSpace(value)
		}
	}
	r.GoogleSpeech.ObjectPrefix = strings.Trim(strings.TrimSpace(r.GoogleSpeech.ObjectPrefix), "/")
	if strings.TrimSpace(r.GoogleSpeech.Model) == "" {
		r.GoogleSpeech.Model = defaultSpeechModel
	}
	if r.GoogleSpeech.CredentialsFile != "" {
		if r.GoogleSpeech.CredentialsFile, err = expandPath(r.GoogleSpeech.CredentialsFile); err != nil {
			return fmt.Errorf("recognizer.google_speech.credentials_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeOutput() {
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if c.Output.Format == "" || c.Output.Format == "md" {
		c.Output.Format = defaultOutputFormat
	}
	if strings.TrimSpace(c.Output.Title) == "" {
		c.Output.Title = defaultOutputTitle
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeTracing() error {
	if strings.TrimSpace(c.Tracing.ServiceName) == "" {
		c.Tracing.ServiceName = defaultServiceName
	}
	if c.Tracing.Path == "" {
		return nil
	}
	var err error
	if c.Tracing.Path, err = expandPath(c.Tracing.Path); err != nil {
		return fmt.Errorf("tracing.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeWatch() error {
	if strings.TrimSpace(c.Watch.SettleDelay) == "" {
		c.Watch.SettleDelay = defaultSettleDelay
	}
	exts := make([]string, 0, len(c.Watch.Extensions))
	for _, ext := range c.Watch.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultWatchExtensions...)
	}
	c.Watch.Extensions = exts
	if c.Watch.Dir == "" {
		return nil
	}
	var err error
	if c.Watch.Dir, err = expandPath(c.Watch.Dir); err != nil {
		return fmt.Errorf("watch.dir: %w", err)
	}
	return nil
}
