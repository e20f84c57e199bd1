package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"podscribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose output, log and state directories live in
// a per-test temp directory. Free-space gating is off and logs stay quiet.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "out")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.MinFreeMiB = 0
	cfgVal.Logging.Level = "error"
	cfgVal.Recognizer.WhisperX.CacheDir = filepath.Join(base, "cache")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithBackend selects the recognizer backend and fills in fake credentials.
func WithBackend(name string) ConfigOption {
	return func(b *configBuilder) {
		r := &b.cfg.Recognizer
		r.Backend = name
		switch name {
		case config.BackendOpenAI:
			r.OpenAI.APIKey = "test-key"
		case config.BackendGemini:
			r.Gemini.APIKey = "test-key"
		case config.BackendGoogleSpeech:
			r.GoogleSpeech.Bucket = "test-bucket"
		}
	}
}

// WithLanguage overrides the pipeline language hint.
func WithLanguage(lang string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Language = lang
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, every external program podscribe
// runs is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "uvx"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
