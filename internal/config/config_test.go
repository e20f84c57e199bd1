package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"podscribe/internal/config"
)

func clearRecognizerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_CLOUD_BUCKET", "HF_TOKEN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearRecognizerEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "podscribe", "config.toml"); resolved != want {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, want)
	}
	if want := filepath.Join(tempHome, "podscribe"); cfg.Paths.OutputDir != want {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "podscribe", "state"); cfg.Paths.StateDir != want {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, want)
	}
	if cfg.Pipeline.MaxChunk() != 10*time.Minute {
		t.Fatalf("unexpected max chunk: %v", cfg.Pipeline.MaxChunk())
	}
	if cfg.Pipeline.MinSilence() != time.Second {
		t.Fatalf("unexpected min silence: %v", cfg.Pipeline.MinSilence())
	}
	if cfg.Pipeline.Padding() != 500*time.Millisecond {
		t.Fatalf("unexpected padding: %v", cfg.Pipeline.Padding())
	}
	if cfg.Pipeline.SilenceThreshold != -40 {
		t.Fatalf("unexpected threshold: %v", cfg.Pipeline.SilenceThreshold)
	}
	if cfg.Pipeline.Language != "zh" || !cfg.Pipeline.NormalizeScript {
		t.Fatalf("unexpected language defaults: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.OffsetMode != "last_segment_end" {
		t.Fatalf("unexpected offset mode: %q", cfg.Pipeline.OffsetMode)
	}
	if cfg.Recognizer.Backend != config.BackendWhisperX {
		t.Fatalf("unexpected backend: %q", cfg.Recognizer.Backend)
	}
	if cfg.Output.Title != "音频转录" {
		t.Fatalf("unexpected title: %q", cfg.Output.Title)
	}
	if cfg.LedgerPath() != filepath.Join(cfg.Paths.StateDir, "runs.db") {
		t.Fatalf("unexpected ledger path: %q", cfg.LedgerPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearRecognizerEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "podscribe.toml")
	content := `[paths]
output_dir = "~/transcripts"

[pipeline]
max_chunk_duration = "5m"
silence_threshold_db = -35
offset_mode = "SOURCE_TIMELINE"
chunk_format = ".WAV"

[recognizer]
backend = "openai"

[recognizer.openai]
api_key = "file-key"
base_url = "http://localhost:9000/v1/"

[normalize]
profile = " t2s.json "

[output]
format = "md"

[watch]
extensions = ["mp3", " .M4A "]
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "transcripts") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Pipeline.MaxChunk() != 5*time.Minute {
		t.Fatalf("unexpected max chunk: %v", cfg.Pipeline.MaxChunk())
	}
	if cfg.Pipeline.OffsetMode != "source_timeline" {
		t.Fatalf("expected offset mode lowercased, got %q", cfg.Pipeline.OffsetMode)
	}
	if cfg.Pipeline.ChunkFormat != "wav" {
		t.Fatalf("expected chunk format normalized, got %q", cfg.Pipeline.ChunkFormat)
	}
	if cfg.Recognizer.OpenAI.BaseURL != "http://localhost:9000/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Recognizer.OpenAI.BaseURL)
	}
	if cfg.Output.Format != "markdown" {
		t.Fatalf("expected md alias to map to markdown, got %q", cfg.Output.Format)
	}
	if cfg.Normalize.Profile != "t2s" {
		t.Fatalf("expected opencc profile without .json suffix, got %q", cfg.Normalize.Profile)
	}
	if got := strings.Join(cfg.Watch.Extensions, ","); got != ".mp3,.m4a" {
		t.Fatalf("unexpected watch extensions: %q", got)
	}
}

func TestEnvVarOverridesConfigFileForAPIKeys(t *testing.T) {
	clearRecognizerEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "env-gemini")
	t.Setenv("GOOGLE_CLOUD_BUCKET", "env-bucket")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `[recognizer]
backend = "gemini"

[recognizer.gemini]
api_key = "file-gemini"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Recognizer.Gemini.APIKey != "env-gemini" {
		t.Fatalf("expected env key to win, got %q", cfg.Recognizer.Gemini.APIKey)
	}
	if cfg.Recognizer.GoogleSpeech.Bucket != "env-bucket" {
		t.Fatalf("expected bucket from env, got %q", cfg.Recognizer.GoogleSpeech.Bucket)
	}
}

func TestLoadRejectsBackendWithoutCredentials(t *testing.T) {
	clearRecognizerEnv(t)
	t.Setenv("HOME", t.TempDir())

	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[recognizer]\nbackend = \"openai\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error when openai backend lacks an API key")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_openai_api_key_here") {
		t.Fatalf("sample config missing placeholder key: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Pipeline.MaxChunkDuration != "10m" {
		t.Fatalf("unexpected sample max chunk: %q", cfg.Pipeline.MaxChunkDuration)
	}
	if cfg.Recognizer.Backend != config.BackendWhisperX {
		t.Fatalf("unexpected sample backend: %q", cfg.Recognizer.Backend)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero max chunk", func(c *config.Config) { c.Pipeline.MaxChunkDuration = "0s" }},
		{"unparseable silence", func(c *config.Config) { c.Pipeline.MinSilenceLength = "soon" }},
		{"negative padding", func(c *config.Config) { c.Pipeline.SilencePadding = "-1s" }},
		{"positive threshold", func(c *config.Config) { c.Pipeline.SilenceThreshold = 3 }},
		{"silence longer than chunk", func(c *config.Config) { c.Pipeline.MinSilenceLength = "11m" }},
		{"unknown chunk format", func(c *config.Config) { c.Pipeline.ChunkFormat = "aiff" }},
		{"unknown offset mode", func(c *config.Config) { c.Pipeline.OffsetMode = "chunk_start" }},
		{"unknown backend", func(c *config.Config) { c.Recognizer.Backend = "sphinx" }},
		{"pyannote without token", func(c *config.Config) { c.Recognizer.WhisperX.VADMethod = "pyannote" }},
		{"gspeech without bucket", func(c *config.Config) { c.Recognizer.Backend = config.BackendGoogleSpeech }},
		{"unknown output format", func(c *config.Config) { c.Output.Format = "pdf" }},
		{"unknown log level", func(c *config.Config) { c.Logging.Level = "trace" }},
		{"negative free space", func(c *config.Config) { c.Paths.MinFreeMiB = -1 }},
		{"negative ntfy timeout", func(c *config.Config) { c.Notifications.RequestTimeout = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestEncodeRoundTripsThroughLoad(t *testing.T) {
	clearRecognizerEnv(t)
	t.Setenv("HOME", t.TempDir())

	cfg := config.Default()
	cfg.Pipeline.Language = "en"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "effective.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write encoded config: %v", err)
	}
	loaded, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Pipeline.Language != "en" {
		t.Fatalf("expected language to survive encoding, got %q", loaded.Pipeline.Language)
	}
}
