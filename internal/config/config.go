package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains output, log, and state directories.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	StateDir   string `toml:"state_dir"`
	MinFreeMiB int    `toml:"min_free_mib"`
}

// Pipeline holds segmentation and merge settings. Durations are Go duration
// strings ("10m", "1000ms").
type Pipeline struct {
	MaxChunkDuration string  `toml:"max_chunk_duration"`
	MinSilenceLength string  `toml:"min_silence_length"`
	SilenceThreshold float64 `toml:"silence_threshold_db"`
	SilencePadding   string  `toml:"silence_padding"`
	Language         string  `toml:"language"`
	NormalizeScript  bool    `toml:"normalize_script"`
	ChunkFormat      string  `toml:"chunk_format"`
	OffsetMode       string  `toml:"offset_mode"`
	LockWait         string  `toml:"lock_wait"`
}

// MaxChunk returns the parsed maximum chunk length.
func (p Pipeline) MaxChunk() time.Duration { return parseDuration(p.MaxChunkDuration) }

// MinSilence returns the parsed minimum silence window.
func (p Pipeline) MinSilence() time.Duration { return parseDuration(p.MinSilenceLength) }

// Padding returns the parsed silence padding kept around each piece.
func (p Pipeline) Padding() time.Duration { return parseDuration(p.SilencePadding) }

// LockTimeout returns how long a run waits for the recognizer lock.
func (p Pipeline) LockTimeout() time.Duration { return parseDuration(p.LockWait) }

// Tools names the external executables.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
	UVX     string `toml:"uvx"`
}

// WhisperX configures the local WhisperX recognizer.
type WhisperX struct {
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
	CacheDir    string `toml:"cache_dir"`
}

// OpenAI configures an OpenAI-compatible transcription endpoint.
type OpenAI struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Gemini configures the Gemini recognizer.
type Gemini struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// GoogleSpeech configures the Cloud Speech-to-Text recognizer.
type GoogleSpeech struct {
	Bucket          string `toml:"bucket"`
	ObjectPrefix    string `toml:"object_prefix"`
	CredentialsFile string `toml:"credentials_file"`
	Model           string `toml:"model"`
}

// Recognizer selects and configures the speech recognition backend.
type Recognizer struct {
	Backend      string       `toml:"backend"`
	WhisperX     WhisperX     `toml:"whisperx"`
	OpenAI       OpenAI       `toml:"openai"`
	Gemini       Gemini       `toml:"gemini"`
	GoogleSpeech GoogleSpeech `toml:"google_speech"`
}

// Normalize configures Traditional to Simplified Chinese conversion.
type Normalize struct {
	Profile string `toml:"profile"`
}

// Output configures the final document.
type Output struct {
	Format string `toml:"format"`
	Title  string `toml:"title"`
}

// Logging configures log format and level.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Tracing configures the OpenTelemetry span exporter.
type Tracing struct {
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"`
	ServiceName string `toml:"service_name"`
}

// Notifications configures ntfy delivery of run outcomes. An empty topic
// disables notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Watch configures the drop-folder watcher.
type Watch struct {
	Dir         string   `toml:"dir"`
	SettleDelay string   `toml:"settle_delay"`
	Extensions  []string `toml:"extensions"`
}

// Settle returns how long a file must stay quiet before it is processed.
func (w Watch) Settle() time.Duration { return parseDuration(w.SettleDelay) }

// Config encapsulates all configuration values for podscribe.
//
// Configuration sections by subsystem:
//   - Paths: output, log, and state directories
//   - Pipeline: segmentation thresholds, language, merge offset mode
//   - Tools: ffmpeg, ffprobe, and uvx executables
//   - Recognizer: backend selection and per-backend settings
//   - Normalize: OpenCC conversion profile
//   - Output: document format and title
//   - Logging, Tracing: observability
//   - Notifications: ntfy run alerts
//   - Watch: drop-folder watcher
type Config struct {
	Paths         Paths         `toml:"paths"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Tools         Tools         `toml:"tools"`
	Recognizer    Recognizer    `toml:"recognizer"`
	Normalize     Normalize     `toml:"normalize"`
	Output        Output        `toml:"output"`
	Logging       Logging       `toml:"logging"`
	Tracing       Tracing       `toml:"tracing"`
	Notifications Notifications `toml:"notifications"`
	Watch         Watch         `toml:"watch"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and environment fallbacks applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the output, log, and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath is the sqlite database recording runs.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

// LockPath is the file lock guarding the recognizer.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "recognizer.lock")
}

// TracePath is where spans are exported when tracing is enabled.
func (c *Config) TracePath() string {
	if strings.TrimSpace(c.Tracing.Path) != "" {
		return c.Tracing.Path
	}
	return filepath.Join(c.Paths.LogDir, "traces.jsonl")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

func parseDuration(value string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return d
}
