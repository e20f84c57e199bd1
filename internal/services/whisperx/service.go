package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"podscribe/internal/language"
	"podscribe/internal/media/audio"
	"podscribe/internal/transcript"
)

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	uvxBinary     string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, uvxBinary string) *Service {
	if strings.TrimSpace(uvxBinary) == "" {
		uvxBinary = UVXCommand
	}
	return &Service{
		cfg:       cfg,
		uvxBinary: uvxBinary,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// CUDAEnabled returns whether CUDA is enabled.
func (s *Service) CUDAEnabled() bool {
	return s.cfg.CUDAEnabled
}

// Name identifies the backend in logs and the run ledger.
func (s *Service) Name() string { return "whisperx" }

// Close releases nothing; WhisperX runs as a child process per call.
func (s *Service) Close() error { return nil }

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	// Force legacy behavior so bundled WhisperX binaries can load checkpoints safely.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Transcribe runs WhisperX on clip and returns its segments. lang may be
// empty to let WhisperX detect the language.
func (s *Service) Transcribe(ctx context.Context, clip audio.Clip, lang string) (transcript.Transcript, error) {
	if clip.Path == "" {
		return transcript.Transcript{}, fmt.Errorf("whisperx: source path required")
	}

	outputDir := s.cfg.WorkDir
	if outputDir == "" {
		tmp, err := os.MkdirTemp("", "podscribe-whisperx-")
		if err != nil {
			return transcript.Transcript{}, fmt.Errorf("whisperx: create work dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		outputDir = tmp
	} else if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return transcript.Transcript{}, fmt.Errorf("whisperx: ensure output dir: %w", err)
	}

	args := s.buildArgs(clip.Path, outputDir, lang)
	if err := s.run(ctx, s.uvxBinary, args...); err != nil {
		return transcript.Transcript{}, fmt.Errorf("whisperx: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(clip.Path), filepath.Ext(clip.Path))
	result, err := LoadTranscript(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return transcript.Transcript{}, fmt.Errorf("whisperx: %w", err)
	}
	if result.Language == "" {
		result.Language = language.Normalize(lang)
	}
	return result, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, lang string) []string {
	args := make([]string, 0, 40)

	// Index URLs
	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--best_of", BestOf,
		"--temperature", Temperature,
		"--patience", Patience,
	)
	if s.cfg.ModelDir != "" {
		args = append(args, "--model_dir", s.cfg.ModelDir)
	}

	// VAD method
	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	// Language
	if code := language.Normalize(lang); code != "" {
		args = append(args, "--language", code)
	}

	// Device
	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

// Word represents a single word with timing from WhisperX output.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

// whisperXPayload is the JSON structure from WhisperX output.
type whisperXPayload struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// LoadTranscript reads a WhisperX JSON file. Segment text is trimmed and
// the transcript text is the space-joined segment texts.
func LoadTranscript(jsonPath string) (transcript.Transcript, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return transcript.Transcript{}, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return transcript.Transcript{}, fmt.Errorf("parse whisperx json: %w", err)
	}
	out := transcript.Transcript{
		Language: language.Normalize(payload.Language),
		Segments: make([]transcript.Segment, 0, len(payload.Segments)),
	}
	for _, seg := range payload.Segments {
		out.Segments = append(out.Segments, transcript.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	out.Text = transcript.JoinText(out.Segments)
	return out, nil
}
