package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"podscribe/internal/language"
	"podscribe/internal/media/audio"
	"podscribe/internal/services"
	"podscribe/internal/transcript"
)

const (
	DefaultModel = "gemini-2.5-flash"
	// MaxInlineBytes is the largest request the API accepts inline.
	MaxInlineBytes = 20 << 20
)

const transcribePrompt = `Transcribe this audio verbatim.
Respond with JSON only, using this shape:
{"language": "<ISO 639-1 code>", "segments": [{"start": <seconds>, "end": <seconds>, "text": "<sentence>"}]}
Times are seconds from the start of the audio. Use one segment per sentence, in order.`

// Config selects the API key and model.
type Config struct {
	APIKey string
	Model  string
}

// generator is the part of genai.Models the recognizer calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Recognizer sends clips to Gemini.
type Recognizer struct {
	model  string
	models generator
}

// New creates a Gemini API client.
func New(ctx context.Context, cfg Config) (*Recognizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "gemini", "init", "api key required", nil)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newWithGenerator(cfg.Model, client.Models), nil
}

func newWithGenerator(model string, models generator) *Recognizer {
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}
	return &Recognizer{model: model, models: models}
}

// Name identifies the backend in logs and the run ledger.
func (r *Recognizer) Name() string { return "gemini" }

// Close releases nothing; the genai client holds no open streams.
func (r *Recognizer) Close() error { return nil }

// Transcribe sends clip inline and parses the JSON reply.
func (r *Recognizer) Transcribe(ctx context.Context, clip audio.Clip, lang string) (transcript.Transcript, error) {
	data, err := os.ReadFile(clip.Path)
	if err != nil {
		return transcript.Transcript{}, fmt.Errorf("gemini: read %s: %w", clip.Path, err)
	}
	if len(data) > MaxInlineBytes {
		return transcript.Transcript{}, services.Wrap(services.ErrValidation, "gemini", "transcribe",
			fmt.Sprintf("%s is %d bytes, above the %d byte inline limit; lower pipeline.max_chunk_duration", filepath.Base(clip.Path), len(data), MaxInlineBytes), nil)
	}

	prompt := transcribePrompt
	if code := language.Normalize(lang); code != "" {
		prompt += fmt.Sprintf("\nThe speech is in %s (%s).", language.DisplayName(code), code)
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, MIMEType(clip.Path)),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	resp, err := r.models.GenerateContent(ctx, r.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	})
	if err != nil {
		return transcript.Transcript{}, classify(err)
	}
	if resp == nil {
		return transcript.Transcript{}, services.Wrap(services.ErrExternalTool, "gemini", "transcribe", "empty response", nil)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return transcript.Transcript{}, services.Wrap(services.ErrExternalTool, "gemini", "transcribe", "empty response", nil)
	}
	return parseReply(text, lang)
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "gemini", "generate content", "", err)
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "gemini", "generate content", "credentials rejected", err)
		}
	}
	msg := err.Error()
	if strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "quota") {
		return services.Wrap(services.ErrTransient, "gemini", "generate content", "rate limited", err)
	}
	return services.Wrap(services.ErrExternalTool, "gemini", "generate content", "", err)
}

// MIMEType maps an audio file extension to the type Gemini expects.
func MIMEType(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "wav":
		return "audio/wav"
	case "flac":
		return "audio/flac"
	case "m4a", "aac":
		return "audio/aac"
	case "ogg", "opus":
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}
