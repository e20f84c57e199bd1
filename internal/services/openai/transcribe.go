package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"podscribe/internal/language"
	"podscribe/internal/media/audio"
	"podscribe/internal/services"
	"podscribe/internal/transcript"
)

type verboseResponse struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe uploads clip and returns its segments.
func (c *Client) Transcribe(ctx context.Context, clip audio.Clip, lang string) (transcript.Transcript, error) {
	if c.cfg.APIKey == "" {
		return transcript.Transcript{}, services.Wrap(services.ErrConfiguration, "openai", "transcribe", "api key required", nil)
	}
	data, err := os.ReadFile(clip.Path)
	if err != nil {
		return transcript.Transcript{}, fmt.Errorf("openai: read %s: %w", clip.Path, err)
	}
	body, contentType, err := buildForm(c.cfg.Model, filepath.Base(clip.Path), language.Normalize(lang), data)
	if err != nil {
		return transcript.Transcript{}, err
	}

	attempts := c.retryAttempts()
	for attempt := 1; ; attempt++ {
		resp, err := c.postOnce(ctx, body, contentType)
		if err == nil {
			return toTranscript(resp, lang), nil
		}
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return transcript.Transcript{}, classify(err, attempt)
		}
		if err := c.sleep(ctx, delay); err != nil {
			return transcript.Transcript{}, err
		}
	}
}

func buildForm(model, filename, lang string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"model", model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	if lang != "" {
		fields = append(fields, [2]string{"language", lang})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("openai: write %s field: %w", f[0], err)
		}
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("openai: create file field: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("openai: write audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("openai: close multipart writer: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

func (c *Client) postOnce(ctx context.Context, body []byte, contentType string) (verboseResponse, error) {
	var out verboseResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("openai: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("openai: http error (timeout=%s): %w", c.timeoutDuration(), err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("openai: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return out, &httpStatusError{StatusCode: resp.StatusCode, Body: services.Snippet(string(raw)), RetryAfter: retryAfter}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, services.Wrap(services.ErrValidation, "openai", "decode response", services.Snippet(string(raw)), err)
	}
	if out.Error != nil {
		return out, services.Wrap(services.ErrExternalTool, "openai", "api error", out.Error.Message, nil)
	}
	return out, nil
}

func classify(err error, attempts int) error {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch code := statusErr.StatusCode; {
		case code == http.StatusUnauthorized, code == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "openai", "transcribe", "credentials rejected", err)
		case code == http.StatusNotFound:
			return services.Wrap(services.ErrNotFound, "openai", "transcribe", "endpoint or model not found", err)
		case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "openai", "transcribe", fmt.Sprintf("failed after %d attempts", attempts), err)
		default:
			return services.Wrap(services.ErrExternalTool, "openai", "transcribe", "", err)
		}
	}
	return err
}

func toTranscript(resp verboseResponse, hint string) transcript.Transcript {
	out := transcript.Transcript{
		Language: language.Normalize(resp.Language),
		Segments: make([]transcript.Segment, 0, len(resp.Segments)),
	}
	if out.Language == "" {
		out.Language = language.Normalize(hint)
	}
	for _, seg := range resp.Segments {
		out.Segments = append(out.Segments, transcript.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	if len(out.Segments) == 0 && strings.TrimSpace(resp.Text) != "" {
		out.Segments = append(out.Segments, transcript.Segment{Start: 0, End: resp.Duration, Text: strings.TrimSpace(resp.Text)})
	}
	out.Text = transcript.JoinText(out.Segments)
	return out
}
