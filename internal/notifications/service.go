package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podscribe/internal/config"
)

const userAgent = "podscribe/0.1"

// Event names a notification type.
type Event string

const (
	EventRunCompleted   Event = "run_completed"
	EventRunFailed      Event = "run_failed"
	EventBatchCompleted Event = "batch_completed"
	EventTest           Event = "test"
)

// Payload carries the message fields for an event.
type Payload map[string]string

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed Service, or a no-op one when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, p Payload) (message, bool) {
	switch event {
	case EventRunCompleted:
		body := fmt.Sprintf("Transcribed %s (%s chunks ok)", p["source"], p["chunks"])
		if doc := p["document"]; doc != "" {
			body += "\nDocument: " + doc
		}
		tags := []string{"podscribe", "run", "completed"}
		if p["status"] == "partial" {
			tags = []string{"podscribe", "run", "partial"}
		}
		return message{
			title: "podscribe - Transcript Ready",
			body:  body,
			tags:  tags,
		}, true
	case EventRunFailed:
		body := "Transcription failed"
		if src := p["source"]; src != "" {
			body += " for " + src
		}
		if errText := strings.TrimSpace(p["error"]); errText != "" {
			body += ": " + errText
		}
		return message{
			title:    "podscribe - Error",
			body:     body,
			tags:     []string{"podscribe", "error", "alert"},
			priority: "high",
		}, true
	case EventBatchCompleted:
		title := "podscribe - Batch Complete"
		body := fmt.Sprintf("Batch %s complete: %s transcribed in %s", p["dir"], p["succeeded"], p["elapsed"])
		if failed := p["failed"]; failed != "" && failed != "0" {
			title = "podscribe - Batch Complete (with errors)"
			body = fmt.Sprintf("Batch %s complete: %s transcribed, %s failed in %s", p["dir"], p["succeeded"], failed, p["elapsed"])
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"podscribe", "batch", "completed"},
		}, true
	case EventTest:
		return message{
			title:    "podscribe - Test",
			body:     "Notification system test",
			tags:     []string{"podscribe", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
