package tracing_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podscribe/internal/tracing"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	p, err := tracing.Setup(context.Background(), tracing.Options{}, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestEnabledRequiresPath(t *testing.T) {
	if _, err := tracing.Setup(context.Background(), tracing.Options{Enabled: true}, nil); err == nil {
		t.Fatal("expected error without a trace path")
	}
}

func TestSpansAreWrittenToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "spans.jsonl")
	p, err := tracing.Setup(context.Background(), tracing.Options{
		Enabled:     true,
		Path:        path,
		ServiceName: "podscribe-test",
	}, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	ctx, span := tracing.Start(context.Background(), "transcribe", "source", "/in/a.mp3")
	_, child := tracing.Start(ctx, "split")
	tracing.End(child, nil)
	tracing.End(span, errors.New("recognizer down"))

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read traces: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"Name":"transcribe"`, `"Name":"split"`, "recognizer down", "/in/a.mp3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("trace output missing %q:\n%s", want, out)
		}
	}
}
