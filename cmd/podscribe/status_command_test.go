package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"podscribe/internal/deps"
	"podscribe/internal/pipeline"
)

func TestStatusReportsReadiness(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	requireContains(t, out, "== Configuration ==")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "== Checks ==")
	requireContains(t, out, "whisperx")
	if strings.Contains(out, "[ERROR]") {
		t.Fatalf("expected no errors with stubbed binaries, got:\n%s", out)
	}
}

func TestStatusFailsWhenRequiredProgramMissing(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Tools.FFmpeg = "podscribe-missing-ffmpeg"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err == nil {
		t.Fatalf("expected status to fail, got:\n%s", out)
	}
	requireContains(t, out, "podscribe-missing-ffmpeg")
	requireContains(t, out, "Missing:")
}

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Recognizer", statusError, "unreachable", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Recognizer:", "[ERROR] unreachable")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Recognizer", statusOK, "ready", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Available: true, Path: "/usr/bin/ffmpeg"},
		{Name: "FFprobe", Detail: `binary "ffprobe" not found`},
		{Name: "uvx", Optional: true},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), lines)
	}
	requireContains(t, lines[0], "[OK] Ready (/usr/bin/ffmpeg)")
	requireContains(t, lines[1], `[ERROR] binary "ffprobe" not found`)
	requireContains(t, lines[2], "[WARN] not available (optional)")
	requireContains(t, lines[3], "Missing:")
	requireContains(t, lines[3], "FFprobe")
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
}

func TestBatchTableListsFailures(t *testing.T) {
	summary := pipeline.BatchSummary{
		Results: []pipeline.Result{{Source: "/in/a.mp3", Document: "/out/a.md", Chunks: 2, Succeeded: 2}},
		Failed:  map[string]error{"/in/b.mp3": fmt.Errorf("segment /in/b.mp3: unreadable")},
	}
	table := batchTable(summary)
	requireContains(t, table, "a.mp3")
	requireContains(t, table, "completed")
	requireContains(t, table, "2/2")
	requireContains(t, table, "b.mp3")
	requireContains(t, table, "unreadable")

	if batchTable(pipeline.BatchSummary{}) != "" {
		t.Fatal("expected empty table for empty summary")
	}
}
