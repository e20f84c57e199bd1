package pipeline_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"podscribe/internal/config"
	"podscribe/internal/ledger"
	"podscribe/internal/media/audio"
	"podscribe/internal/media/ffprobe"
	"podscribe/internal/notifications"
	"podscribe/internal/pipeline"
	"podscribe/internal/render"
	"podscribe/internal/runlock"
	"podscribe/internal/segment"
	"podscribe/internal/testsupport"
	"podscribe/internal/transcript"
)

func probeOf(seconds string) ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{Index: 0, CodecType: "audio", SampleRate: "44100", Channels: 2}},
		Format:  ffprobe.Format{Duration: seconds, FormatName: "mp3"},
	}
}

func inspectorFor(results map[string]ffprobe.Result) audio.Inspector {
	return func(_ context.Context, path string) (ffprobe.Result, error) {
		probe, ok := results[filepath.Base(path)]
		if !ok {
			return ffprobe.Result{}, errors.New("invalid data found when processing input")
		}
		return probe, nil
	}
}

// fixedSplitter cuts every clip into n equal chunks without touching ffmpeg.
type fixedSplitter struct {
	n     int
	calls int
}

func (s *fixedSplitter) Split(_ context.Context, clip audio.Clip, outDir string) ([]segment.Chunk, error) {
	s.calls++
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	length := clip.Duration / time.Duration(s.n)
	chunks := make([]segment.Chunk, s.n)
	for i := range chunks {
		chunks[i] = segment.Chunk{
			Index:        i + 1,
			Clip:         audio.Clip{Path: filepath.Join(outDir, segment.ChunkFileName(clip.Base(), i+1, "mp3")), Duration: length},
			SourceOffset: time.Duration(i) * length,
			Strategy:     segment.StrategyFixed,
		}
	}
	return chunks, nil
}

type scriptedRecognizer struct {
	byName map[string]transcript.Transcript
	fail   map[string]bool
}

func (r *scriptedRecognizer) Transcribe(_ context.Context, clip audio.Clip, _ string) (transcript.Transcript, error) {
	name := filepath.Base(clip.Path)
	if r.fail[name] {
		return transcript.Transcript{}, errors.New("recognizer unavailable")
	}
	return r.byName[name], nil
}

func openLedger(t *testing.T) *ledger.Store {
	t.Helper()
	return testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
}

func baseConfig(out string) pipeline.Config {
	return pipeline.Config{
		OutputDir: out,
		Language:  "en",
		Format:    render.FormatMarkdown,
		Backend:   "fake",
	}
}

func TestRunProducesDocumentFromSurvivingChunks(t *testing.T) {
	out := t.TempDir()
	store := openLedger(t)
	rec := &scriptedRecognizer{
		byName: map[string]transcript.Transcript{
			"talk_001.mp3": {Language: "en", Segments: []transcript.Segment{{Start: 0, End: 61.5, Text: "first"}}},
			"talk_003.mp3": {Language: "en", Segments: []transcript.Segment{{Start: 2, End: 4, Text: "third"}}},
		},
		fail: map[string]bool{"talk_002.mp3": true},
	}
	runner := pipeline.NewRunner(baseConfig(out), &fixedSplitter{n: 3}, rec,
		pipeline.WithInspector(inspectorFor(map[string]ffprobe.Result{"talk.mp3": probeOf("1800")})),
		pipeline.WithLedger(store),
		pipeline.WithIDGenerator(func() string { return "run-fixed" }),
	)

	result, err := runner.Run(context.Background(), "/in/talk.mp3")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.RunID != "run-fixed" || result.Chunks != 3 || result.Succeeded != 2 || result.Failed() != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Status() != ledger.StatusPartial {
		t.Fatalf("expected partial status, got %s", result.Status())
	}
	want := filepath.Join(out, "transcripts", "talk", "talk.md")
	if result.Document != want {
		t.Fatalf("document path: got %q want %q", result.Document, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	doc := string(data)
	if !strings.Contains(doc, "first third") {
		t.Fatalf("merged text missing:\n%s", doc)
	}
	// Chunk 3 starts where chunk 1 ended: 61.5 + 2.
	if !strings.Contains(doc, "**[01:03-01:05]** third") {
		t.Fatalf("chunk 3 not shifted by chunk 1 last end:\n%s", doc)
	}
	if _, err := os.Stat(filepath.Join(out, "chunks", "talk", "talk_001.md")); err != nil {
		t.Fatalf("chunk artifact missing: %v", err)
	}

	run, err := store.GetRun(context.Background(), "run-fixed")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != ledger.StatusPartial || run.Succeeded != 2 || run.Failed != 1 || run.OutputPath != want {
		t.Fatalf("unexpected ledger run: %+v", run)
	}
	if run.Backend != "fake" || run.Strategy != string(segment.StrategyFixed) {
		t.Fatalf("unexpected ledger run metadata: %+v", run)
	}
	chunks, err := store.Chunks(context.Background(), "run-fixed")
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(chunks) != 3 || chunks[1].OK || chunks[1].ErrorMessage == "" {
		t.Fatalf("unexpected ledger chunks: %+v", chunks)
	}
}

func TestRunSourceTimelineOffsets(t *testing.T) {
	out := t.TempDir()
	rec := &scriptedRecognizer{byName: map[string]transcript.Transcript{
		"talk_001.mp3": {Segments: []transcript.Segment{{Start: 0, End: 5, Text: "a"}}},
		"talk_002.mp3": {Segments: []transcript.Segment{{Start: 1, End: 2, Text: "b"}}},
	}}
	cfg := baseConfig(out)
	cfg.OffsetMode = transcript.OffsetSourceTimeline
	runner := pipeline.NewRunner(cfg, &fixedSplitter{n: 2}, rec,
		pipeline.WithInspector(inspectorFor(map[string]ffprobe.Result{"talk.mp3": probeOf("1200")})),
	)
	result, err := runner.Run(context.Background(), "/in/talk.mp3")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	segs := result.Transcript.Segments
	if len(segs) != 2 || segs[1].Start != 601 || segs[1].End != 602 {
		t.Fatalf("expected chunk 2 shifted by its source offset, got %+v", segs)
	}
}

func TestRunSegmentFailureIsStageError(t *testing.T) {
	store := openLedger(t)
	splitter := &fixedSplitter{n: 2}
	runner := pipeline.NewRunner(baseConfig(t.TempDir()), splitter, &scriptedRecognizer{},
		pipeline.WithInspector(inspectorFor(nil)),
		pipeline.WithLedger(store),
		pipeline.WithIDGenerator(func() string { return "run-bad" }),
	)

	_, err := runner.Run(context.Background(), "/in/broken.mp3")
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %T %v", err, err)
	}
	if stageErr.Stage != pipeline.StageSegment || stageErr.Source != "/in/broken.mp3" || stageErr.Chunk != 0 {
		t.Fatalf("unexpected stage error: %+v", stageErr)
	}
	if !errors.Is(err, audio.ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable in chain, got %v", err)
	}
	if splitter.calls != 0 {
		t.Fatal("splitter should not run for unreadable audio")
	}
	run, err := store.GetRun(context.Background(), "run-bad")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != ledger.StatusFailed || run.ErrorMessage == "" {
		t.Fatalf("expected failed ledger run, got %+v", run)
	}
}

type exportFailingSplitter struct{ chunk int }

func (s exportFailingSplitter) Split(_ context.Context, clip audio.Clip, outDir string) ([]segment.Chunk, error) {
	return nil, &segment.ExportError{
		Chunk: s.chunk,
		Path:  filepath.Join(outDir, segment.ChunkFileName(clip.Base(), s.chunk, "mp3")),
		Err:   errors.New("encoder crashed"),
	}
}

func TestRunExportFailureNamesChunk(t *testing.T) {
	runner := pipeline.NewRunner(baseConfig(t.TempDir()), exportFailingSplitter{chunk: 3}, &scriptedRecognizer{},
		pipeline.WithInspector(inspectorFor(map[string]ffprobe.Result{"talk.mp3": probeOf("1800")})),
	)

	_, err := runner.Run(context.Background(), "/in/talk.mp3")
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %T %v", err, err)
	}
	if stageErr.Stage != pipeline.StageSegment || stageErr.Chunk != 3 {
		t.Fatalf("unexpected stage error: %+v", stageErr)
	}
	if !strings.Contains(err.Error(), "chunk 3") {
		t.Fatalf("expected chunk ordinal in message, got %q", err.Error())
	}
}

func TestRunRenderFailureKeepsIOError(t *testing.T) {
	out := t.TempDir()
	if err := os.WriteFile(filepath.Join(out, "transcripts"), []byte("not a dir"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	rec := &scriptedRecognizer{byName: map[string]transcript.Transcript{
		"talk_001.mp3": {Segments: []transcript.Segment{{Start: 0, End: 1, Text: "x"}}},
	}}
	runner := pipeline.NewRunner(baseConfig(out), &fixedSplitter{n: 1}, rec,
		pipeline.WithInspector(inspectorFor(map[string]ffprobe.Result{"talk.mp3": probeOf("30")})),
	)

	_, err := runner.Run(context.Background(), "/in/talk.mp3")
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != pipeline.StageRender {
		t.Fatalf("expected render StageError, got %v", err)
	}
	var pathErr *fs.PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("expected underlying *fs.PathError, got %v", err)
	}
}

func TestRunAllChunksFailedStillRenders(t *testing.T) {
	out := t.TempDir()
	rec := &scriptedRecognizer{fail: map[string]bool{"talk_001.mp3": true, "talk_002.mp3": true}}
	runner := pipeline.NewRunner(baseConfig(out), &fixedSplitter{n: 2}, rec,
		pipeline.WithInspector(inspectorFor(map[string]ffprobe.Result{"talk.mp3": probeOf("1200")})),
	)
	result, err := runner.Run(context.Background(), "/in/talk.mp3")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Succeeded != 0 || result.Status() != ledger.StatusFailed {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Transcript.Segments) != 0 || result.Transcript.Text != "" {
		t.Fatalf("expected empty transcript, got %+v", result.Transcript)
	}
	if _, err := os.Stat(result.Document); err != nil {
		t.Fatalf("document not rendered: %v", err)
	}
}

func TestRunCancelledIsInterrupted(t *testing.T) {
	store := openLedger(t)
	runner := pipeline.NewRunner(baseConfig(t.TempDir()), &fixedSplitter{n: 2}, &scriptedRecognizer{},
		pipeline.WithInspector(inspectorFor(map[string]ffprobe.Result{"talk.mp3": probeOf("1200")})),
		pipeline.WithLedger(store),
		pipeline.WithIDGenerator(func() string { return "run-cancel" }),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, "/in/talk.mp3")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != pipeline.StageTranscribe {
		t.Fatalf("expected transcribe StageError, got %v", err)
	}
	run, err := store.GetRun(context.Background(), "run-cancel")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != ledger.StatusInterrupted {
		t.Fatalf("expected interrupted status, got %s", run.Status)
	}
}

func TestRunFailsWhenLockHeld(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "podscribe.lock")
	held, err := runlock.Acquire(context.Background(), lockPath, 0)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	cfg := baseConfig(t.TempDir())
	cfg.LockPath = lockPath
	splitter := &fixedSplitter{n: 1}
	runner := pipeline.NewRunner(cfg, splitter, &scriptedRecognizer{},
		pipeline.WithInspector(inspectorFor(map[string]ffprobe.Result{"talk.mp3": probeOf("30")})),
	)
	_, err = runner.Run(context.Background(), "/in/talk.mp3")
	if !errors.Is(err, runlock.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != pipeline.StageLock {
		t.Fatalf("expected lock StageError, got %v", err)
	}
	if splitter.calls != 0 {
		t.Fatal("no work should happen without the lock")
	}
}

func TestRunDirContinuesPastFailures(t *testing.T) {
	in := t.TempDir()
	testsupport.WriteAudioStubs(t, in, "b.mp3", "a.mp3", "notes.txt", ".hidden.mp3")
	out := t.TempDir()
	rec := &scriptedRecognizer{byName: map[string]transcript.Transcript{
		"b_001.mp3": {Segments: []transcript.Segment{{Start: 0, End: 1, Text: "bee"}}},
	}}
	runner := pipeline.NewRunner(baseConfig(out), &fixedSplitter{n: 1}, rec,
		pipeline.WithInspector(inspectorFor(map[string]ffprobe.Result{"b.mp3": probeOf("30")})),
	)

	summary, err := runner.RunDir(context.Background(), in, []string{".mp3"})
	if err != nil {
		t.Fatalf("RunDir: %v", err)
	}
	if len(summary.Results) != 1 || filepath.Base(summary.Results[0].Source) != "b.mp3" {
		t.Fatalf("unexpected results: %+v", summary.Results)
	}
	if len(summary.Failed) != 1 {
		t.Fatalf("expected one failure, got %v", summary.Failed)
	}
	if _, ok := summary.Failed[filepath.Join(in, "a.mp3")]; !ok {
		t.Fatalf("a.mp3 should have failed: %v", summary.Failed)
	}
}

func TestListAudioSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.M4A", "a.mp3", "b.txt", ".x.mp3"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.mp3"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files, err := pipeline.ListAudio(dir, []string{"mp3", ".m4a"})
	if err != nil {
		t.Fatalf("ListAudio: %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	if strings.Join(names, ",") != "a.mp3,c.M4A" {
		t.Fatalf("unexpected files: %v", names)
	}
}

func TestLayoutFor(t *testing.T) {
	layout := pipeline.LayoutFor("/out", "ep01", render.FormatDocx)
	if layout.ChunkDir != "/out/chunks/ep01" {
		t.Fatalf("chunk dir: %q", layout.ChunkDir)
	}
	if layout.Document != "/out/transcripts/ep01/ep01.docx" {
		t.Fatalf("document: %q", layout.Document)
	}
	odd := pipeline.LayoutFor("/out", "a/b: 第1期?", render.FormatMarkdown)
	if odd.Document != "/out/transcripts/a-b- 第1期/a-b- 第1期.md" {
		t.Fatalf("unsafe base not sanitized: %q", odd.Document)
	}
}

func TestFormatElapsed(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                      "0h 0m 0.00s",
		90*time.Minute + 1500*time.Millisecond: "1h 30m 1.50s",
		-time.Second:                           "0h 0m 0.00s",
		25*time.Hour + 59*time.Minute:          "25h 59m 0.00s",
	}
	for d, want := range cases {
		if got := pipeline.FormatElapsed(d); got != want {
			t.Errorf("FormatElapsed(%s) = %q, want %q", d, got, want)
		}
	}
}

func TestStageErrorMessage(t *testing.T) {
	err := &pipeline.StageError{Stage: "transcribe", Source: "/in/a.mp3", Chunk: 2, Err: errors.New("boom")}
	if got := err.Error(); got != "transcribe /in/a.mp3 chunk 2: boom" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestConfigFromDefaults(t *testing.T) {
	cfg := config.Default()
	run, err := pipeline.ConfigFrom(&cfg)
	if err != nil {
		t.Fatalf("ConfigFrom: %v", err)
	}
	if run.Format != render.FormatMarkdown || run.OffsetMode != transcript.OffsetLastSegmentEnd {
		t.Fatalf("unexpected run config: %+v", run)
	}
	if run.Language != "zh" || !run.NormalizeScript || run.LockPath != cfg.LockPath() {
		t.Fatalf("unexpected run config: %+v", run)
	}
	seg := pipeline.SegmentConfig(&cfg)
	if seg.MaxChunk != 10*time.Minute || seg.Format != "mp3" {
		t.Fatalf("unexpected segment config: %+v", seg)
	}
}

type recordingNotifier struct {
	events   []notifications.Event
	payloads []notifications.Payload
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.events = append(n.events, event)
	n.payloads = append(n.payloads, payload)
	return nil
}

func TestRunDirPublishesOutcomes(t *testing.T) {
	in := t.TempDir()
	testsupport.WriteAudioStubs(t, in, "a.mp3", "b.mp3")
	rec := &scriptedRecognizer{byName: map[string]transcript.Transcript{
		"b_001.mp3": {Segments: []transcript.Segment{{Start: 0, End: 1, Text: "bee"}}},
	}}
	notifier := &recordingNotifier{}
	runner := pipeline.NewRunner(baseConfig(t.TempDir()), &fixedSplitter{n: 1}, rec,
		pipeline.WithInspector(inspectorFor(map[string]ffprobe.Result{"b.mp3": probeOf("30")})),
		pipeline.WithNotifier(notifier),
	)

	if _, err := runner.RunDir(context.Background(), in, nil); err != nil {
		t.Fatalf("RunDir: %v", err)
	}
	want := []notifications.Event{
		notifications.EventRunFailed,
		notifications.EventRunCompleted,
		notifications.EventBatchCompleted,
	}
	if len(notifier.events) != len(want) {
		t.Fatalf("events: got %v want %v", notifier.events, want)
	}
	for i := range want {
		if notifier.events[i] != want[i] {
			t.Fatalf("event %d: got %s want %s", i, notifier.events[i], want[i])
		}
	}
	if got := notifier.payloads[1]["chunks"]; got != "1/1" {
		t.Fatalf("unexpected chunk count %q", got)
	}
	if got := notifier.payloads[2]["failed"]; got != "1" {
		t.Fatalf("unexpected batch failures %q", got)
	}
}

func TestCancelledRunIsNotAnnounced(t *testing.T) {
	notifier := &recordingNotifier{}
	runner := pipeline.NewRunner(baseConfig(t.TempDir()), &fixedSplitter{n: 1}, &scriptedRecognizer{},
		pipeline.WithInspector(inspectorFor(map[string]ffprobe.Result{"talk.mp3": probeOf("30")})),
		pipeline.WithNotifier(notifier),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := runner.Run(ctx, "/in/talk.mp3"); err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(notifier.events) != 0 {
		t.Fatalf("expected no notifications, got %v", notifier.events)
	}
}
