package segment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"podscribe/internal/logging"
	"podscribe/internal/media/audio"
)

type fakeDecoder struct {
	profile audio.Profile
	err     error
	calls   int
}

func (f *fakeDecoder) Profile(context.Context, audio.Clip) (audio.Profile, error) {
	f.calls++
	return f.profile, f.err
}

type exportCall struct {
	start  time.Duration
	length time.Duration
	dest   string
}

type fakeExporter struct {
	calls  []exportCall
	failAt int
}

func (f *fakeExporter) Export(_ context.Context, src audio.Clip, start, length time.Duration, dest string) (audio.Clip, error) {
	f.calls = append(f.calls, exportCall{start: start, length: length, dest: dest})
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return audio.Clip{}, errors.New("encoder crashed")
	}
	if err := os.WriteFile(dest, []byte("chunk"), 0o644); err != nil {
		return audio.Clip{}, err
	}
	return audio.Clip{Path: dest, Format: "mp3", Duration: length, SampleRate: src.SampleRate, Channels: src.Channels}, nil
}

func TestSplitPassesThroughShortClips(t *testing.T) {
	for _, duration := range []time.Duration{90 * time.Second, 10 * time.Minute} {
		decoder := &fakeDecoder{err: errors.New("decoder must not be called")}
		exporter := &fakeExporter{}
		engine := NewEngine(DefaultConfig(), decoder, exporter, logging.NewNop())
		outDir := filepath.Join(t.TempDir(), "chunks")

		clip := audio.Clip{Path: "/in/short.mp3", Duration: duration}
		chunks, err := engine.Split(context.Background(), clip, outDir)
		if err != nil {
			t.Fatalf("Split(%s) returned error: %v", duration, err)
		}
		if len(chunks) != 1 {
			t.Fatalf("expected one chunk, got %d", len(chunks))
		}
		c := chunks[0]
		if c.Index != 1 || c.SourceOffset != 0 || !c.PassThrough || c.Clip != clip || c.Strategy != StrategyPassThrough {
			t.Fatalf("unexpected pass-through chunk %+v", c)
		}
		if decoder.calls != 0 || len(exporter.calls) != 0 {
			t.Fatalf("expected no decode or export, got %d decodes %d exports", decoder.calls, len(exporter.calls))
		}
		if _, err := os.Stat(outDir); !os.IsNotExist(err) {
			t.Fatalf("expected no chunk directory to be created, stat err=%v", err)
		}
	}
}

func TestSplitFallsBackToFixedWindows(t *testing.T) {
	total := 25 * time.Minute
	decoder := &fakeDecoder{profile: profileOf(level{int(total / time.Millisecond), loud})}
	exporter := &fakeExporter{}
	engine := NewEngine(DefaultConfig(), decoder, exporter, logging.NewNop())
	outDir := t.TempDir()

	clip := audio.Clip{Path: "/in/lecture.m4a", Duration: total, SampleRate: 44100, Channels: 2}
	chunks, err := engine.Split(context.Background(), clip, outDir)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected ceil(25/10)=3 chunks, got %d", len(chunks))
	}
	wantNames := []string{"lecture_001.mp3", "lecture_002.mp3", "lecture_003.mp3"}
	for i, c := range chunks {
		if c.Index != i+1 {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if c.SourceOffset != time.Duration(i)*10*time.Minute {
			t.Fatalf("chunk %d offset %s", c.Index, c.SourceOffset)
		}
		if c.PassThrough || c.Strategy != StrategyFixed {
			t.Fatalf("unexpected chunk flags %+v", c)
		}
		if filepath.Base(c.Clip.Path) != wantNames[i] {
			t.Fatalf("chunk %d file %q, want %q", c.Index, filepath.Base(c.Clip.Path), wantNames[i])
		}
	}
	if chunks[0].Clip.Duration != 10*time.Minute || chunks[2].Clip.Duration != 5*time.Minute {
		t.Fatalf("unexpected chunk lengths %s, %s", chunks[0].Clip.Duration, chunks[2].Clip.Duration)
	}

	manifest, err := ReadManifest(outDir)
	if err != nil {
		t.Fatalf("ReadManifest returned error: %v", err)
	}
	if manifest.Strategy != StrategyFixed || len(manifest.Chunks) != 3 {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	if manifest.Chunks[1].File != "lecture_002.mp3" || manifest.Chunks[1].OffsetSeconds != 600 {
		t.Fatalf("unexpected manifest entry %+v", manifest.Chunks[1])
	}
}

func TestSplitUsesSilenceOffsets(t *testing.T) {
	cfg := Config{MaxChunk: 5 * time.Second, MinSilence: time.Second, SilenceThresholdDB: -40, Padding: 500 * time.Millisecond, Format: "wav"}
	decoder := &fakeDecoder{profile: profileOf(level{3000, loud}, level{2000, silent}, level{3000, loud})}
	exporter := &fakeExporter{}
	engine := NewEngine(cfg, decoder, exporter, logging.NewNop())

	clip := audio.Clip{Path: "/in/talk.mp3", Duration: 8 * time.Second}
	chunks, err := engine.Split(context.Background(), clip, t.TempDir())
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected two chunks, got %d", len(chunks))
	}
	if chunks[1].SourceOffset != 4500*time.Millisecond || chunks[1].Strategy != StrategySilence {
		t.Fatalf("unexpected second chunk %+v", chunks[1])
	}
	if exporter.calls[0].length != 3500*time.Millisecond || filepath.Ext(exporter.calls[0].dest) != ".wav" {
		t.Fatalf("unexpected first export %+v", exporter.calls[0])
	}
	if chunks[1].End() != 8*time.Second {
		t.Fatalf("unexpected end %s", chunks[1].End())
	}
}

func TestSplitPropagatesFailures(t *testing.T) {
	clip := audio.Clip{Path: "/in/long.mp3", Duration: 25 * time.Minute}

	decodeErr := errors.New("invalid data found when processing input")
	engine := NewEngine(DefaultConfig(), &fakeDecoder{err: decodeErr}, &fakeExporter{}, nil)
	if _, err := engine.Split(context.Background(), clip, t.TempDir()); !errors.Is(err, decodeErr) {
		t.Fatalf("expected decode error, got %v", err)
	}

	decoder := &fakeDecoder{profile: profileOf(level{int(clip.Duration / time.Millisecond), loud})}
	engine = NewEngine(DefaultConfig(), decoder, &fakeExporter{failAt: 2}, nil)
	_, err := engine.Split(context.Background(), clip, t.TempDir())
	var exportErr *ExportError
	if !errors.As(err, &exportErr) {
		t.Fatalf("expected ExportError, got %T %v", err, err)
	}
	if exportErr.Chunk != 2 || filepath.Base(exportErr.Path) != "long_002.mp3" {
		t.Fatalf("unexpected export error %+v", exportErr)
	}
}

func TestSplitFixedWindowsFollowDecodedLength(t *testing.T) {
	// Probed as 25 minutes but only 21 minutes decode.
	decoder := &fakeDecoder{profile: profileOf(level{int(21 * time.Minute / time.Millisecond), loud})}
	exporter := &fakeExporter{}
	engine := NewEngine(DefaultConfig(), decoder, exporter, logging.NewNop())

	clip := audio.Clip{Path: "/in/vbr.mp3", Duration: 25 * time.Minute}
	chunks, err := engine.Split(context.Background(), clip, t.TempDir())
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected three chunks, got %d", len(chunks))
	}
	if got := exporter.calls[2].length; got != time.Minute {
		t.Fatalf("expected last window to stop at the decoded end, got %s", got)
	}
}

func TestChunkFileName(t *testing.T) {
	if got := ChunkFileName("episode", 7, "mp3"); got != "episode_007.mp3" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := ChunkFileName("episode", 1234, "wav"); got != "episode_1234.wav" {
		t.Fatalf("unexpected name %q", got)
	}
}
