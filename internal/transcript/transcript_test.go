package transcript

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	valid := Transcript{Segments: []Segment{{Start: 0, End: 0}, {Start: 1.5, End: 3}}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid transcript, got %v", err)
	}

	cases := map[string]Segment{
		"nan start":      {Start: math.NaN(), End: 1},
		"infinite end":   {Start: 0, End: math.Inf(1)},
		"negative start": {Start: -0.5, End: 1},
		"reversed":       {Start: 4, End: 3.9},
		"repeated start": {Start: 0, End: 2},
	}
	for name, seg := range cases {
		t.Run(name, func(t *testing.T) {
			tr := Transcript{Segments: []Segment{{Start: 0, End: 1}, seg}}
			if err := tr.Validate(); !errors.Is(err, ErrInvalidTranscript) {
				t.Fatalf("expected ErrInvalidTranscript, got %v", err)
			}
		})
	}
}

func TestValidateRejectsUnorderedSegments(t *testing.T) {
	tr := Transcript{Segments: []Segment{{Start: 5, End: 6, Text: "later"}, {Start: 1, End: 2, Text: "earlier"}}}
	err := tr.Validate()
	if !errors.Is(err, ErrInvalidTranscript) {
		t.Fatalf("expected ErrInvalidTranscript, got %v", err)
	}
}

func TestJoinTextAndLastEnd(t *testing.T) {
	tr := Transcript{Segments: []Segment{{End: 2, Text: "你好"}, {End: 5.5, Text: "世界"}}}
	if got := JoinText(tr.Segments); got != "你好 世界" {
		t.Fatalf("unexpected joined text %q", got)
	}
	if tr.LastEnd() != 5.5 {
		t.Fatalf("unexpected last end %v", tr.LastEnd())
	}
	if (Transcript{}).LastEnd() != 0 {
		t.Fatal("expected zero last end without segments")
	}
}

func chunk(segments ...Segment) Transcript {
	return Transcript{Language: "zh", Text: JoinText(segments), Segments: segments}
}

func TestMergeOffsetsByLastSegmentEnd(t *testing.T) {
	results := []Result{
		{Offset: 0, OK: true, Transcript: chunk(Segment{0, 4, "a"}, Segment{4, 9.5, "b"})},
		{Offset: 10 * time.Minute, OK: true, Transcript: chunk(Segment{0.5, 3, "c"})},
		{Offset: 20 * time.Minute, OK: true, Transcript: chunk(Segment{1, 2, "d"}, Segment{2, 7, "e"})},
	}
	merged := Merge(results, MergeOptions{Mode: OffsetLastSegmentEnd, Language: "zh"})

	want := []Segment{{0, 4, "a"}, {4, 9.5, "b"}, {10, 12.5, "c"}, {13.5, 14.5, "d"}, {14.5, 19.5, "e"}}
	assertSegments(t, merged.Segments, want)
	if merged.Text != "a b c d e" || merged.Language != "zh" {
		t.Fatalf("unexpected merged header %q %q", merged.Language, merged.Text)
	}
	for i := 1; i < len(merged.Segments); i++ {
		prev, cur := merged.Segments[i-1], merged.Segments[i]
		if cur.Start < prev.Start || cur.End < prev.End {
			t.Fatalf("segments not monotonic at %d: %+v then %+v", i, prev, cur)
		}
	}
	if results[1].Transcript.Segments[0].Start != 0.5 {
		t.Fatal("expected input transcripts to be left untouched")
	}
}

func TestMergeSkipsFailedChunks(t *testing.T) {
	results := []Result{
		{OK: true, Transcript: chunk(Segment{0, 3, "one"}, Segment{3, 8.25, "two"})},
		{OK: false},
		{OK: true, Transcript: chunk(Segment{0, 2, "three"})},
	}
	merged := Merge(results, MergeOptions{Language: "zh"})
	want := []Segment{{0, 3, "one"}, {3, 8.25, "two"}, {8.25, 10.25, "three"}}
	assertSegments(t, merged.Segments, want)
	if merged.Text != "one two three" {
		t.Fatalf("unexpected text %q", merged.Text)
	}
}

func TestMergeChunkWithoutSegmentsAddsNoOffset(t *testing.T) {
	results := []Result{
		{OK: true, Transcript: chunk(Segment{0, 6, "x"})},
		{OK: true, Transcript: chunk()},
		{OK: true, Transcript: chunk(Segment{1, 2, "y"})},
	}
	merged := Merge(results, MergeOptions{})
	assertSegments(t, merged.Segments, []Segment{{0, 6, "x"}, {7, 8, "y"}})
	if merged.Language != "zh" {
		t.Fatalf("expected detected language fallback, got %q", merged.Language)
	}
}

func TestMergeSourceTimeline(t *testing.T) {
	results := []Result{
		{Offset: 0, OK: true, Transcript: chunk(Segment{0, 500, "a"})},
		{Offset: 600 * time.Second, OK: false},
		{Offset: 1200 * time.Second, OK: true, Transcript: chunk(Segment{2, 4, "c"})},
	}
	merged := Merge(results, MergeOptions{Mode: OffsetSourceTimeline})
	assertSegments(t, merged.Segments, []Segment{{0, 500, "a"}, {1202, 1204, "c"}})
}

func TestMergeAllFailedYieldsEmptyTranscript(t *testing.T) {
	merged := Merge([]Result{{OK: false}, {OK: false}}, MergeOptions{Language: "zh"})
	if len(merged.Segments) != 0 || merged.Text != "" {
		t.Fatalf("expected empty transcript, got %+v", merged)
	}
	if merged.Language != "zh" {
		t.Fatalf("expected language hint to be kept, got %q", merged.Language)
	}
}

func TestMergePassThroughUnchanged(t *testing.T) {
	original := Transcript{Language: "en", Text: " raw text from recognizer", Segments: []Segment{{0.2, 1.4, " raw"}}}
	merged := Merge([]Result{{OK: true, PassThrough: true, Transcript: original}}, MergeOptions{Language: "zh"})
	if merged.Text != original.Text || merged.Language != "en" {
		t.Fatalf("expected pass-through transcript unchanged, got %+v", merged)
	}
	assertSegments(t, merged.Segments, original.Segments)
}

func TestParseOffsetMode(t *testing.T) {
	if mode, err := ParseOffsetMode(""); err != nil || mode != OffsetLastSegmentEnd {
		t.Fatalf("expected default mode, got %q %v", mode, err)
	}
	if mode, err := ParseOffsetMode(" Source_Timeline "); err != nil || mode != OffsetSourceTimeline {
		t.Fatalf("expected source timeline, got %q %v", mode, err)
	}
	if _, err := ParseOffsetMode("duration"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func assertSegments(t *testing.T, got, want []Segment) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d segments, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if math.Abs(got[i].Start-want[i].Start) > 1e-9 || math.Abs(got[i].End-want[i].End) > 1e-9 || got[i].Text != want[i].Text {
			t.Fatalf("segment %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}
