package gspeech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"podscribe/internal/media/audio"
	"podscribe/internal/services"
)

type fakeSpeech struct {
	responses []*speechpb.LongRunningRecognizeResponse
	errs      []error
	requests  []*speechpb.LongRunningRecognizeRequest
	closed    bool
}

func (f *fakeSpeech) Recognize(_ context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.responses[0], nil
}

func (f *fakeSpeech) Close() error { f.closed = true; return nil }

type fakeStore struct {
	uploaded []string
	deleted  []string
	closed   bool
}

func (f *fakeStore) Upload(_ context.Context, bucket, object, localPath string) error {
	f.uploaded = append(f.uploaded, bucket+"/"+object)
	return nil
}

func (f *fakeStore) Delete(_ context.Context, bucket, object string) error {
	f.deleted = append(f.deleted, bucket+"/"+object)
	return nil
}

func (f *fakeStore) Close() error { f.closed = true; return nil }

func secs(v float64) *durationpb.Duration {
	return durationpb.New(time.Duration(v * float64(time.Second)))
}

func wordInfo(text string, start, end float64) *speechpb.WordInfo {
	return &speechpb.WordInfo{Word: text, StartTime: secs(start), EndTime: secs(end)}
}

func testClip(t *testing.T, name string) audio.Clip {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	return audio.Clip{Path: p, SampleRate: 44100, Channels: 2}
}

func TestTranscribeUploadsRecognizesAndCleansUp(t *testing.T) {
	resp := &speechpb.LongRunningRecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{
			Transcript: "hello there general",
			Words: []*speechpb.WordInfo{
				wordInfo("hello", 0.2, 0.6),
				wordInfo("there", 0.7, 1.1),
				wordInfo("general", 10.5, 11.4),
			},
		}}},
	}}
	sp := &fakeSpeech{responses: []*speechpb.LongRunningRecognizeResponse{resp}}
	store := &fakeStore{}
	r := newWithClients(Config{Bucket: "b", ObjectPrefix: "/podscribe/"}, sp, store)

	tr, err := r.Transcribe(context.Background(), testClip(t, "talk_001.mp3"), "en")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if len(store.uploaded) != 1 || !strings.HasPrefix(store.uploaded[0], "b/podscribe/") || !strings.HasSuffix(store.uploaded[0], "/talk_001.mp3") {
		t.Fatalf("unexpected upload %v", store.uploaded)
	}
	if len(store.deleted) != 1 || store.deleted[0] != store.uploaded[0] {
		t.Fatalf("expected uploaded object to be deleted, got %v", store.deleted)
	}
	cfg := sp.requests[0].GetConfig()
	if cfg.GetEncoding() != speechpb.RecognitionConfig_MP3 || cfg.GetLanguageCode() != "en-US" || !cfg.GetEnableWordTimeOffsets() {
		t.Fatalf("unexpected recognition config %+v", cfg)
	}
	if cfg.GetSampleRateHertz() != 44100 || cfg.GetModel() != DefaultModel {
		t.Fatalf("unexpected sample rate/model %+v", cfg)
	}
	if uri := sp.requests[0].GetAudio().GetUri(); uri != "gs://"+store.uploaded[0] {
		t.Fatalf("unexpected audio uri %q", uri)
	}
	if len(tr.Segments) != 2 {
		t.Fatalf("expected words grouped into two segments, got %+v", tr.Segments)
	}
	if tr.Segments[0].Text != "hello there" || tr.Segments[0].Start != 0.2 || tr.Segments[0].End != 1.1 {
		t.Fatalf("unexpected first segment %+v", tr.Segments[0])
	}
	if tr.Segments[1].Text != "general" || tr.Segments[1].Start != 10.5 {
		t.Fatalf("unexpected second segment %+v", tr.Segments[1])
	}
	if tr.Text != "hello there general" || tr.Language != "en" {
		t.Fatalf("unexpected transcript %+v", tr)
	}
}

func TestChineseWordsJoinWithoutSpaces(t *testing.T) {
	resp := &speechpb.LongRunningRecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{
			Transcript: "你好",
			Words:      []*speechpb.WordInfo{wordInfo("你", 0, 0.3), wordInfo("好", 0.3, 0.6)},
		}}},
	}}
	r := newWithClients(Config{Bucket: "b"}, &fakeSpeech{responses: []*speechpb.LongRunningRecognizeResponse{resp}}, &fakeStore{})
	tr, err := r.Transcribe(context.Background(), testClip(t, "a.flac"), "zh")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if len(tr.Segments) != 1 || tr.Segments[0].Text != "你好" {
		t.Fatalf("unexpected segments %+v", tr.Segments)
	}
}

func TestRecognizeRetriesUnavailable(t *testing.T) {
	resp := &speechpb.LongRunningRecognizeResponse{}
	sp := &fakeSpeech{
		responses: []*speechpb.LongRunningRecognizeResponse{resp},
		errs:      []error{status.Error(codes.Unavailable, "try later"), status.Error(codes.ResourceExhausted, "quota")},
	}
	store := &fakeStore{}
	r := newWithClients(Config{Bucket: "b"}, sp, store)
	var slept []time.Duration
	r.sleeper = func(d time.Duration) { slept = append(slept, d) }

	tr, err := r.Transcribe(context.Background(), testClip(t, "a.wav"), "en")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if len(sp.requests) != 3 || len(slept) != 2 || slept[1] != 2*initialBackoff {
		t.Fatalf("unexpected retries: requests=%d slept=%v", len(sp.requests), slept)
	}
	if len(tr.Segments) != 0 {
		t.Fatalf("expected no segments, got %+v", tr.Segments)
	}
}

func TestRecognizeDoesNotRetryPermissionDenied(t *testing.T) {
	sp := &fakeSpeech{errs: []error{status.Error(codes.PermissionDenied, "nope")}}
	store := &fakeStore{}
	r := newWithClients(Config{Bucket: "b"}, sp, store)
	r.sleeper = func(time.Duration) { t.Fatal("should not sleep") }
	_, err := r.Transcribe(context.Background(), testClip(t, "a.wav"), "en")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(store.deleted) != 1 {
		t.Fatal("upload should be cleaned up after failure")
	}
}

func TestUnsupportedFormatFailsBeforeUpload(t *testing.T) {
	store := &fakeStore{}
	r := newWithClients(Config{Bucket: "b"}, &fakeSpeech{}, store)
	_, err := r.Transcribe(context.Background(), testClip(t, "a.m4a"), "en")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.uploaded) != 0 {
		t.Fatal("nothing should be uploaded")
	}
}

func TestLanguageCode(t *testing.T) {
	cases := map[string]string{"": "en-US", "zh": "cmn-Hans-CN", "Chinese": "cmn-Hans-CN", "ja": "ja-JP", "pt-BR": "pt-BR"}
	for in, want := range cases {
		if got := languageCode(in); got != want {
			t.Fatalf("languageCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRequiresBucketAndCloseClosesClients(t *testing.T) {
	if _, err := New(context.Background(), Config{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	sp, store := &fakeSpeech{}, &fakeStore{}
	if err := newWithClients(Config{Bucket: "b"}, sp, store).Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !sp.closed || !store.closed {
		t.Fatal("expected both clients closed")
	}
}
