package gspeech

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"podscribe/internal/language"
	"podscribe/internal/media/audio"
	"podscribe/internal/services"
	"podscribe/internal/textutil"
	"podscribe/internal/transcript"
)

const (
	DefaultModel   = "default"
	segmentWindow  = 10.0
	maxRetries     = 4
	initialBackoff = 750 * time.Millisecond
	maxBackoff     = 10 * time.Second
)

// Config locates the bucket and credentials.
type Config struct {
	Bucket          string
	ObjectPrefix    string
	CredentialsFile string
	Model           string
}

type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)
	Close() error
}

type objectStore interface {
	Upload(ctx context.Context, bucket, object, localPath string) error
	Delete(ctx context.Context, bucket, object string) error
	Close() error
}

// Recognizer implements chunk transcription on Google Cloud.
type Recognizer struct {
	cfg     Config
	speech  recognizer
	store   objectStore
	sleeper func(time.Duration)
}

// New dials Speech-to-Text and Cloud Storage.
func New(ctx context.Context, cfg Config) (*Recognizer, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "gspeech", "init", "bucket required", nil)
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	sc, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gspeech: speech client: %w", err)
	}
	st, err := storage.NewClient(ctx, append(opts, option.WithScopes(storage.ScopeReadWrite))...)
	if err != nil {
		sc.Close()
		return nil, fmt.Errorf("gspeech: storage client: %w", err)
	}
	return newWithClients(cfg, speechClient{sc}, gcsStore{st}), nil
}

func newWithClients(cfg Config, sp recognizer, store objectStore) *Recognizer {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	cfg.ObjectPrefix = strings.Trim(cfg.ObjectPrefix, "/")
	return &Recognizer{cfg: cfg, speech: sp, store: store, sleeper: time.Sleep}
}

// Name identifies the backend in logs and the run ledger.
func (r *Recognizer) Name() string { return "google_speech" }

// Close closes both API clients.
func (r *Recognizer) Close() error {
	speechErr := r.speech.Close()
	storeErr := r.store.Close()
	if speechErr != nil {
		return speechErr
	}
	return storeErr
}

// Transcribe uploads clip, recognizes it, and removes the upload.
func (r *Recognizer) Transcribe(ctx context.Context, clip audio.Clip, lang string) (transcript.Transcript, error) {
	encoding, err := Encoding(clip.Path)
	if err != nil {
		return transcript.Transcript{}, err
	}
	if _, err := os.Stat(clip.Path); err != nil {
		return transcript.Transcript{}, fmt.Errorf("gspeech: %w", err)
	}

	object := path.Join(r.cfg.ObjectPrefix, uuid.NewString(), textutil.SanitizeToken(clip.Base())+filepath.Ext(clip.Path))
	if err := r.store.Upload(ctx, r.cfg.Bucket, object, clip.Path); err != nil {
		return transcript.Transcript{}, services.Wrap(services.ErrTransient, "gspeech", "upload", object, err)
	}
	defer func() {
		// Cleanup runs even when the caller's context is already cancelled.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		_ = r.store.Delete(cleanupCtx, r.cfg.Bucket, object)
	}()

	code := languageCode(lang)
	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            int32(max(clip.SampleRate, 0)),
			AudioChannelCount:          int32(max(clip.Channels, 0)),
			LanguageCode:               code,
			Model:                      r.cfg.Model,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: "gs://" + r.cfg.Bucket + "/" + object},
		},
	}

	resp, err := r.recognizeWithRetry(ctx, req)
	if err != nil {
		return transcript.Transcript{}, classify(err)
	}
	return toTranscript(resp, lang), nil
}

func (r *Recognizer) recognizeWithRetry(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := initialBackoff
	var last error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := r.speech.Recognize(ctx, req)
		if err == nil {
			return resp, nil
		}
		last = err
		if !retryable(err) || attempt == maxRetries {
			break
		}
		r.sleeper(backoff)
		backoff = min(backoff*2, maxBackoff)
	}
	return nil, last
}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

func classify(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return services.Wrap(services.ErrTransient, "gspeech", "recognize", "", err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return services.Wrap(services.ErrConfiguration, "gspeech", "recognize", "credentials rejected", err)
	case codes.InvalidArgument:
		return services.Wrap(services.ErrValidation, "gspeech", "recognize", "", err)
	default:
		return services.Wrap(services.ErrExternalTool, "gspeech", "recognize", "", err)
	}
}

// Encoding maps a chunk extension to the recognizer's audio encoding.
func Encoding(p string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(p), ".")) {
	case "wav":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "flac":
		return speechpb.RecognitionConfig_FLAC, nil
	case "mp3":
		return speechpb.RecognitionConfig_MP3, nil
	case "ogg", "opus":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, services.Wrap(services.ErrValidation, "gspeech", "encoding",
			fmt.Sprintf("unsupported chunk format %q; use mp3, wav, flac, or ogg", filepath.Ext(p)), nil)
	}
}

var regionalCodes = map[string]string{
	"zh":  "cmn-Hans-CN",
	"yue": "yue-Hant-HK",
	"en":  "en-US",
	"ja":  "ja-JP",
	"ko":  "ko-KR",
	"es":  "es-ES",
	"fr":  "fr-FR",
	"de":  "de-DE",
	"ru":  "ru-RU",
}

func languageCode(hint string) string {
	code := language.Normalize(hint)
	if code == "" {
		return "en-US"
	}
	if regional, ok := regionalCodes[code]; ok {
		return regional
	}
	return strings.TrimSpace(hint)
}

type speechClient struct{ c *speech.Client }

func (s speechClient) Recognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	op, err := s.c.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (s speechClient) Close() error { return s.c.Close() }

type gcsStore struct{ c *storage.Client }

func (g gcsStore) Upload(ctx context.Context, bucket, object, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	w := g.c.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g gcsStore) Delete(ctx context.Context, bucket, object string) error {
	return g.c.Bucket(bucket).Object(object).Delete(ctx)
}

func (g gcsStore) Close() error { return g.c.Close() }
