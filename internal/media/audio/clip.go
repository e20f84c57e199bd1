package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"podscribe/internal/media/ffprobe"
)

// ErrUnreadable marks inputs that cannot be probed or contain no usable audio.
var ErrUnreadable = errors.New("unreadable audio")

// Clip is an immutable reference to an audio file.
type Clip struct {
	Path        string
	Format      string
	Duration    time.Duration
	SampleRate  int
	Channels    int
	StreamIndex int
}

// Base returns the file name without directory or extension.
func (c Clip) Base() string {
	name := filepath.Base(c.Path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Ext returns the lowercase extension without the leading dot.
func (c Clip) Ext() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(c.Path)), ".")
}

// Inspector returns ffprobe metadata for a path.
type Inspector func(ctx context.Context, path string) (ffprobe.Result, error)

// FFprobeInspector inspects files with the given ffprobe binary.
func FFprobeInspector(binary string) Inspector {
	return func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Inspect(ctx, binary, path)
	}
}

// Open probes path and returns a Clip describing its primary audio stream.
// Failures wrap ErrUnreadable.
func Open(ctx context.Context, inspect Inspector, path string, languageHint string) (Clip, error) {
	if strings.TrimSpace(path) == "" {
		return Clip{}, fmt.Errorf("%w: empty path", ErrUnreadable)
	}
	probe, err := inspect(ctx, path)
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %s: %w", ErrUnreadable, path, err)
	}
	stream, ok := Select(probe.Streams, languageHint)
	if !ok {
		return Clip{}, fmt.Errorf("%w: %s: no audio stream", ErrUnreadable, path)
	}
	seconds := probe.DurationSeconds()
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return Clip{}, fmt.Errorf("%w: %s: unknown duration", ErrUnreadable, path)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		format, _, _ = strings.Cut(probe.Format.FormatName, ",")
	}
	return Clip{
		Path:        path,
		Format:      format,
		Duration:    secondsToDuration(seconds),
		SampleRate:  stream.SampleRateHz(),
		Channels:    stream.Channels,
		StreamIndex: stream.Index,
	}, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * float64(time.Second)))
}
