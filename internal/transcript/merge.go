package transcript

import (
	"fmt"
	"strings"
	"time"
)

// OffsetMode selects how chunk-relative times are shifted.
type OffsetMode string

const (
	// OffsetLastSegmentEnd advances a running offset by each successful
	// chunk's last segment end.
	OffsetLastSegmentEnd OffsetMode = "last_segment_end"
	// OffsetSourceTimeline shifts each chunk by where it starts in the source.
	OffsetSourceTimeline OffsetMode = "source_timeline"
)

// ParseOffsetMode accepts the configuration spelling of a mode.
func ParseOffsetMode(value string) (OffsetMode, error) {
	switch mode := OffsetMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case "", OffsetLastSegmentEnd:
		return OffsetLastSegmentEnd, nil
	case OffsetSourceTimeline:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown offset mode %q", value)
	}
}

// Result is the merger's view of one chunk outcome, in chunk order.
type Result struct {
	Offset      time.Duration
	Transcript  Transcript
	OK          bool
	PassThrough bool
}

// MergeOptions configures Merge.
type MergeOptions struct {
	Mode     OffsetMode
	Language string
}

// Merge realigns successful chunk transcripts onto one timeline. Failed
// results contribute nothing. A lone pass-through success is returned as is.
// The merged language is opts.Language, or the first detected language when
// no hint was given.
func Merge(results []Result, opts MergeOptions) Transcript {
	successes := make([]Result, 0, len(results))
	for _, r := range results {
		if r.OK {
			successes = append(successes, r)
		}
	}
	if len(successes) == 1 && successes[0].PassThrough && len(results) == 1 {
		return successes[0].Transcript.Clone()
	}

	merged := Transcript{Language: opts.Language, Segments: []Segment{}}
	running := 0.0
	for _, r := range successes {
		offset := running
		if opts.Mode == OffsetSourceTimeline {
			offset = r.Offset.Seconds()
		}
		for _, seg := range r.Transcript.Segments {
			merged.Segments = append(merged.Segments, Segment{
				Start: seg.Start + offset,
				End:   seg.End + offset,
				Text:  seg.Text,
			})
		}
		running += r.Transcript.LastEnd()
	}
	if merged.Language == "" {
		for _, r := range successes {
			if r.Transcript.Language != "" {
				merged.Language = r.Transcript.Language
				break
			}
		}
	}
	merged.Text = JoinText(merged.Segments)
	return merged
}
