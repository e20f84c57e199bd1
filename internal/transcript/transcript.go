package transcript

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidTranscript marks recognizer output that fails boundary checks.
var ErrInvalidTranscript = errors.New("invalid transcript")

// Segment is a timed piece of recognized text.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the recognized content of one chunk or of a whole run.
type Transcript struct {
	Language string    `json:"language"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Validate checks that every segment has finite, non-negative times with
// start <= end and that starts strictly increase. Failures wrap
// ErrInvalidTranscript.
func (t Transcript) Validate() error {
	for i, seg := range t.Segments {
		if i > 0 && finite(seg.Start) && seg.Start <= t.Segments[i-1].Start {
			return fmt.Errorf("%w: segment %d starts at %v, not after segment %d at %v",
				ErrInvalidTranscript, i, seg.Start, i-1, t.Segments[i-1].Start)
		}
		switch {
		case !finite(seg.Start) || !finite(seg.End):
			return fmt.Errorf("%w: segment %d has non-finite time [%v, %v]", ErrInvalidTranscript, i, seg.Start, seg.End)
		case seg.Start < 0 || seg.End < 0:
			return fmt.Errorf("%w: segment %d has negative time [%v, %v]", ErrInvalidTranscript, i, seg.Start, seg.End)
		case seg.Start > seg.End:
			return fmt.Errorf("%w: segment %d starts after it ends [%v, %v]", ErrInvalidTranscript, i, seg.Start, seg.End)
		}
	}
	return nil
}

// LastEnd returns the end of the final segment, or 0 without segments.
func (t Transcript) LastEnd() float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}

// Clone returns a copy that shares no segment storage with t.
func (t Transcript) Clone() Transcript {
	out := t
	out.Segments = append([]Segment(nil), t.Segments...)
	return out
}

// JoinText space-joins segment texts in order.
func JoinText(segments []Segment) string {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = seg.Text
	}
	return strings.Join(parts, " ")
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
