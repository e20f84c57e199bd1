package pipeline

import (
	"fmt"
	"strings"
)

// Stage names used in StageError.
const (
	StageLock       = "lock"
	StageSegment    = "segment"
	StageTranscribe = "transcribe"
	StageRender     = "render"
)

// StageError reports the pipeline stage that aborted a run. Chunk is the
// 1-based chunk ordinal, or 0 when the failure is not tied to a chunk.
type StageError struct {
	Stage  string
	Source string
	Chunk  int
	Err    error
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(e.Stage)
	if e.Source != "" {
		b.WriteString(" ")
		b.WriteString(e.Source)
	}
	if e.Chunk > 0 {
		fmt.Fprintf(&b, " chunk %d", e.Chunk)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StageError) Unwrap() error { return e.Err }
