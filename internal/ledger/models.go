package ledger

import "time"

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusPartial     Status = "partial"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// Run is one transcription of one source file.
type Run struct {
	ID           string
	SourcePath   string
	Status       Status
	Backend      string
	Language     string
	Strategy     string
	ChunkCount   int
	Succeeded    int
	Failed       int
	OutputPath   string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Elapsed returns the wall time of a finished run, or zero while running.
func (r Run) Elapsed() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Chunk is the recorded outcome of one chunk.
type Chunk struct {
	Index        int
	Path         string
	Offset       time.Duration
	Duration     time.Duration
	OK           bool
	Segments     int
	Elapsed      time.Duration
	ErrorKind    string
	ErrorMessage string
}

// Outcome closes a run.
type Outcome struct {
	Status       Status
	Strategy     string
	ChunkCount   int
	Succeeded    int
	Failed       int
	OutputPath   string
	ErrorMessage string
}
