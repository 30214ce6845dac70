package queue

import (
	"fmt"
	"time"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReserving Status = "reserving"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ActiveStatuses are the states a job passes through before reaching a
// terminal state. At most one active job may exist per drive.
var ActiveStatuses = []Status{StatusPending, StatusReserving, StatusRunning}

// IsTerminal reports whether the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus validates a status string from the CLI or IPC layer.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusReserving, StatusRunning, StatusCompleted, StatusFailed:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("unknown job status %q", raw)
	}
}

// Job is one queued rip request: a set of title indexes on the disc that was
// loaded in a drive when the request was made.
type Job struct {
	ID           int64
	DriveID      int
	Device       string
	DiscLabel    string
	TitleIndexes []int
	OutputDir    string
	Status       Status

	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	ProgressTitle   int

	ErrorMessage string
	OutputFiles  []string
	RequestID    string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Stats summarizes queue contents by status.
type Stats struct {
	Pending   int
	Reserving int
	Running   int
	Completed int
	Failed    int
}

// Total returns the number of jobs across all states.
func (s Stats) Total() int {
	return s.Pending + s.Reserving + s.Running + s.Completed + s.Failed
}
