package work

import (
	"context"
	"errors"
	"time"
)

// WorkTimeout is the maximum duration a work item can run before being cancelled.
const WorkTimeout = 10 * time.Minute

// DefaultRetryDelay is how long a failed item waits before it is enqueued again.
const DefaultRetryDelay = 30 * time.Second

var (
	// ErrUnknownWorkType is returned for IDs that were never registered.
	ErrUnknownWorkType = errors.New("unknown work type")
	// ErrProcessorBusy is returned by ExecuteNow while another item is executing.
	ErrProcessorBusy = errors.New("work processor busy")
)

// Priority defines the execution priority of work types.
type Priority int

const (
	// PriorityLow is for non-urgent work (maintenance).
	PriorityLow Priority = iota
	// PriorityMedium is for regular background work (price refresh).
	PriorityMedium
	// PriorityHigh is for the recommendation cycle.
	PriorityHigh
)

// String returns a human-readable name for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// WorkType defines a type of work that can be executed.
type WorkType struct {
	// ID is the unique identifier for this work type (e.g., "cycle:run").
	ID string

	// Priority determines execution order when several types are pending.
	Priority Priority

	// MaxRetries is how many times a failed run is re-enqueued. Zero disables retries.
	MaxRetries int

	// Execute performs the work.
	Execute func(ctx context.Context) error
}

// WorkItem represents a pending or executing unit of work.
type WorkItem struct {
	TypeID     string
	Retries    int
	EnqueuedAt time.Time
}

// NewWorkItem creates a new work item from a work type.
func NewWorkItem(workType *WorkType) *WorkItem {
	return &WorkItem{
		TypeID:     workType.ID,
		EnqueuedAt: time.Now(),
	}
}
