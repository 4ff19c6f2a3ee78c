package scheduler

import "fmt"

// Enqueuer accepts work type IDs. It is satisfied by *work.Processor.
type Enqueuer interface {
	Enqueue(typeID string) (bool, error)
}

// EnqueueJob hands a work type to the work processor on each tick, so scheduled and
// API-triggered runs share one queue.
type EnqueueJob struct {
	typeID   string
	enqueuer Enqueuer
}

// NewEnqueueJob creates a job that enqueues typeID.
func NewEnqueueJob(typeID string, enqueuer Enqueuer) *EnqueueJob {
	return &EnqueueJob{typeID: typeID, enqueuer: enqueuer}
}

// Name returns the job name
func (j *EnqueueJob) Name() string {
	return "enqueue:" + j.typeID
}

// Run enqueues the work type.
func (j *EnqueueJob) Run() error {
	if _, err := j.enqueuer.Enqueue(j.typeID); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", j.typeID, err)
	}
	return nil
}
