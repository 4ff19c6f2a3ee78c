package work

import (
	"sync"
	"time"
)

// Completion is the run history of one work type.
type Completion struct {
	LastStarted   time.Time     `json:"last_started,omitempty"`
	LastCompleted time.Time     `json:"last_completed,omitempty"`
	LastDuration  time.Duration `json:"last_duration"`
	LastError     string        `json:"last_error,omitempty"`
	Runs          int           `json:"runs"`
	Failures      int           `json:"failures"`
}

// CompletionTracker tracks when work types last ran and how they ended.
type CompletionTracker struct {
	completions map[string]*Completion
	mu          sync.RWMutex
}

// NewCompletionTracker creates a new completion tracker.
func NewCompletionTracker() *CompletionTracker {
	return &CompletionTracker{
		completions: make(map[string]*Completion),
	}
}

func (t *CompletionTracker) entry(typeID string) *Completion {
	c, ok := t.completions[typeID]
	if !ok {
		c = &Completion{}
		t.completions[typeID] = c
	}
	return c
}

// MarkStarted records the start of a run.
func (t *CompletionTracker) MarkStarted(typeID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entry(typeID).LastStarted = at
}

// MarkFinished records the end of a run. A nil err counts as a completion.
func (t *CompletionTracker) MarkFinished(typeID string, at time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.entry(typeID)
	c.Runs++
	if !c.LastStarted.IsZero() {
		c.LastDuration = at.Sub(c.LastStarted)
	}
	if err != nil {
		c.Failures++
		c.LastError = err.Error()
		return
	}
	c.LastCompleted = at
	c.LastError = ""
}

// GetCompletion returns the history of a work type and whether it ever ran.
func (t *CompletionTracker) GetCompletion(typeID string) (Completion, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, ok := t.completions[typeID]
	if !ok {
		return Completion{}, false
	}
	return *c, true
}

// Snapshot returns a copy of every tracked history.
func (t *CompletionTracker) Snapshot() map[string]Completion {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Completion, len(t.completions))
	for id, c := range t.completions {
		out[id] = *c
	}
	return out
}
