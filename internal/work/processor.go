package work

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Status is a point-in-time view of the processor.
type Status struct {
	Running     string                `json:"running,omitempty"`
	Pending     []string              `json:"pending"`
	Completions map[string]Completion `json:"completions"`
}

// Processor executes work items one at a time.
type Processor struct {
	registry   *Registry
	completion *CompletionTracker
	timeout    time.Duration
	retryDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	trigger chan struct{}
	stopped chan struct{}

	execMu  sync.Mutex // held while an item executes
	mu      sync.Mutex
	pending map[string]*WorkItem
	running string
}

// NewProcessor creates a new work processor.
func NewProcessor(registry *Registry, completion *CompletionTracker) *Processor {
	return NewProcessorWithTimeout(registry, completion, WorkTimeout)
}

// NewProcessorWithTimeout creates a new work processor with a custom timeout.
// This is primarily used for testing.
func NewProcessorWithTimeout(registry *Registry, completion *CompletionTracker, timeout time.Duration) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		registry:   registry,
		completion: completion,
		timeout:    timeout,
		retryDelay: DefaultRetryDelay,
		ctx:        ctx,
		cancel:     cancel,
		trigger:    make(chan struct{}, 1),
		stopped:    make(chan struct{}),
		pending:    make(map[string]*WorkItem),
	}
}

// SetRetryDelay changes the delay before a failed item is enqueued again.
func (p *Processor) SetRetryDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retryDelay = d
}

// Run starts the processor loop. This blocks until Stop() is called.
func (p *Processor) Run() {
	defer close(p.stopped)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.trigger:
			for p.processOne() {
				if p.ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// Stop cancels the executing item and stops the processor.
func (p *Processor) Stop() {
	p.cancel()
	<-p.stopped
}

// Trigger wakes up the processor to check for work.
// This is non-blocking and can be called from any goroutine.
func (p *Processor) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
		// Trigger already pending
	}
}

// Enqueue schedules a work type. It reports false when the type was already pending
// and the request was folded into the existing slot.
func (p *Processor) Enqueue(typeID string) (bool, error) {
	wt := p.registry.Get(typeID)
	if wt == nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownWorkType, typeID)
	}

	queued := p.addPending(NewWorkItem(wt))
	if !queued {
		log.Debug().Str("work", typeID).Msg("work already pending, coalesced")
	}
	p.Trigger()
	return queued, nil
}

func (p *Processor) addPending(item *WorkItem) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.pending[item.TypeID]; exists {
		return false
	}
	p.pending[item.TypeID] = item
	return true
}

// ExecuteNow runs a work type synchronously, bypassing the queue.
// It returns ErrProcessorBusy instead of waiting when another item is executing.
func (p *Processor) ExecuteNow(ctx context.Context, typeID string) error {
	wt := p.registry.Get(typeID)
	if wt == nil {
		return fmt.Errorf("%w: %s", ErrUnknownWorkType, typeID)
	}
	if !p.execMu.TryLock() {
		return ErrProcessorBusy
	}
	defer p.execMu.Unlock()

	return p.execute(ctx, NewWorkItem(wt), wt)
}

// Status returns the running item, pending queue and run history.
func (p *Processor) Status() Status {
	p.mu.Lock()
	running := p.running
	pending := make([]string, 0, len(p.pending))
	for id := range p.pending {
		pending = append(pending, id)
	}
	p.mu.Unlock()

	sort.Strings(pending)
	return Status{
		Running:     running,
		Pending:     pending,
		Completions: p.completion.Snapshot(),
	}
}

// processOne executes the highest-priority pending item. It reports whether an item ran.
func (p *Processor) processOne() bool {
	p.execMu.Lock()
	defer p.execMu.Unlock()

	item := p.popNext()
	if item == nil {
		return false
	}

	wt := p.registry.Get(item.TypeID)
	if wt == nil {
		return true
	}

	err := p.execute(p.ctx, item, wt)
	if err != nil && p.ctx.Err() == nil {
		p.scheduleRetry(item, wt)
	}
	return true
}

func (p *Processor) popNext() *WorkItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	var next *WorkItem
	for _, item := range p.pending {
		if next == nil || p.before(item, next) {
			next = item
		}
	}
	if next != nil {
		delete(p.pending, next.TypeID)
	}
	return next
}

// before orders pending items by priority (highest first), then by enqueue time.
func (p *Processor) before(a, b *WorkItem) bool {
	pa, pb := p.registry.priorityOf(a.TypeID), p.registry.priorityOf(b.TypeID)
	if pa != pb {
		return pa > pb
	}
	return a.EnqueuedAt.Before(b.EnqueuedAt)
}

func (p *Processor) execute(parent context.Context, item *WorkItem, wt *WorkType) error {
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()

	p.mu.Lock()
	p.running = item.TypeID
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = ""
		p.mu.Unlock()
	}()

	p.completion.MarkStarted(item.TypeID, time.Now())
	err := wt.Execute(ctx)
	p.completion.MarkFinished(item.TypeID, time.Now(), err)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Error().Str("work", item.TypeID).Dur("timeout", p.timeout).Msg("work timed out")
		} else {
			log.Error().Err(err).Str("work", item.TypeID).Msg("work failed")
		}
		return err
	}

	log.Debug().Str("work", item.TypeID).Msg("work completed")
	return nil
}

func (p *Processor) scheduleRetry(item *WorkItem, wt *WorkType) {
	if item.Retries >= wt.MaxRetries {
		if wt.MaxRetries > 0 {
			log.Warn().Str("work", item.TypeID).Int("retries", item.Retries).Msg("max retries reached, skipping")
		}
		return
	}

	retry := &WorkItem{TypeID: item.TypeID, Retries: item.Retries + 1, EnqueuedAt: time.Now()}

	p.mu.Lock()
	delay := p.retryDelay
	p.mu.Unlock()

	time.AfterFunc(delay, func() {
		if p.ctx.Err() != nil {
			return
		}
		if p.addPending(retry) {
			log.Info().Str("work", retry.TypeID).Int("attempt", retry.Retries).Msg("retrying work")
		}
		p.Trigger()
	})
}
