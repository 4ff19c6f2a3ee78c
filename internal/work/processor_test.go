package work

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startProcessor(t *testing.T, registry *Registry) (*Processor, *CompletionTracker) {
	t.Helper()
	completion := NewCompletionTracker()
	p := NewProcessorWithTimeout(registry, completion, time.Second)
	go p.Run()
	t.Cleanup(p.Stop)
	return p, completion
}

func TestProcessor_EnqueueExecutes(t *testing.T) {
	registry := NewRegistry()
	executed := make(chan struct{}, 1)
	registry.Register(&WorkType{
		ID: "cycle:run",
		Execute: func(ctx context.Context) error {
			executed <- struct{}{}
			return nil
		},
	})

	p, completion := startProcessor(t, registry)

	queued, err := p.Enqueue("cycle:run")
	require.NoError(t, err)
	assert.True(t, queued)

	select {
	case <-executed:
	case <-time.After(time.Second):
		t.Fatal("work did not execute")
	}

	require.Eventually(t, func() bool {
		c, ok := completion.GetCompletion("cycle:run")
		return ok && c.Runs == 1
	}, time.Second, 10*time.Millisecond)
}

func TestProcessor_UnknownWorkType(t *testing.T) {
	p, _ := startProcessor(t, NewRegistry())

	_, err := p.Enqueue("nope")
	assert.ErrorIs(t, err, ErrUnknownWorkType)
	assert.ErrorIs(t, p.ExecuteNow(context.Background(), "nope"), ErrUnknownWorkType)
}

func TestProcessor_CoalescesTriggersWhileRunning(t *testing.T) {
	registry := NewRegistry()
	release := make(chan struct{})
	var runs, concurrent, maxConcurrent int32

	registry.Register(&WorkType{
		ID: "cycle:run",
		Execute: func(ctx context.Context) error {
			n := atomic.AddInt32(&concurrent, 1)
			for {
				m := atomic.LoadInt32(&maxConcurrent)
				if n <= m || atomic.CompareAndSwapInt32(&maxConcurrent, m, n) {
					break
				}
			}
			if atomic.AddInt32(&runs, 1) == 1 {
				<-release
			}
			atomic.AddInt32(&concurrent, -1)
			return nil
		},
	})

	p, _ := startProcessor(t, registry)

	_, err := p.Enqueue("cycle:run")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.Status().Running == "cycle:run" }, time.Second, 5*time.Millisecond)

	// five triggers during the run fold into one pending slot
	queued := 0
	for i := 0; i < 5; i++ {
		ok, err := p.Enqueue("cycle:run")
		require.NoError(t, err)
		if ok {
			queued++
		}
	}
	assert.Equal(t, 1, queued)
	assert.Equal(t, []string{"cycle:run"}, p.Status().Pending)

	close(release)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxConcurrent))
}

func TestProcessor_ExecuteNowRejectsWhileBusy(t *testing.T) {
	registry := NewRegistry()
	release := make(chan struct{})
	registry.Register(&WorkType{
		ID:       "portfolio:refresh",
		Priority: PriorityMedium,
		Execute: func(ctx context.Context) error {
			<-release
			return nil
		},
	})
	registry.Register(&WorkType{
		ID:      "cycle:run",
		Execute: func(ctx context.Context) error { return nil },
	})

	p, _ := startProcessor(t, registry)
	_, err := p.Enqueue("portfolio:refresh")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.Status().Running == "portfolio:refresh" }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, p.ExecuteNow(context.Background(), "cycle:run"), ErrProcessorBusy)

	close(release)
	require.Eventually(t, func() bool { return p.Status().Running == "" }, time.Second, 5*time.Millisecond)
	assert.NoError(t, p.ExecuteNow(context.Background(), "cycle:run"))
}

func TestProcessor_PriorityOrder(t *testing.T) {
	registry := NewRegistry()
	var mu sync.Mutex
	var order []string
	gate := make(chan struct{})

	record := func(id string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil
		}
	}
	registry.Register(&WorkType{ID: "blocker", Priority: PriorityHigh, Execute: func(context.Context) error {
		<-gate
		return nil
	}})
	registry.Register(&WorkType{ID: "maintenance:backup", Priority: PriorityLow, Execute: record("maintenance:backup")})
	registry.Register(&WorkType{ID: "portfolio:refresh", Priority: PriorityMedium, Execute: record("portfolio:refresh")})
	registry.Register(&WorkType{ID: "cycle:run", Priority: PriorityHigh, Execute: record("cycle:run")})

	p, _ := startProcessor(t, registry)
	_, _ = p.Enqueue("blocker")
	require.Eventually(t, func() bool { return p.Status().Running == "blocker" }, time.Second, 5*time.Millisecond)

	_, _ = p.Enqueue("maintenance:backup")
	_, _ = p.Enqueue("portfolio:refresh")
	_, _ = p.Enqueue("cycle:run")
	close(gate)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"cycle:run", "portfolio:refresh", "maintenance:backup"}, order)
}

func TestProcessor_Retries(t *testing.T) {
	registry := NewRegistry()
	var attempts int32
	registry.Register(&WorkType{
		ID:         "maintenance:backup",
		MaxRetries: 2,
		Execute: func(ctx context.Context) error {
			atomic.AddInt32(&attempts, 1)
			return errors.New("upload failed")
		},
	})
	var cycleAttempts int32
	registry.Register(&WorkType{
		ID: "cycle:run",
		Execute: func(ctx context.Context) error {
			atomic.AddInt32(&cycleAttempts, 1)
			return errors.New("cycle failed")
		},
	})

	p, completion := startProcessor(t, registry)
	p.SetRetryDelay(10 * time.Millisecond)

	_, _ = p.Enqueue("maintenance:backup")
	_, _ = p.Enqueue("cycle:run")

	require.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, int32(1), atomic.LoadInt32(&cycleAttempts))

	c, ok := completion.GetCompletion("maintenance:backup")
	require.True(t, ok)
	assert.Equal(t, 3, c.Failures)
	assert.Equal(t, "upload failed", c.LastError)
}

func TestProcessor_Timeout(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&WorkType{
		ID: "slow",
		Execute: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	completion := NewCompletionTracker()
	p := NewProcessorWithTimeout(registry, completion, 20*time.Millisecond)

	err := p.ExecuteNow(context.Background(), "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&WorkType{ID: "b", Priority: PriorityHigh})
	r.Register(&WorkType{ID: "a"})

	assert.Equal(t, 2, r.Count())
	assert.True(t, r.Has("a"))
	assert.Nil(t, r.Get("c"))
	assert.Equal(t, []string{"a", "b"}, r.IDs())
	assert.Equal(t, PriorityHigh, r.priorityOf("b"))
	assert.Equal(t, "High", PriorityHigh.String())
}

func TestCompletionTracker(t *testing.T) {
	ct := NewCompletionTracker()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	_, ok := ct.GetCompletion("cycle:run")
	assert.False(t, ok)

	ct.MarkStarted("cycle:run", start)
	ct.MarkFinished("cycle:run", start.Add(2*time.Second), nil)
	ct.MarkStarted("cycle:run", start.Add(time.Minute))
	ct.MarkFinished("cycle:run", start.Add(time.Minute+time.Second), errors.New("boom"))

	c, ok := ct.GetCompletion("cycle:run")
	require.True(t, ok)
	assert.Equal(t, 2, c.Runs)
	assert.Equal(t, 1, c.Failures)
	assert.Equal(t, "boom", c.LastError)
	assert.Equal(t, start.Add(2*time.Second), c.LastCompleted)
	assert.Equal(t, time.Second, c.LastDuration)
	assert.Len(t, ct.Snapshot(), 1)
}
