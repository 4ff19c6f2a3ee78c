package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (r *recordingEnqueuer) Enqueue(typeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, typeID)
	return r.err == nil, r.err
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func TestEnqueueJob(t *testing.T) {
	e := &recordingEnqueuer{}
	job := NewEnqueueJob("cycle:run", e)

	assert.Equal(t, "enqueue:cycle:run", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, []string{"cycle:run"}, e.ids)

	e.err = errors.New("unknown work type")
	assert.Error(t, job.Run())
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())
	e := &recordingEnqueuer{}

	require.NoError(t, s.AddJob("0 0 */2 * * *", NewEnqueueJob("cycle:run", e)))
	require.NoError(t, s.AddJob("", NewEnqueueJob("portfolio:refresh", e)))
	assert.Equal(t, 1, s.JobCount())

	assert.Error(t, s.AddJob("every now and then", NewEnqueueJob("x", e)))
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	e := &recordingEnqueuer{}

	require.NoError(t, s.AddJob("@every 1s", NewEnqueueJob("portfolio:refresh", e)))
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return e.count() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	e := &recordingEnqueuer{}

	require.NoError(t, s.RunNow(NewEnqueueJob("maintenance:backup", e)))
	assert.Equal(t, 1, e.count())
}
