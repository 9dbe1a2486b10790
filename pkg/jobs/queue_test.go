package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueProcessesTypedPayloads(t *testing.T) {
	var mu sync.Mutex
	var got []string

	q := NewQueue("test", func(_ context.Context, job Job[string]) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, job.Payload)
		return nil
	}, Config{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[string]{ID: "1", Payload: "a"}))
	require.NoError(t, q.Enqueue(Job[string]{ID: "2", Payload: "b"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	q := NewQueue("test", func(_ context.Context, job Job[int]) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if job.Attempt == 0 {
			return errors.New("transient")
		}
		return nil
	}, Config{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[int]{ID: "1", Payload: 7}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestQueueRejectsEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job[string]) error { return nil }, Config{})
	require.Error(t, q.Enqueue(Job[string]{ID: "1"}))
}
