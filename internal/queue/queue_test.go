package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewQueue_Success tests the queue factory function.
func TestNewQueue_Success(t *testing.T) {
	t.Parallel()

	q := NewQueue("a", "b")

	assert.Equal(t, []string{"a", "b"}, q.items)
	assert.NotNil(t, q.inProgress)
	assert.False(t, q.hasStarted)
	assert.False(t, q.hasFinished)
	assert.True(t, q.HasRemainingItems())
}

// TestEnqueueDequeue_Success tests enqueueing and dequeueing in order.
func TestEnqueueDequeue_Success(t *testing.T) {
	t.Parallel()

	q := NewQueue[int]()
	q.Enqueue(1, 2)

	item, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, item)
	assert.True(t, q.hasStarted)

	item, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 2, item)

	_, ok = q.Dequeue()
	assert.False(t, ok)
	assert.False(t, q.HasRemainingItems())
}

// TestSetDone_Success tests that decisions are counted and the queue finishes.
func TestSetDone_Success(t *testing.T) {
	t.Parallel()

	q := NewQueue("pass", "fail", "skip")

	for range 3 {
		_, ok := q.Dequeue()
		require.True(t, ok)
	}

	assert.Equal(t, 3, q.Progress().InProgressItems)

	q.SetDone("pass", DecisionPassed)
	q.SetDone("fail", DecisionFailed)
	assert.False(t, q.Progress().HasFinished)

	q.SetDone("skip", DecisionSkipped)

	p := q.Progress()
	assert.True(t, p.HasFinished)
	assert.Equal(t, 3, p.ProcessedItems)
	assert.Equal(t, 1, p.PassedItems)
	assert.Equal(t, 1, p.FailedItems)
	assert.Equal(t, 1, p.SkippedItems)
	assert.Equal(t, 0, p.InProgressItems)
	assert.InDelta(t, 100.0, p.ProgressPct, 0.001)
	assert.Equal(t, []string{"fail"}, q.Failed())
}

// TestProgress_Success tests the progress of a partially processed queue.
func TestProgress_Success(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, 2, 3, 4)

	p := q.Progress()
	assert.False(t, p.HasStarted)
	assert.Equal(t, 4, p.TotalItems)
	assert.Zero(t, p.ProgressPct)

	item, _ := q.Dequeue()
	time.Sleep(5 * time.Millisecond)
	q.SetDone(item, DecisionPassed)

	p = q.Progress()
	assert.True(t, p.HasStarted)
	assert.False(t, p.HasFinished)
	assert.InDelta(t, 25.0, p.ProgressPct, 0.001)
	assert.Positive(t, p.ItemsPerSec)
	assert.Positive(t, p.TimeLeft)
	assert.True(t, p.ETA.After(time.Now()))
}

// TestEnqueue_Success_ReopensFinished tests that enqueueing reopens a
// finished queue.
func TestEnqueue_Success_ReopensFinished(t *testing.T) {
	t.Parallel()

	q := NewQueue("a")
	item, _ := q.Dequeue()
	q.SetDone(item, DecisionPassed)
	require.True(t, q.Progress().HasFinished)

	q.Enqueue("b")

	p := q.Progress()
	assert.False(t, p.HasFinished)
	assert.True(t, p.FinishTime.IsZero())
}

// TestDequeueAndProcess_Success tests sequential processing of all items.
func TestDequeueAndProcess_Success(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, 2, 3, 4)

	var order []int
	err := q.DequeueAndProcess(t.Context(), func(i int) Decision {
		order = append(order, i)
		if i%2 == 0 {
			return DecisionFailed
		}

		return DecisionPassed
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, order)
	assert.ElementsMatch(t, []int{2, 4}, q.Failed())
	assert.True(t, q.Progress().HasFinished)
}

// TestDequeueAndProcess_Fail_CtxCancel tests that a cancelled context stops
// the processing.
func TestDequeueAndProcess_Fail_CtxCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	q := NewQueue(1, 2, 3)

	err := q.DequeueAndProcess(ctx, func(int) Decision {
		cancel()

		return DecisionPassed
	})
	require.ErrorIs(t, err, context.Canceled)

	assert.True(t, q.HasRemainingItems())
	assert.Equal(t, 1, q.Progress().ProcessedItems)
}

// TestDequeueAndProcessConc_Success tests that concurrent processing
// respects the worker bound.
func TestDequeueAndProcessConc_Success(t *testing.T) {
	t.Parallel()

	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}
	q := NewQueue(items...)

	var running, peak atomic.Int32
	var mu sync.Mutex
	seen := make(map[int]struct{})

	err := q.DequeueAndProcessConc(t.Context(), 3, func(i int) Decision {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)

		mu.Lock()
		seen[i] = struct{}{}
		mu.Unlock()

		return DecisionPassed
	})
	require.NoError(t, err)

	assert.Len(t, seen, 20)
	assert.LessOrEqual(t, peak.Load(), int32(3))

	p := q.Progress()
	assert.True(t, p.HasFinished)
	assert.Equal(t, 20, p.PassedItems)
}

// TestDequeueAndProcessConc_Fail_CtxCancel tests that a cancelled context
// stops the concurrent processing after in-flight items are done.
func TestDequeueAndProcessConc_Fail_CtxCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	q := NewQueue(1, 2, 3)

	err := q.DequeueAndProcessConc(ctx, 2, func(int) Decision {
		return DecisionPassed
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, q.Progress().InProgressItems)
}
