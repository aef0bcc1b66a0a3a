// Package queue implements a queue whose items are processed sequentially or
// by a bounded number of concurrent workers, while the progress of the
// processing can be observed from the outside.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Decision is the outcome a processFunc reports for a processed item.
type Decision int

const (
	// DecisionPassed is returned by a processFunc when an item passed.
	DecisionPassed Decision = iota

	// DecisionFailed is returned by a processFunc when an item failed.
	DecisionFailed

	// DecisionSkipped is returned by a processFunc when an item was skipped.
	DecisionSkipped
)

// Queue is a generic queue that can hold any comparable type of items. Items
// are never requeued: every item is processed exactly once.
type Queue[T comparable] struct {
	sync.RWMutex
	hasStarted  bool
	hasFinished bool
	startTime   time.Time
	finishTime  time.Time
	head        int
	items       []T
	passed      []T
	failed      []T
	skipped     []T
	inProgress  map[T]struct{}
}

// NewQueue returns a pointer to a new [Queue] holding the given items.
func NewQueue[T comparable](items ...T) *Queue[T] {
	q := &Queue[T]{
		inProgress: make(map[T]struct{}),
	}
	q.Enqueue(items...)

	return q
}

// HasRemainingItems returns whether a queue has remaining items to process.
func (q *Queue[T]) HasRemainingItems() bool {
	q.RLock()
	defer q.RUnlock()

	return q.head < len(q.items)
}

// Enqueue adds items to the queue.
func (q *Queue[T]) Enqueue(items ...T) {
	q.Lock()
	defer q.Unlock()

	if q.hasFinished && len(items) > 0 {
		q.finishTime = time.Time{}
		q.hasFinished = false
	}

	q.items = append(q.items, items...)
}

// Dequeue returns an item from the queue and advances the queue head.
func (q *Queue[T]) Dequeue() (T, bool) { //nolint:ireturn
	q.Lock()
	defer q.Unlock()

	if q.head >= len(q.items) {
		var zeroVal T

		return zeroVal, false
	}

	if !q.hasStarted {
		q.startTime = time.Now()
		q.hasStarted = true
	}

	item := q.items[q.head]
	q.head++
	q.inProgress[item] = struct{}{}

	return item, true
}

// SetDone records the [Decision] for an in-progress item. The queue counts
// as finished once the last item is done.
func (q *Queue[T]) SetDone(item T, decision Decision) {
	q.Lock()
	defer q.Unlock()

	delete(q.inProgress, item)

	switch decision {
	case DecisionPassed:
		q.passed = append(q.passed, item)
	case DecisionSkipped:
		q.skipped = append(q.skipped, item)
	default:
		q.failed = append(q.failed, item)
	}

	if q.head >= len(q.items) && len(q.inProgress) == 0 && !q.hasFinished {
		q.finishTime = time.Now()
		q.hasFinished = true
	}
}

// Failed returns a copy of the internal slice holding all failed items.
func (q *Queue[T]) Failed() []T {
	q.RLock()
	defer q.RUnlock()

	result := make([]T, len(q.failed))
	copy(result, q.failed)

	return result
}

// Progress returns the [Progress] for the [Queue].
func (q *Queue[T]) Progress() Progress {
	q.RLock()
	defer q.RUnlock()

	totalItems := len(q.items)
	processedItems := min(len(q.passed)+len(q.failed)+len(q.skipped), totalItems)

	var progressPct float64
	if totalItems > 0 {
		progressPct = float64(processedItems) / float64(totalItems) * 100 //nolint:mnd
		progressPct = max(float64(0), min(progressPct, float64(100)))     //nolint:mnd
	}

	var eta time.Time
	var timeLeft time.Duration
	var itemsPerSec float64

	if q.hasStarted && processedItems > 0 {
		end := time.Now()
		if q.hasFinished {
			end = q.finishTime
		}

		elapsed := end.Sub(q.startTime)
		if elapsed > 0 {
			itemsPerSec = float64(processedItems) / elapsed.Seconds()
		}

		if itemsPerSec > 0 && processedItems < totalItems {
			remainingSeconds := float64(totalItems-processedItems) / itemsPerSec
			timeLeft = time.Duration(remainingSeconds * float64(time.Second))
			eta = time.Now().Add(timeLeft)
		}
	}

	return Progress{
		HasStarted:      q.hasStarted,
		HasFinished:     q.hasFinished,
		StartTime:       q.startTime,
		FinishTime:      q.finishTime,
		ProgressPct:     progressPct,
		TotalItems:      totalItems,
		ProcessedItems:  processedItems,
		InProgressItems: len(q.inProgress),
		PassedItems:     len(q.passed),
		FailedItems:     len(q.failed),
		SkippedItems:    len(q.skipped),
		ETA:             eta,
		TimeLeft:        timeLeft,
		ItemsPerSec:     itemsPerSec,
	}
}

// DequeueAndProcess sequentially dequeues and processes items using the given
// processFunc. An error is only returned in case of a context cancellation;
// a failing item never stops the processing of the remaining items.
func (q *Queue[T]) DequeueAndProcess(ctx context.Context, processFunc func(T) Decision) error {
	for {
		if ctx.Err() != nil {
			break
		}

		item, ok := q.Dequeue()
		if !ok {
			break
		}

		q.SetDone(item, processFunc(item))
	}

	if ctx.Err() != nil {
		return fmt.Errorf("(queue-proc) %w", ctx.Err())
	}

	return nil
}

// DequeueAndProcessConc concurrently dequeues and processes items using the
// given processFunc, with at most maxWorkers items in flight. An error is only
// returned in case of a context cancellation.
//
// It is the responsibility of the processFunc to ensure thread-safety for
// anything happening inside the processFunc, with the [Queue] only
// guaranteeing thread-safety for itself.
func (q *Queue[T]) DequeueAndProcessConc(ctx context.Context, maxWorkers int, processFunc func(T) Decision) error {
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, max(maxWorkers, 1))

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			wg.Wait()

			return fmt.Errorf("(queue-concproc) %w", ctx.Err())
		case semaphore <- struct{}{}:
		}

		item, ok := q.Dequeue()
		if !ok {
			<-semaphore

			break
		}

		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			defer func() { <-semaphore }()

			q.SetDone(item, processFunc(item))
		}(item)
	}

	wg.Wait()

	if ctx.Err() != nil {
		return fmt.Errorf("(queue-concproc) %w", ctx.Err())
	}

	return nil
}
