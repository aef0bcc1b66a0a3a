package main

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// memoryMonitorInterval is the interval at which a [memoryObserver] is updated.
	memoryMonitorInterval = 100 * time.Millisecond
)

// memoryObserver tracks peak memory usage over the run.
type memoryObserver struct {
	sync.RWMutex
	maxAlloc uint64
	stopChan chan struct{}
	doneChan chan struct{}
}

// newMemoryObserver returns a pointer to a new, started [memoryObserver],
// which needs to be stopped with [memoryObserver.Stop].
func newMemoryObserver(ctx context.Context) *memoryObserver {
	obs := &memoryObserver{
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go obs.monitor(ctx)

	return obs
}

// MaxAlloc returns the peak recorded memory allocation size.
func (o *memoryObserver) MaxAlloc() uint64 {
	o.RLock()
	defer o.RUnlock()

	return o.maxAlloc
}

// Stop halts the tracking and logs the peak memory allocation at debug level.
func (o *memoryObserver) Stop() {
	close(o.stopChan)
	<-o.doneChan

	slog.Debug("Memory consumption peaked", "maxAlloc", humanize.IBytes(o.MaxAlloc()))
}

func (o *memoryObserver) sample() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	o.Lock()
	o.maxAlloc = max(o.maxAlloc, m.Alloc)
	o.Unlock()
}

func (o *memoryObserver) monitor(ctx context.Context) {
	defer close(o.doneChan)

	ticker := time.NewTicker(memoryMonitorInterval)
	defer ticker.Stop()

	o.sample()

	for {
		select {
		case <-o.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sample()
		}
	}
}
