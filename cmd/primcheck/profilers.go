package main

import (
	"context"
	"log/slog"
	"os"
	"runtime/pprof"
)

// CPUProfiler writes a cpu profile of the whole run, if a path is given.
//
//nolint:containedctx
type CPUProfiler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	doneChan chan struct{}
	started  chan struct{}
}

// NewCPUProfiler returns a pointer to a new, started [CPUProfiler].
func NewCPUProfiler(ctx context.Context, path *string) *CPUProfiler {
	cprof := &CPUProfiler{
		doneChan: make(chan struct{}),
		started:  make(chan struct{}),
	}
	cprof.ctx, cprof.cancel = context.WithCancel(ctx)

	go cprof.profile(path)
	<-cprof.started

	return cprof
}

func (cprof *CPUProfiler) profile(path *string) {
	defer close(cprof.doneChan)

	if path == nil || *path == "" {
		close(cprof.started)

		return
	}

	f, err := os.Create(*path)
	if err != nil {
		slog.Error("Could not create cpu profile", "path", *path, "err", err)
		close(cprof.started)

		return
	}
	defer f.Close()

	err = pprof.StartCPUProfile(f)
	close(cprof.started)

	if err != nil {
		slog.Error("Could not start cpu profile", "err", err)

		return
	}
	defer pprof.StopCPUProfile()

	<-cprof.ctx.Done()
}

// Stop stops the profiling and waits for the profile to be written.
func (cprof *CPUProfiler) Stop() {
	cprof.cancel()
	<-cprof.doneChan
}

// AllocProfiler writes an allocation profile once stopped, if a path is given.
//
//nolint:containedctx
type AllocProfiler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	doneChan chan struct{}
}

// NewAllocProfiler returns a pointer to a new [AllocProfiler].
func NewAllocProfiler(ctx context.Context, path *string) *AllocProfiler {
	aprof := &AllocProfiler{doneChan: make(chan struct{})}
	aprof.ctx, aprof.cancel = context.WithCancel(ctx)

	go aprof.profile(path)

	return aprof
}

func (aprof *AllocProfiler) profile(path *string) {
	defer close(aprof.doneChan)

	if path == nil || *path == "" {
		return
	}

	<-aprof.ctx.Done()

	f, err := os.Create(*path)
	if err != nil {
		slog.Error("Could not create allocs profile", "path", *path, "err", err)

		return
	}
	defer f.Close()

	if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
		slog.Error("Could not write allocs profile", "err", err)
	}
}

// Stop writes the allocation profile and waits for it to be written.
func (aprof *AllocProfiler) Stop() {
	aprof.cancel()
	<-aprof.doneChan
}
