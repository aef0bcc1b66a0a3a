package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/desertwitch/primcheck/internal/schema"
)

// Scope is a scoped acquisition of scratch paths. Every path acquired through
// a [Scope] is released by [Scope.Close], in reverse order of acquisition.
type Scope struct {
	sync.Mutex
	sandbox  *Sandbox
	acquired []ScratchPath
	released map[ScratchPath]struct{}
	closed   bool
}

// NewScope returns a pointer to a new [Scope] allocating from the [Sandbox].
// It should always be followed by a deferred [Scope.Close].
func (s *Sandbox) NewScope() *Scope {
	return &Scope{sandbox: s}
}

// Sandbox returns the [Sandbox] the [Scope] allocates from.
func (sc *Scope) Sandbox() *Sandbox {
	return sc.sandbox
}

// Acquire reserves a [ScratchPath] and registers it for release. The release
// is registered only once the path has been established.
func (sc *Scope) Acquire(kind schema.Kind, leaf string) (ScratchPath, error) {
	sc.Lock()
	defer sc.Unlock()

	if sc.closed {
		return ScratchPath{}, fmt.Errorf("(scope-acquire) %w", ErrScopeClosed)
	}

	p, err := sc.sandbox.Acquire(kind, leaf)
	if err != nil {
		return ScratchPath{}, err
	}

	sc.acquired = append(sc.acquired, p)

	return p, nil
}

// Release releases a path acquired through the [Scope] before the [Scope]
// is closed. Releasing a path the [Scope] already released is a no-op, while
// a path the [Scope] never acquired is refused with [ErrNotOwned].
func (sc *Scope) Release(p ScratchPath) error {
	sc.Lock()
	defer sc.Unlock()

	idx := -1
	for i, acquired := range sc.acquired {
		if acquired == p {
			idx = i

			break
		}
	}

	if idx < 0 {
		if _, ok := sc.released[p]; ok {
			return nil
		}

		return fmt.Errorf("(scope-release) %w: %s", ErrNotOwned, p.Path())
	}

	sc.acquired = append(sc.acquired[:idx], sc.acquired[idx+1:]...)

	if sc.released == nil {
		sc.released = make(map[ScratchPath]struct{})
	}
	sc.released[p] = struct{}{}

	return sc.sandbox.Release(p)
}

// Acquired returns the scratch paths currently owned by the [Scope].
func (sc *Scope) Acquired() []ScratchPath {
	sc.Lock()
	defer sc.Unlock()

	paths := make([]ScratchPath, len(sc.acquired))
	copy(paths, sc.acquired)

	return paths
}

// Close releases every acquired path, last acquired first. All releases are
// attempted; the failures are returned joined. Calling Close again is a no-op.
func (sc *Scope) Close() error {
	sc.Lock()
	defer sc.Unlock()

	if sc.closed {
		return nil
	}
	sc.closed = true

	var errs []error
	for i := len(sc.acquired) - 1; i >= 0; i-- {
		p := sc.acquired[i]

		if err := sc.sandbox.Release(p); err != nil {
			slog.Warn("Failure releasing scratch path (left behind)",
				"path", p.Path(),
				"kind", p.Kind,
				"err", err,
			)
			errs = append(errs, err)
		}
	}
	sc.acquired = nil

	return errors.Join(errs...)
}
