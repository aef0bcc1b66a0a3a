package runner

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/desertwitch/primcheck/internal/harness"
	"github.com/desertwitch/primcheck/internal/primitives"
	"github.com/desertwitch/primcheck/internal/sandbox"
	"github.com/desertwitch/primcheck/internal/schema"
)

type osProvider interface {
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
}

// Scenario is a single named check of a primitive, parametrized by literal
// inputs. A nil error returned from Run means the checked property holds.
type Scenario struct {
	Name   string
	Kind   schema.Kind
	Inputs []schema.Input
	Run    func(ctx context.Context, env *Env) error
}

// Env is the environment a [Scenario] runs in. All scratch paths must be
// acquired through the Scope, which is closed once the scenario returned.
type Env struct {
	sync.Mutex
	Scope   *sandbox.Scope
	Drivers *primitives.Drivers
	Harness *harness.Harness
	OS      osProvider

	deferred []func() error
}

// Defer registers a cleanup function that is run after the scenario
// returned, in reverse order of registration and before the Scope is closed.
func (e *Env) Defer(fn func() error) {
	e.Lock()
	defer e.Unlock()

	e.deferred = append(e.deferred, fn)
}

func (e *Env) cleanup() error {
	e.Lock()
	deferred := e.deferred
	e.deferred = nil
	e.Unlock()

	var errs []error

	for i := len(deferred) - 1; i >= 0; i-- {
		if err := deferred[i](); err != nil {
			errs = append(errs, err)
		}
	}

	if err := e.Scope.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
