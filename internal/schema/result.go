package schema

import (
	"errors"
	"time"
)

// Status is the outcome classification of a single scenario.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
	StatusSoftFailed
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusSoftFailed:
		return "soft-failed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsFatal reports whether the status should fail the overall run. Skipped and
// soft-failed scenarios are transient contention outcomes and do not.
func (s Status) IsFatal() bool {
	return s == StatusFailed || s == StatusAborted
}

// Classify maps the error returned by a scenario onto its [Status].
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusPassed
	case errors.Is(err, ErrAddressInUse):
		return StatusSkipped
	case errors.Is(err, ErrConnectionRefused):
		return StatusSoftFailed
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrSetup):
		return StatusAborted
	default:
		return StatusFailed
	}
}

// Input is a named literal value a scenario was parametrized with.
type Input struct {
	Name  string
	Value string
}

// ScenarioResult is the recorded outcome of a single scenario.
type ScenarioResult struct {
	Name     string
	Kind     Kind
	Inputs   []Input
	Status   Status
	Err      error
	Duration time.Duration
}
