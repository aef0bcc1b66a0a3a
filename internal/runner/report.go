package runner

import (
	"time"

	"github.com/desertwitch/primcheck/internal/schema"
)

// Report is the aggregated outcome of a run. Cleanup errors are recorded
// apart from the scenario results and never change a result's status.
type Report struct {
	Results       []schema.ScenarioResult
	CleanupErrors []error
	Started       time.Time
	Finished      time.Time
}

// Count returns the number of results with the given status.
func (r *Report) Count(status schema.Status) int {
	n := 0

	for _, result := range r.Results {
		if result.Status == status {
			n++
		}
	}

	return n
}

// Failed reports whether any scenario failed or was aborted.
func (r *Report) Failed() bool {
	for _, result := range r.Results {
		if result.Status.IsFatal() {
			return true
		}
	}

	return false
}

// ExitCode returns the process exit code for the [Report].
func (r *Report) ExitCode() int {
	if r.Failed() {
		return 1
	}

	return 0
}

// Elapsed returns the wall time of the run.
func (r *Report) Elapsed() time.Duration {
	return r.Finished.Sub(r.Started)
}
