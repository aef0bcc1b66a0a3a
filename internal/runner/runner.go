// Package runner enumerates the scenario matrix and runs every scenario
// against the primitive drivers, recording one result per scenario. A failing
// scenario never stops the run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/desertwitch/primcheck/internal/harness"
	"github.com/desertwitch/primcheck/internal/primitives"
	"github.com/desertwitch/primcheck/internal/queue"
	"github.com/desertwitch/primcheck/internal/sandbox"
	"github.com/desertwitch/primcheck/internal/schema"
)

// Options are the options of a [Runner].
type Options struct {
	// Workers is the maximum of concurrently running scenarios. With more
	// than one worker, every scenario runs in its own isolated sandbox.
	Workers int
}

// Runner is the principal implementation of the scenario runner.
type Runner struct {
	sync.RWMutex
	sandbox   *sandbox.Sandbox
	drivers   *primitives.Drivers
	harness   *harness.Harness
	osHandler osProvider
	opts      Options
	queue     *queue.Queue[*task]
}

type task struct {
	index    int
	scenario *Scenario
}

// New returns a pointer to a new [Runner].
func New(sb *sandbox.Sandbox, drivers *primitives.Drivers, h *harness.Harness, osHandler osProvider, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return &Runner{
		sandbox:   sb,
		drivers:   drivers,
		harness:   h,
		osHandler: osHandler,
		opts:      opts,
	}
}

// Progress returns the [queue.Progress] of the run in flight, or of the last
// run once it has finished.
func (r *Runner) Progress() queue.Progress {
	r.RLock()
	q := r.queue
	r.RUnlock()

	if q == nil {
		return queue.Progress{}
	}

	return q.Progress()
}

// Run runs all scenarios and returns the [Report]. An error is only returned
// when the context was cancelled, in which case the scenarios that never ran
// are recorded as aborted and the (partial) report is still returned.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (*Report, error) {
	report := &Report{
		Started: time.Now(),
		Results: make([]schema.ScenarioResult, len(scenarios)),
	}

	tasks := make([]*task, len(scenarios))
	for i := range scenarios {
		tasks[i] = &task{index: i, scenario: &scenarios[i]}
	}

	q := queue.NewQueue(tasks...)

	r.Lock()
	r.queue = q
	r.Unlock()

	var mu sync.Mutex
	ran := make([]bool, len(scenarios))

	processFunc := func(t *task) queue.Decision {
		result, cleanupErr := r.runScenario(ctx, t)

		mu.Lock()
		defer mu.Unlock()

		report.Results[t.index] = result
		ran[t.index] = true

		if cleanupErr != nil {
			report.CleanupErrors = append(report.CleanupErrors, cleanupErr)
		}

		return decisionFor(result.Status)
	}

	var err error
	if r.opts.Workers > 1 {
		err = q.DequeueAndProcessConc(ctx, r.opts.Workers, processFunc)
	} else {
		err = q.DequeueAndProcess(ctx, processFunc)
	}

	for i := range scenarios {
		if !ran[i] {
			report.Results[i] = schema.ScenarioResult{
				Name:   scenarios[i].Name,
				Kind:   scenarios[i].Kind,
				Inputs: scenarios[i].Inputs,
				Status: schema.StatusAborted,
				Err:    fmt.Errorf("(runner) not run: %w", context.Cause(ctx)),
			}
		}
	}

	report.Finished = time.Now()

	if err != nil {
		return report, fmt.Errorf("(runner) %w", err)
	}

	return report, nil
}

func (r *Runner) runScenario(ctx context.Context, t *task) (schema.ScenarioResult, error) {
	sc := t.scenario
	start := time.Now()

	result := schema.ScenarioResult{
		Name:   sc.Name,
		Kind:   sc.Kind,
		Inputs: sc.Inputs,
	}

	sb := r.sandbox

	var isolated *sandbox.Sandbox
	if r.opts.Workers > 1 {
		var err error
		if isolated, err = sb.Isolate(fmt.Sprintf("scenario-%03d", t.index)); err != nil {
			result.Err = fmt.Errorf("(runner-isolate) %w", schema.Setup(err))
			result.Status = schema.Classify(result.Err)
			result.Duration = time.Since(start)
			logResult(result)

			return result, nil
		}
		sb = isolated
	}

	env := &Env{
		Scope:   sb.NewScope(),
		Drivers: r.drivers,
		Harness: r.harness,
		OS:      r.osHandler,
	}

	runErr := runSafely(ctx, sc, env)

	cleanupErr := env.cleanup()
	if isolated != nil {
		if err := isolated.Destroy(); err != nil {
			cleanupErr = errors.Join(cleanupErr, err)
		}
	}

	result.Err = runErr
	result.Status = schema.Classify(runErr)
	result.Duration = time.Since(start)
	logResult(result)

	if cleanupErr != nil {
		slog.Warn("Failure cleaning up after scenario",
			"scenario", sc.Name,
			"err", cleanupErr,
		)

		return result, fmt.Errorf("%s: %w", sc.Name, cleanupErr)
	}

	return result, nil
}

func runSafely(ctx context.Context, sc *Scenario, env *Env) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("(runner) %w: %v", ErrScenarioPanic, r)
		}
	}()

	if sc.Run == nil {
		return fmt.Errorf("(runner) %w", schema.Setup(ErrNoRunFunc))
	}

	return sc.Run(ctx, env)
}

func logResult(result schema.ScenarioResult) {
	switch result.Status {
	case schema.StatusPassed:
		slog.Info("Scenario passed",
			"scenario", result.Name,
			"elapsed", result.Duration,
		)
	case schema.StatusSkipped, schema.StatusSoftFailed:
		slog.Warn("Scenario "+result.Status.String(),
			"scenario", result.Name,
			"err", result.Err,
		)
	default:
		slog.Error("Scenario "+result.Status.String(),
			"scenario", result.Name,
			"err", result.Err,
		)
	}
}

func decisionFor(status schema.Status) queue.Decision {
	switch status {
	case schema.StatusPassed:
		return queue.DecisionPassed
	case schema.StatusSkipped, schema.StatusSoftFailed:
		return queue.DecisionSkipped
	default:
		return queue.DecisionFailed
	}
}

// Select returns the scenarios whose name matches the regular expression
// pattern. An empty pattern selects all scenarios.
func Select(scenarios []Scenario, pattern string) ([]Scenario, error) {
	if pattern == "" {
		return scenarios, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("(runner-select) %w: %w", ErrInvalidFilter, err)
	}

	selected := []Scenario{}
	for _, sc := range scenarios {
		if re.MatchString(sc.Name) {
			selected = append(selected, sc)
		}
	}

	return selected, nil
}

// SelectKinds returns the scenarios exercising one of the named primitive
// kinds. No names select all scenarios.
func SelectKinds(scenarios []Scenario, names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return scenarios, nil
	}

	kinds := make(map[schema.Kind]struct{}, len(names))
	for _, name := range names {
		kind, err := schema.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("(runner-selectkinds) %w: %w", ErrInvalidFilter, err)
		}
		kinds[kind] = struct{}{}
	}

	selected := []Scenario{}
	for _, sc := range scenarios {
		if _, ok := kinds[sc.Kind]; ok {
			selected = append(selected, sc)
		}
	}

	return selected, nil
}
