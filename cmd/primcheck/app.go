package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertwitch/primcheck/internal/configuration"
	"github.com/desertwitch/primcheck/internal/runner"
	"github.com/desertwitch/primcheck/internal/ui"
)

// App is the principal structure wiring the run of the scenarios to the
// (optional) user interface.
type App struct {
	sync.Mutex
	cfg       *configuration.AppConfiguration
	runner    *runner.Runner
	scenarios []runner.Scenario
	uiHandler *ui.Handler
	report    *runner.Report
}

// NewApp returns a pointer to a new [App].
func NewApp(cfg *configuration.AppConfiguration, r *runner.Runner, scenarios []runner.Scenario, uiHandler *ui.Handler) *App {
	return &App{
		cfg:       cfg,
		runner:    r,
		scenarios: scenarios,
		uiHandler: uiHandler,
	}
}

// Launch runs all scenarios. The report is retained even when the run was
// aborted.
func (app *App) Launch(ctx context.Context) error {
	report, err := app.runner.Run(ctx, app.scenarios)

	app.Lock()
	app.report = report
	app.Unlock()

	if err != nil {
		return fmt.Errorf("(app) %w", err)
	}

	return nil
}

// LaunchUI starts the user interface and blocks until it is quit.
func (app *App) LaunchUI() error {
	if err := app.uiHandler.Launch(); err != nil {
		return fmt.Errorf("(app-ui) %w", err)
	}

	return nil
}

// Report returns the [runner.Report] of the last run, nil if none finished.
func (app *App) Report() *runner.Report {
	app.Lock()
	defer app.Unlock()

	return app.report
}
