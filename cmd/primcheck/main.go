// Command primcheck runs the conformance scenarios of filesystem and socket
// primitives and reports the outcome of every scenario.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/desertwitch/primcheck/internal/configuration"
	"github.com/desertwitch/primcheck/internal/harness"
	"github.com/desertwitch/primcheck/internal/primitives"
	"github.com/desertwitch/primcheck/internal/runner"
	"github.com/desertwitch/primcheck/internal/sandbox"
	"github.com/desertwitch/primcheck/internal/schema"
	"github.com/desertwitch/primcheck/internal/ui"
	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"
)

const (
	stackTraceBufMax = 1 << 24
	terminalHandler  = "terminal"
	uiHandler        = "ui"
)

//nolint:gochecknoglobals
var (
	exitCode = 0
	Version  string

	configFile = flag.String("config", "", "read the configuration from this env-style file")
	rootDir    = flag.String("root", "", "sandbox root directory (default: unique directory below the temp dir)")
	port       = flag.Int("port", primitives.DefaultPort, "loopback port of the socket round-trip (0 for ephemeral)")
	timeout    = flag.Duration("timeout", harness.DefaultTimeout, "bound of every blocking exchange")
	stagger    = flag.Duration("stagger", 0, "delay of producers after their consumers started")
	workers    = flag.Int("workers", 1, "number of concurrently running scenarios")
	mode       = flag.String("mode", "goroutine", "unit of execution of producers (goroutine|process)")
	runFilter  = flag.String("run", "", "only run scenarios whose name matches this regular expression")
	kinds      = flag.StringSlice("kind", nil, "only run scenarios of these primitive kinds (file|directory|fifo|hardlink|symlink|socket)")
	uiEnabled  = flag.Bool("ui", false, "enable the terminal UI")
	verbose    = flag.BoolP("verbose", "v", false, "enable debug logging")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile = flag.String("memprofile", "", "write memory profile to this file")
	version    = flag.Bool("version", false, "print the version and exit")

	slogManager = NewSlogManager()
)

func logLevel() slog.Level {
	if *verbose {
		return slog.LevelDebug
	}

	return slog.LevelInfo
}

func setupLogging() {
	slogManager.AddHandler(terminalHandler, tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel(),
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(slog.New(slogManager))
}

func setupSignalHandlers(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChan
		slog.Warn("Received signal, aborting the run...")
		cancel()
	}()

	sigChan2 := make(chan os.Signal, 1)
	signal.Notify(sigChan2, syscall.SIGUSR1)
	go func() {
		for range sigChan2 {
			buf := make([]byte, stackTraceBufMax)
			stacklen := runtime.Stack(buf, true)
			os.Stderr.Write(buf[:stacklen])
		}
	}()
}

// loadConfiguration merges the defaults, the configuration file and the
// explicitly set flags, in that order of precedence.
func loadConfiguration() (*configuration.AppConfiguration, error) {
	cfg := configuration.NewAppConfiguration()

	if *configFile != "" {
		provider := &configuration.ConfigProviderImpl{GenericConfigReader: &configuration.GodotenvProvider{}}
		if err := cfg.Load(provider, *configFile); err != nil {
			return nil, fmt.Errorf("(main) %w", err)
		}
	}

	var err error

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.Root = *rootDir
		case "port":
			cfg.Port = *port
		case "timeout":
			cfg.Timeout = *timeout
		case "stagger":
			cfg.Stagger = *stagger
		case "workers":
			cfg.Workers = *workers
		case "mode":
			if cfg.Mode, err = harness.ParseMode(*mode); err != nil {
				err = fmt.Errorf("(main) %w", err)
			}
		}
	})

	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("(main) %w", err)
	}

	return cfg, nil
}

func newSandbox(cfg *configuration.AppConfiguration, osHandler *schema.OS, unixHandler *schema.Unix) (*sandbox.Sandbox, error) {
	if cfg.Root != "" {
		return sandbox.New(cfg.Root, osHandler, unixHandler)
	}

	return sandbox.NewTemp("", osHandler, unixHandler)
}

func startApp(ctx context.Context, wg *sync.WaitGroup, app *App) {
	defer wg.Done()

	if app.uiHandler != nil {
		slog.Info("Waiting for UI...")
		for !app.uiHandler.Ready.Load() && !app.uiHandler.Failed.Load() {
			if ctx.Err() != nil {
				break
			}
			time.Sleep(10 * time.Millisecond) //nolint:mnd
		}
	}

	if err := app.Launch(ctx); err != nil {
		slog.Error("Run was aborted", "err", err)
	}

	if app.uiHandler != nil {
		app.uiHandler.Quit()
	}
}

func startUI(wg *sync.WaitGroup, app *App) {
	defer wg.Done()

	if app.uiHandler == nil {
		return
	}

	slogManager.AddHandler(uiHandler, tint.NewHandler(app.uiHandler.LogWriter, &tint.Options{
		Level:      logLevel(),
		TimeFormat: time.Kitchen,
	}))
	slogManager.RemoveHandler(terminalHandler)

	defer func() {
		slogManager.RemoveHandler(uiHandler)
		setupLogging()
	}()

	if err := app.LaunchUI(); err != nil {
		slog.Error("UI failure: falling back to terminal.", "err", err)
	}
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupLogging()
	setupSignalHandlers(cancel)

	cfg, err := loadConfiguration()
	if err != nil {
		slog.Error("Failed to load the configuration", "err", err)

		return 1
	}

	memObserver := newMemoryObserver(ctx)
	defer memObserver.Stop()

	cpuProfiler := NewCPUProfiler(ctx, cpuprofile)
	defer cpuProfiler.Stop()

	allocProfiler := NewAllocProfiler(ctx, memprofile)
	defer allocProfiler.Stop()

	osHandler := &schema.OS{}
	unixHandler := &schema.Unix{}

	sb, err := newSandbox(cfg, osHandler, unixHandler)
	if err != nil {
		slog.Error("Failed to establish the sandbox", "err", err)

		return 1
	}

	defer func() {
		if cfg.Root != "" {
			return
		}
		if err := sb.Destroy(); err != nil {
			slog.Warn("Failed to remove the sandbox root", "root", sb.Root(), "err", err)
		}
	}()

	scenarios, err := runner.Select(runner.Matrix(runner.MatrixOptions{Port: cfg.Port, Mode: cfg.Mode}), *runFilter)
	if err == nil {
		scenarios, err = runner.SelectKinds(scenarios, *kinds)
	}
	if err != nil {
		slog.Error("Failed to select the scenarios", "err", err)

		return 1
	}

	h := harness.New(harness.Options{
		Mode:    cfg.Mode,
		Timeout: cfg.Timeout,
		Stagger: cfg.Stagger,
	})
	r := runner.New(sb, primitives.NewDrivers(osHandler, unixHandler), h, osHandler, runner.Options{Workers: cfg.Workers})

	var uiH *ui.Handler
	if *uiEnabled {
		uiH = ui.NewHandler(ctx, cancel, r)
	}

	slog.Info("Starting the run",
		"root", sb.Root(),
		"scenarios", len(scenarios),
		"workers", cfg.Workers,
		"mode", cfg.Mode,
		"timeout", cfg.Timeout,
	)

	app := NewApp(cfg, r, scenarios, uiH)

	var wg sync.WaitGroup

	wg.Add(1)
	go startUI(&wg, app)

	wg.Add(1)
	go startApp(ctx, &wg, app)

	wg.Wait()

	report := app.Report()
	if report == nil {
		return 1
	}

	if err := renderReport(os.Stdout, report); err != nil {
		slog.Error("Failed to render the report", "err", err)
	}

	return report.ExitCode()
}

func main() {
	defer func() {
		os.Exit(exitCode)
	}()

	if len(os.Args) > 1 && os.Args[1] == harness.ProduceCommand {
		exitCode = runProduce(os.Args[2:])

		return
	}

	flag.Parse()

	if *version {
		fmt.Fprintln(os.Stdout, "primcheck", Version)

		return
	}

	exitCode = run()
}
