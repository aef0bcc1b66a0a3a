package configuration

import (
	"fmt"
	"time"

	"github.com/desertwitch/primcheck/internal/harness"
	"github.com/desertwitch/primcheck/internal/primitives"
)

// Keys of the configuration file.
const (
	KeyRoot    = "PRIMCHECK_ROOT"
	KeyPort    = "PRIMCHECK_PORT"
	KeyTimeout = "PRIMCHECK_TIMEOUT"
	KeyWorkers = "PRIMCHECK_WORKERS"
	KeyMode    = "PRIMCHECK_MODE"
	KeyStagger = "PRIMCHECK_STAGGER"
)

const maxPort = 65535

// AppConfiguration is the principal structure holding the application
// configuration.
type AppConfiguration struct {
	// Root is the sandbox root; a unique root below the temporary directory
	// is used if empty.
	Root string

	// Port is the loopback port of the socket round-trip, 0 for ephemeral.
	Port int

	// Timeout bounds every blocking exchange.
	Timeout time.Duration

	// Workers is the number of concurrently running scenarios.
	Workers int

	// Mode is the unit of execution of producers.
	Mode harness.Mode

	// Stagger delays producers after their consumers started.
	Stagger time.Duration
}

// NewAppConfiguration returns a pointer to a new, defaulted [AppConfiguration].
func NewAppConfiguration() *AppConfiguration {
	return &AppConfiguration{
		Port:    primitives.DefaultPort,
		Timeout: harness.DefaultTimeout,
		Workers: 1,
		Mode:    harness.ModeGoroutine,
	}
}

// Load reads the configuration files and applies the values set in them over
// the current values of the [AppConfiguration].
func (a *AppConfiguration) Load(c *ConfigProviderImpl, filenames ...string) error {
	envMap, err := c.ReadGeneric(filenames...)
	if err != nil {
		return fmt.Errorf("(config-load) %w", err)
	}

	a.Root = c.MapKeyToString(envMap, KeyRoot, a.Root)

	if a.Port, err = c.MapKeyToInt(envMap, KeyPort, a.Port); err != nil {
		return fmt.Errorf("(config-load) %w", err)
	}

	if a.Workers, err = c.MapKeyToInt(envMap, KeyWorkers, a.Workers); err != nil {
		return fmt.Errorf("(config-load) %w", err)
	}

	if a.Timeout, err = c.MapKeyToDuration(envMap, KeyTimeout, a.Timeout); err != nil {
		return fmt.Errorf("(config-load) %w", err)
	}

	if a.Stagger, err = c.MapKeyToDuration(envMap, KeyStagger, a.Stagger); err != nil {
		return fmt.Errorf("(config-load) %w", err)
	}

	if mode := c.MapKeyToString(envMap, KeyMode, ""); mode != "" {
		if a.Mode, err = harness.ParseMode(mode); err != nil {
			return fmt.Errorf("(config-load) %w: %w", ErrInvalidValue, err)
		}
	}

	return nil
}

// Validate checks that all values are within their allowed ranges.
func (a *AppConfiguration) Validate() error {
	if a.Port < 0 || a.Port > maxPort {
		return fmt.Errorf("(config-validate) %w: port %d", ErrOutOfRange, a.Port)
	}

	if a.Workers < 1 {
		return fmt.Errorf("(config-validate) %w: workers %d", ErrOutOfRange, a.Workers)
	}

	if a.Timeout <= 0 {
		return fmt.Errorf("(config-validate) %w: timeout %s", ErrOutOfRange, a.Timeout)
	}

	if a.Stagger < 0 || a.Stagger >= a.Timeout {
		return fmt.Errorf("(config-validate) %w: stagger %s", ErrOutOfRange, a.Stagger)
	}

	return nil
}
