// Package harness runs a producer task and a consumer task concurrently
// against a shared named resource (a named pipe or a socket address) and
// joins both before the exchange is scored. The tasks rendezvous through the
// [Transport] only; the producer can run as a goroutine or as a separate
// process.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/desertwitch/primcheck/internal/schema"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTimeout bounds every exchange that is not configured otherwise.
	DefaultTimeout = 10 * time.Second
)

// Mode selects the unit of execution of the producer task.
type Mode int

const (
	// ModeGoroutine runs the producer in a goroutine of this process.
	ModeGoroutine Mode = iota

	// ModeProcess runs the producer in a separate child process.
	ModeProcess
)

func (m Mode) String() string {
	if m == ModeProcess {
		return "process"
	}

	return "goroutine"
}

// ParseMode returns the [Mode] for a name as produced by [Mode.String].
func ParseMode(name string) (Mode, error) {
	switch name {
	case "goroutine", "thread", "":
		return ModeGoroutine, nil
	case "process":
		return ModeProcess, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMode, name)
	}
}

// Options are the options of a [Harness].
type Options struct {
	// Mode is the unit of execution of the producer.
	Mode Mode

	// Timeout bounds a whole exchange, including opening both sides.
	Timeout time.Duration

	// Stagger delays the start of the producer after the consumer started.
	Stagger time.Duration

	// Spawn builds the producer command in [ModeProcess].
	Spawn SpawnFunc
}

// Harness is the principal implementation of the concurrency harness.
type Harness struct {
	opts Options
}

// New returns a pointer to a new [Harness]. Unset options are defaulted.
func New(opts Options) *Harness {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.Spawn == nil {
		opts.Spawn = SelfSpawn
	}

	return &Harness{opts: opts}
}

// Result is the outcome of a single exchange.
type Result struct {
	Sent     schema.Payload
	Received []byte
	Elapsed  time.Duration
}

type processRestricted interface {
	processSupported() error
}

// Exchange sends the payload from a producer to a consumer through the
// [Transport] and returns what the consumer received. Both tasks are joined
// before Exchange returns. The consumer reads until the producer closes its
// end, but never more than one byte past the payload, so that an over-long
// transmission is still detected. The transport is not closed.
func (h *Harness) Exchange(ctx context.Context, t Transport, payload schema.Payload) (*Result, error) {
	if h.opts.Mode == ModeProcess {
		if pr, ok := t.(processRestricted); ok {
			if err := pr.processSupported(); err != nil {
				return nil, fmt.Errorf("(harness) %w", schema.Setup(err))
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()

	if p, ok := t.(Preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			return nil, fmt.Errorf("(harness-prepare) %w", schema.Setup(err))
		}
	}

	start := time.Now()
	result := &Result{Sent: payload}

	group, groupCtx := errgroup.WithContext(ctx)
	consumerStarted := make(chan struct{})

	group.Go(func() error {
		close(consumerStarted)

		received, err := consume(groupCtx, t, int64(payload.Len())+1)
		result.Received = received

		return err
	})

	group.Go(func() error {
		select {
		case <-consumerStarted:
		case <-groupCtx.Done():
			return fmt.Errorf("(harness-produce) %w", schema.Translate(groupCtx.Err()))
		}

		if h.opts.Stagger > 0 {
			timer := time.NewTimer(h.opts.Stagger)
			defer timer.Stop()

			select {
			case <-timer.C:
			case <-groupCtx.Done():
				return fmt.Errorf("(harness-produce) %w", schema.Translate(groupCtx.Err()))
			}
		}

		if h.opts.Mode == ModeProcess {
			return h.produceProcess(groupCtx, t, payload)
		}

		return produce(groupCtx, t, payload)
	})

	err := group.Wait()
	result.Elapsed = time.Since(start)

	network, address := t.Endpoint()
	slog.Debug("Exchange finished",
		"network", network,
		"address", address,
		"mode", h.opts.Mode,
		"sent", payload.Len(),
		"received", len(result.Received),
		"elapsed", result.Elapsed,
		"err", err,
	)

	if err != nil {
		return result, err
	}

	return result, nil
}

// RoundTrip performs an [Harness.Exchange] and verifies that the consumer
// received exactly the payload, in order.
func (h *Harness) RoundTrip(ctx context.Context, t Transport, payload schema.Payload) error {
	result, err := h.Exchange(ctx, t, payload)
	if err != nil {
		return err
	}

	network, address := t.Endpoint()
	if err := schema.VerifyPayload(fmt.Sprintf("bytes received over %s %s", network, address), payload, result.Received); err != nil {
		return fmt.Errorf("(harness) %w", err)
	}

	return nil
}

func consume(ctx context.Context, t Transport, limit int64) ([]byte, error) {
	r, err := t.Consumer(ctx)
	if err != nil {
		return nil, fmt.Errorf("(harness-consume) %w", err)
	}
	defer r.Close()

	stop := bindDeadline(ctx, r)
	defer stop()

	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return data, fmt.Errorf("(harness-consume) failed to read: %w", schema.Translate(err))
	}

	return data, nil
}

func produce(ctx context.Context, t Transport, payload schema.Payload) error {
	w, err := t.Producer(ctx)
	if err != nil {
		return fmt.Errorf("(harness-produce) %w", err)
	}

	stop := bindDeadline(ctx, w)
	defer stop()

	if _, err := w.Write(payload.Bytes()); err != nil {
		w.Close()

		return fmt.Errorf("(harness-produce) failed to write: %w", schema.Translate(err))
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("(harness-produce) failed to close: %w", err)
	}

	return nil
}
