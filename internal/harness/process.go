package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/desertwitch/primcheck/internal/primitives"
	"github.com/desertwitch/primcheck/internal/schema"
)

const (
	// ProduceCommand is the (hidden) subcommand a producer process runs.
	ProduceCommand = "produce"

	// ExitCodeFailure is the exit code of a producer process that failed.
	ExitCodeFailure = 1

	// ExitCodeRefused is the exit code of a producer process whose connection
	// attempt was refused.
	ExitCodeRefused = 3

	// ExitCodeBlocked is the exit code of a producer process that stalled past
	// its deadline.
	ExitCodeBlocked = 4
)

// SpawnFunc builds the command of a producer process for the endpoint. The
// command must be bound to the context, and is fed the payload on its
// standard input.
type SpawnFunc func(ctx context.Context, network, address string) (*exec.Cmd, error)

// SelfSpawn is the default [SpawnFunc]. It re-executes the running binary
// with the [ProduceCommand] subcommand.
func SelfSpawn(ctx context.Context, network, address string) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("(harness-spawn) failed to resolve executable: %w", err)
	}

	return exec.CommandContext(ctx, exe, produceArgs(ctx, network, address)...), nil //nolint:gosec
}

// produceArgs returns the arguments of a producer process. The remaining time
// of the context's deadline is passed on as the producer's own timeout.
func produceArgs(ctx context.Context, network, address string) []string {
	args := []string{ProduceCommand, "--network", network, "--address", address}

	if deadline, ok := ctx.Deadline(); ok {
		args = append(args, "--timeout", max(time.Until(deadline), time.Millisecond).String())
	}

	return args
}

func (h *Harness) produceProcess(ctx context.Context, t Transport, payload schema.Payload) error {
	network, address := t.Endpoint()

	cmd, err := h.opts.Spawn(ctx, network, address)
	if err != nil {
		return fmt.Errorf("(harness-process) %w", schema.Setup(err))
	}

	var stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(payload.Bytes())
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("(harness-process) %w: %w", schema.ErrBlocked, ctx.Err())
	}

	detail := strings.TrimSpace(stderr.String())

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case ExitCodeRefused:
			return fmt.Errorf("(harness-process) %w: %s", schema.ErrConnectionRefused, detail)
		case ExitCodeBlocked:
			return fmt.Errorf("(harness-process) %w: %s", schema.ErrBlocked, detail)
		}
	}

	return fmt.Errorf("(harness-process) %w: %w: %s", ErrProducerFailed, err, detail)
}

// Produce is the body of a producer process: it attaches to the endpoint as
// the producing side and sends everything read from payload.
func Produce(ctx context.Context, network, address string, payload io.Reader) error {
	data, err := io.ReadAll(payload)
	if err != nil {
		return fmt.Errorf("(harness-producer) failed to read payload: %w", err)
	}

	var t Transport

	switch network {
	case NetworkFIFO:
		t = NewFIFOTransport(address, FIFOBlocking, &schema.OS{})
	case NetworkTCP:
		t = NewTCPTransport(address, primitives.NewSocketDriver())
	default:
		return fmt.Errorf("(harness-producer) %w: %q", ErrUnknownNetwork, network)
	}
	defer t.Close()

	return produce(ctx, t, schema.NewPayload(data))
}

// ExitCode maps the error returned by [Produce] onto the exit code of the
// producer process.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, schema.ErrConnectionRefused):
		return ExitCodeRefused
	case errors.Is(err, schema.ErrBlocked):
		return ExitCodeBlocked
	default:
		return ExitCodeFailure
	}
}
