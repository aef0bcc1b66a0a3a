package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertwitch/primcheck/internal/harness"
	flag "github.com/spf13/pflag"
)

// runProduce is the body of the hidden producer subcommand. The payload is
// read from the standard input, errors are written to the standard error and
// classified through the exit code.
func runProduce(args []string) int {
	fs := flag.NewFlagSet(harness.ProduceCommand, flag.ContinueOnError)
	network := fs.String("network", "", "network of the endpoint (fifo|tcp)")
	address := fs.String("address", "", "address of the endpoint")
	timeout := fs.Duration("timeout", harness.DefaultTimeout, "bound of the exchange")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)

		return harness.ExitCodeFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	err := harness.Produce(ctx, *network, *address, os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	return harness.ExitCode(err)
}
