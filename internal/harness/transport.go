package harness

import (
	"context"
	"io"
	"time"
)

const (
	// NetworkFIFO is the endpoint network name of named pipe transports.
	NetworkFIFO = "fifo"

	// NetworkTCP is the endpoint network name of loopback TCP transports.
	NetworkTCP = "tcp"
)

// Transport connects exactly one producer with exactly one consumer through
// a named operating system resource. The two sides never share memory.
type Transport interface {
	// Consumer returns the receiving end. It may block until a producer
	// attaches, but must give up once the context is done.
	Consumer(ctx context.Context) (io.ReadCloser, error)

	// Producer returns the sending end. It may block until a consumer
	// attaches, but must give up once the context is done.
	Producer(ctx context.Context) (io.WriteCloser, error)

	// Endpoint names the rendezvous resource, so that a producer in another
	// process can attach to it.
	Endpoint() (network, address string)

	// Close releases anything the transport still holds.
	Close() error
}

// Preparer is implemented by transports that need to attach a side before
// either task is started, e.g. to bind a listener.
type Preparer interface {
	Prepare(ctx context.Context) error
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// bindDeadline applies the deadline of the context to v, if v supports
// deadlines, and expires it immediately once the context is done. The
// returned function stops the expiry.
func bindDeadline(ctx context.Context, v any) func() bool {
	d, ok := v.(deadliner)
	if !ok {
		return func() bool { return false }
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = d.SetDeadline(deadline)
	}

	return context.AfterFunc(ctx, func() {
		_ = d.SetDeadline(time.Now())
	})
}
