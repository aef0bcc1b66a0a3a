package harness

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/desertwitch/primcheck/internal/primitives"
	"github.com/desertwitch/primcheck/internal/schema"
)

// TCPTransport is a [Transport] over a loopback TCP stream connection. The
// passive endpoint is bound in [TCPTransport.Prepare], before either task is
// started, so the consumer side is always attached first.
type TCPTransport struct {
	sync.Mutex
	address  string
	driver   *primitives.SocketDriver
	endpoint *primitives.Endpoint
}

// NewTCPTransport returns a pointer to a new [TCPTransport] binding address.
func NewTCPTransport(address string, driver *primitives.SocketDriver) *TCPTransport {
	return &TCPTransport{
		address: address,
		driver:  driver,
	}
}

// Prepare binds the passive endpoint. An address that is already bound
// yields an error matching [schema.ErrAddressInUse].
func (t *TCPTransport) Prepare(ctx context.Context) error {
	t.Lock()
	defer t.Unlock()

	if t.endpoint != nil {
		return nil
	}

	endpoint, err := t.driver.Listen(ctx, t.address)
	if err != nil {
		return fmt.Errorf("(tcp-prepare) %w", err)
	}
	t.endpoint = endpoint

	return nil
}

// Endpoint returns the bound address once prepared, the requested address
// otherwise.
func (t *TCPTransport) Endpoint() (string, string) {
	t.Lock()
	defer t.Unlock()

	if t.endpoint != nil {
		return NetworkTCP, t.endpoint.Addr.String()
	}

	return NetworkTCP, t.address
}

// Primitive returns the passive socket endpoint, nil before it is prepared.
func (t *TCPTransport) Primitive() *primitives.Endpoint {
	t.Lock()
	defer t.Unlock()

	return t.endpoint
}

// Consumer accepts exactly one connection on the passive endpoint.
//
//nolint:ireturn
func (t *TCPTransport) Consumer(ctx context.Context) (io.ReadCloser, error) {
	endpoint := t.Primitive()
	if endpoint == nil {
		return nil, fmt.Errorf("(tcp-accept) %w", ErrNotPrepared)
	}

	stop := bindDeadline(ctx, endpoint.Listener)
	defer stop()

	conn, err := endpoint.Listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("(tcp-accept) %w", schema.Translate(err))
	}

	return conn, nil
}

// Producer connects an active endpoint to the passive endpoint.
//
//nolint:ireturn
func (t *TCPTransport) Producer(ctx context.Context) (io.WriteCloser, error) {
	_, address := t.Endpoint()

	conn, err := t.driver.Dial(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("(tcp-dial) %w", err)
	}

	return conn, nil
}

// Close closes the passive endpoint, if it was bound.
func (t *TCPTransport) Close() error {
	t.Lock()
	defer t.Unlock()

	if t.endpoint == nil {
		return nil
	}

	err := t.endpoint.Close()
	t.endpoint = nil

	if err != nil {
		return fmt.Errorf("(tcp-close) %w", err)
	}

	return nil
}
