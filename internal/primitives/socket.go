package primitives

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/desertwitch/primcheck/internal/sandbox"
	"github.com/desertwitch/primcheck/internal/schema"
)

const (
	// LoopbackHost is the host all passive socket endpoints are bound on.
	LoopbackHost = "127.0.0.1"

	// DefaultPort is the fixed loopback port socket scenarios bind by default.
	DefaultPort = 14900
)

// SocketDriver is the driver for loopback TCP stream sockets.
type SocketDriver struct {
	listenConfig net.ListenConfig
	dialer       net.Dialer
}

// NewSocketDriver returns a pointer to a new [SocketDriver].
func NewSocketDriver() *SocketDriver {
	return &SocketDriver{}
}

// LoopbackAddress returns the loopback address for the port. Port 0 requests
// an ephemeral port when listening.
func LoopbackAddress(port int) string {
	return net.JoinHostPort(LoopbackHost, strconv.Itoa(port))
}

// Endpoint is a bound passive socket endpoint.
type Endpoint struct {
	*Primitive
	Listener net.Listener

	// Requested is the address the endpoint was asked to bind.
	Requested string
}

// Close closes the listener of the [Endpoint].
func (e *Endpoint) Close() error {
	return e.Listener.Close()
}

// Listen binds a passive endpoint on the address. An address that is already
// bound yields an error matching [schema.ErrAddressInUse].
func (d *SocketDriver) Listen(ctx context.Context, address string) (*Endpoint, error) {
	listener, err := d.listenConfig.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("(prim-sock) failed to listen: %w", schema.Translate(err))
	}

	return &Endpoint{
		Primitive: &Primitive{
			Path: sandbox.ScratchPath{Leaf: listener.Addr().String(), Kind: schema.KindSocket},
			Kind: schema.KindSocket,
			Addr: listener.Addr(),
		},
		Listener:  listener,
		Requested: address,
	}, nil
}

// Dial connects an active endpoint to the address. An address without a
// listener yields an error matching [schema.ErrConnectionRefused].
func (d *SocketDriver) Dial(ctx context.Context, address string) (net.Conn, error) {
	conn, err := d.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("(prim-sock) failed to dial: %w", schema.Translate(err))
	}

	return conn, nil
}

// Verify checks that the endpoint is bound to a loopback address matching
// the requested one. A requested port 0 matches any bound port.
func (d *SocketDriver) Verify(e *Endpoint) error {
	if e == nil || e.Listener == nil {
		return fmt.Errorf("(prim-sock) %w", ErrNotListening)
	}

	bound, ok := e.Listener.Addr().(*net.TCPAddr)
	if !ok {
		return fmt.Errorf("(prim-sock) %w", schema.Mismatch("bound network", "tcp", e.Listener.Addr().Network()))
	}

	if !bound.IP.IsLoopback() {
		return fmt.Errorf("(prim-sock) %w", schema.Mismatch("loopback binding", true, false))
	}

	host, portStr, err := net.SplitHostPort(e.Requested)
	if err != nil {
		return fmt.Errorf("(prim-sock) failed to parse requested address: %w", err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("(prim-sock) failed to parse requested port: %w", err)
	}

	if port != 0 && port != bound.Port {
		return fmt.Errorf("(prim-sock) %w", schema.Mismatch("bound port", port, bound.Port))
	}

	if ip := net.ParseIP(host); ip != nil && !ip.Equal(bound.IP) {
		return fmt.Errorf("(prim-sock) %w", schema.Mismatch("bound host", ip.String(), bound.IP.String()))
	}

	return nil
}
