package primitives

import (
	"io"
	"net"
	"testing"

	"github.com/desertwitch/primcheck/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSocketDriver_Success tests a single round-trip over an ephemeral
// loopback port.
func TestSocketDriver_Success(t *testing.T) {
	t.Parallel()

	d := NewSocketDriver()

	endpoint, err := d.Listen(t.Context(), LoopbackAddress(0))
	require.NoError(t, err)
	defer endpoint.Close()

	require.NoError(t, d.Verify(endpoint))
	assert.Equal(t, schema.KindSocket, endpoint.Kind)

	received := make(chan []byte, 1)
	go func() {
		conn, err := endpoint.Listener.Accept()
		if err != nil {
			close(received)

			return
		}
		defer conn.Close()

		buf := make([]byte, len("content"))
		if _, err := io.ReadFull(conn, buf); err != nil {
			close(received)

			return
		}
		received <- buf
	}()

	conn, err := d.Dial(t.Context(), endpoint.Addr.String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("content"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	assert.Equal(t, []byte("content"), <-received)
}

// TestSocketDriverListen_Fail_AddressInUse tests that a bound port is
// reported as address in use.
func TestSocketDriverListen_Fail_AddressInUse(t *testing.T) {
	t.Parallel()

	d := NewSocketDriver()

	first, err := d.Listen(t.Context(), LoopbackAddress(0))
	require.NoError(t, err)
	defer first.Close()

	_, err = d.Listen(t.Context(), first.Addr.String())
	require.ErrorIs(t, err, schema.ErrAddressInUse)
	assert.Equal(t, schema.StatusSkipped, schema.Classify(err))
}

// TestSocketDriverDial_Fail_ConnectionRefused tests that dialing without a
// listener is reported as connection refused.
func TestSocketDriverDial_Fail_ConnectionRefused(t *testing.T) {
	t.Parallel()

	d := NewSocketDriver()

	endpoint, err := d.Listen(t.Context(), LoopbackAddress(0))
	require.NoError(t, err)
	address := endpoint.Addr.String()
	require.NoError(t, endpoint.Close())

	_, err = d.Dial(t.Context(), address)
	require.ErrorIs(t, err, schema.ErrConnectionRefused)
	assert.Equal(t, schema.StatusSoftFailed, schema.Classify(err))
}

// TestSocketDriverVerify_Fail_NotListening tests the verification of an
// endpoint without listener.
func TestSocketDriverVerify_Fail_NotListening(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, NewSocketDriver().Verify(nil), ErrNotListening)
	require.ErrorIs(t, NewSocketDriver().Verify(&Endpoint{}), ErrNotListening)
}

// TestSocketDriverVerify_Fail_PortMismatch tests that an endpoint bound to a
// different port than requested fails verification.
func TestSocketDriverVerify_Fail_PortMismatch(t *testing.T) {
	t.Parallel()

	d := NewSocketDriver()

	endpoint, err := d.Listen(t.Context(), LoopbackAddress(0))
	require.NoError(t, err)
	defer endpoint.Close()

	require.NoError(t, d.Verify(endpoint))

	bound := endpoint.Listener.Addr().(*net.TCPAddr).Port //nolint:forcetypeassert
	endpoint.Requested = LoopbackAddress(bound%65535 + 1)

	err = d.Verify(endpoint)
	require.ErrorIs(t, err, schema.ErrVerificationMismatch)

	var mismatch *schema.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "bound port", mismatch.What)
	assert.Equal(t, bound, mismatch.Observed)
}

// TestSocketDriverVerify_Fail_Requested tests that an unparsable requested
// address fails verification.
func TestSocketDriverVerify_Fail_Requested(t *testing.T) {
	t.Parallel()

	d := NewSocketDriver()

	endpoint, err := d.Listen(t.Context(), LoopbackAddress(0))
	require.NoError(t, err)
	defer endpoint.Close()

	endpoint.Requested = "no-port"
	require.Error(t, d.Verify(endpoint))
}
