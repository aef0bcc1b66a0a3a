package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/desertwitch/primcheck/internal/schema"
	"golang.org/x/sys/unix"
)

// FIFOMode selects how the ends of a named pipe are opened.
type FIFOMode int

const (
	// FIFOBlocking opens each end blocking, so that each side waits for the
	// other one to attach.
	FIFOBlocking FIFOMode = iota

	// FIFONonBlocking opens both ends non-blocking before the tasks start, the
	// read end first. Transfer is then attempted opportunistically.
	FIFONonBlocking
)

func (m FIFOMode) String() string {
	if m == FIFONonBlocking {
		return "nonblocking"
	}

	return "blocking"
}

type osProvider interface {
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
}

// FIFOTransport is a [Transport] over an existing named pipe.
type FIFOTransport struct {
	sync.Mutex
	path      string
	mode      FIFOMode
	osHandler osProvider

	reader *os.File
	writer *os.File
}

// NewFIFOTransport returns a pointer to a new [FIFOTransport] for the named
// pipe at path, which must already exist.
func NewFIFOTransport(path string, mode FIFOMode, osHandler osProvider) *FIFOTransport {
	return &FIFOTransport{
		path:      path,
		mode:      mode,
		osHandler: osHandler,
	}
}

// Endpoint returns the path of the named pipe.
func (t *FIFOTransport) Endpoint() (string, string) {
	return NetworkFIFO, t.path
}

// Prepare opens both ends in non-blocking mode. It does nothing in blocking
// mode.
func (t *FIFOTransport) Prepare(_ context.Context) error {
	if t.mode != FIFONonBlocking {
		return nil
	}

	t.Lock()
	defer t.Unlock()

	reader, err := t.osHandler.OpenFile(t.path, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("(fifo-prepare) failed to open read end: %w", schema.Translate(err))
	}

	writer, err := t.osHandler.OpenFile(t.path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		reader.Close()

		return fmt.Errorf("(fifo-prepare) failed to open write end: %w", schema.Translate(err))
	}

	t.reader = reader
	t.writer = writer

	return nil
}

// Consumer returns the read end of the named pipe.
//
//nolint:ireturn
func (t *FIFOTransport) Consumer(ctx context.Context) (io.ReadCloser, error) {
	f, err := t.end(ctx, &t.reader, os.O_RDONLY)
	if err != nil {
		return nil, err
	}

	return f, nil
}

// Producer returns the write end of the named pipe.
//
//nolint:ireturn
func (t *FIFOTransport) Producer(ctx context.Context) (io.WriteCloser, error) {
	f, err := t.end(ctx, &t.writer, os.O_WRONLY)
	if err != nil {
		return nil, err
	}

	return f, nil
}

func (t *FIFOTransport) end(ctx context.Context, prepared **os.File, flag int) (*os.File, error) {
	if t.mode == FIFONonBlocking {
		return t.takePrepared(prepared)
	}

	return t.openBlocking(ctx, flag)
}

// Close closes any end that was prepared but never handed out.
func (t *FIFOTransport) Close() error {
	t.Lock()
	defer t.Unlock()

	var err error
	for _, f := range []**os.File{&t.reader, &t.writer} {
		if *f != nil {
			if cerr := (*f).Close(); cerr != nil && err == nil {
				err = fmt.Errorf("(fifo-close) %w", cerr)
			}
			*f = nil
		}
	}

	return err
}

func (t *FIFOTransport) processSupported() error {
	if t.mode == FIFONonBlocking {
		return fmt.Errorf("%w: %s named pipe", ErrUnsupportedMode, t.mode)
	}

	return nil
}

func (t *FIFOTransport) takePrepared(end **os.File) (*os.File, error) {
	t.Lock()
	defer t.Unlock()

	if *end == nil {
		return nil, fmt.Errorf("(fifo) %w", ErrNotPrepared)
	}

	f := *end
	*end = nil

	return f, nil
}

type openResult struct {
	file *os.File
	err  error
}

// openBlocking opens one end of the named pipe, which blocks until the other
// end is attached. Should the context be done first, the pending open is
// released by briefly attaching as both ends.
func (t *FIFOTransport) openBlocking(ctx context.Context, flag int) (*os.File, error) {
	resultChan := make(chan openResult, 1)

	go func() {
		f, err := t.osHandler.OpenFile(t.path, flag, 0)
		resultChan <- openResult{file: f, err: err}
	}()

	select {
	case res := <-resultChan:
		if res.err != nil {
			return nil, fmt.Errorf("(fifo-open) %w", schema.Translate(res.err))
		}

		return res.file, nil

	case <-ctx.Done():
		rw, err := t.osHandler.OpenFile(t.path, os.O_RDWR|unix.O_NONBLOCK, 0)
		if err != nil {
			slog.Warn("Failure releasing a blocked named pipe open (left pending)",
				"path", t.path,
				"err", err,
			)
		} else {
			res := <-resultChan
			if res.file != nil {
				res.file.Close()
			}
			rw.Close()
		}

		return nil, fmt.Errorf("(fifo-open) %w: %w", schema.ErrBlocked, ctx.Err())
	}
}
