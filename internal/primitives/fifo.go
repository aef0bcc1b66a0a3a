package primitives

import (
	"fmt"

	"github.com/desertwitch/primcheck/internal/sandbox"
	"github.com/desertwitch/primcheck/internal/schema"
)

// FIFODriver is the driver for named pipes. Data transfer through the pipe is
// exercised by the harness, which attaches a reader and a writer.
type FIFODriver struct {
	*base
}

// Create makes a named pipe at the [sandbox.ScratchPath].
func (d *FIFODriver) Create(p sandbox.ScratchPath) (*Primitive, error) {
	if err := d.unixHandler.Mkfifo(p.Path(), fifoPerms); err != nil {
		return nil, fmt.Errorf("(prim-fifo) failed to mkfifo: %w", schema.Translate(err))
	}

	return &Primitive{Path: p, Kind: schema.KindFIFO}, nil
}

// Verify checks that a named pipe exists at the path.
func (d *FIFODriver) Verify(prim *Primitive) error {
	if _, err := d.expect(prim.Path.Path(), schema.KindFIFO); err != nil {
		return fmt.Errorf("(prim-fifo) %w", err)
	}

	return nil
}
