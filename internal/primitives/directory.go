package primitives

import (
	"errors"
	"fmt"

	"github.com/desertwitch/primcheck/internal/sandbox"
	"github.com/desertwitch/primcheck/internal/schema"
	"golang.org/x/sys/unix"
)

// DirectoryDriver is the driver for directories.
type DirectoryDriver struct {
	*base
}

// Create makes a directory at the [sandbox.ScratchPath].
func (d *DirectoryDriver) Create(p sandbox.ScratchPath) (*Primitive, error) {
	if err := d.unixHandler.Mkdir(p.Path(), dirPerms); err != nil {
		return nil, fmt.Errorf("(prim-dir) failed to mkdir: %w", schema.Translate(err))
	}

	return &Primitive{Path: p, Kind: schema.KindDirectory}, nil
}

// Verify checks that the directory exists.
func (d *DirectoryDriver) Verify(prim *Primitive) error {
	if _, err := d.expect(prim.Path.Path(), schema.KindDirectory); err != nil {
		return fmt.Errorf("(prim-dir) %w", err)
	}

	return nil
}

// IsEmpty reports whether the directory has no entries.
func (d *DirectoryDriver) IsEmpty(prim *Primitive) (bool, error) {
	entries, err := d.osHandler.ReadDir(prim.Path.Path())
	if err != nil {
		return false, fmt.Errorf("(prim-dir) failed to readdir: %w", schema.Translate(err))
	}

	return len(entries) == 0, nil
}

// Remove removes the directory, which fails with [ErrNotEmpty] as long as the
// directory still has entries.
func (d *DirectoryDriver) Remove(prim *Primitive) error {
	if err := d.unixHandler.Rmdir(prim.Path.Path()); err != nil {
		if errors.Is(err, unix.ENOTEMPTY) || errors.Is(err, unix.EEXIST) {
			return fmt.Errorf("(prim-dir) %w: %w", ErrNotEmpty, err)
		}

		return fmt.Errorf("(prim-dir) failed to rmdir: %w", schema.Translate(err))
	}

	return nil
}
