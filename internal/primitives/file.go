package primitives

import (
	"fmt"
	"os"

	"github.com/desertwitch/primcheck/internal/sandbox"
	"github.com/desertwitch/primcheck/internal/schema"
	"golang.org/x/sys/unix"
)

// FileDriver is the driver for regular files.
type FileDriver struct {
	*base
}

// Create makes an empty regular file at the [sandbox.ScratchPath]. Only its
// existence is verified by [FileDriver.Verify].
func (d *FileDriver) Create(p sandbox.ScratchPath) (*Primitive, error) {
	if err := d.unixHandler.Mknod(p.Path(), unix.S_IFREG|filePerms, 0); err != nil {
		return nil, fmt.Errorf("(prim-file) failed to mknod: %w", schema.Translate(err))
	}

	return &Primitive{Path: p, Kind: schema.KindFile}, nil
}

// CreateWithContent makes a regular file holding the payload at the
// [sandbox.ScratchPath]. The file must not exist yet.
func (d *FileDriver) CreateWithContent(p sandbox.ScratchPath, content schema.Payload) (*Primitive, error) {
	f, err := d.osHandler.OpenFile(p.Path(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerms)
	if err != nil {
		return nil, fmt.Errorf("(prim-file) failed to open: %w", schema.Translate(err))
	}

	if _, err := f.Write(content.Bytes()); err != nil {
		f.Close()

		return nil, fmt.Errorf("(prim-file) failed to write: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("(prim-file) failed to close: %w", err)
	}

	return &Primitive{Path: p, Kind: schema.KindFile, Content: &content}, nil
}

// Verify checks that the regular file exists and, if its content is known,
// that reading it back yields exactly that content.
func (d *FileDriver) Verify(prim *Primitive) error {
	if _, err := d.expect(prim.Path.Path(), schema.KindFile); err != nil {
		return fmt.Errorf("(prim-file) %w", err)
	}

	if prim.Content == nil {
		return nil
	}

	if err := d.readContent(prim.Path.Path(), *prim.Content); err != nil {
		return fmt.Errorf("(prim-file) %w", err)
	}

	return nil
}

// VerifyAbsent checks that the regular file no longer exists.
func (d *FileDriver) VerifyAbsent(prim *Primitive) error {
	if err := d.Absent(prim.Path.Path()); err != nil {
		return fmt.Errorf("(prim-file) %w", err)
	}

	return nil
}
