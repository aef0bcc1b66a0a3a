// Package primitives implements one driver per operating system primitive
// class. Each driver creates its primitive at a [sandbox.ScratchPath],
// exercises it and verifies the observable outcome. Verification failures
// are returned as errors matching [schema.ErrVerificationMismatch].
package primitives

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/desertwitch/primcheck/internal/sandbox"
	"github.com/desertwitch/primcheck/internal/schema"
	"golang.org/x/sys/unix"
)

const (
	filePerms = 0o644
	dirPerms  = 0o755
	fifoPerms = 0o644
)

type osProvider interface {
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	ReadFile(name string) ([]byte, error)
	Readlink(name string) (string, error)
	ReadDir(name string) ([]os.DirEntry, error)
}

type unixProvider interface {
	Link(oldpath, newpath string) error
	Lstat(path string, stat *unix.Stat_t) error
	Mkdir(path string, mode uint32) error
	Mkfifo(path string, mode uint32) error
	Mknod(path string, mode uint32, dev int) error
	Rmdir(path string) error
	Symlink(oldpath, newpath string) error
	Unlink(path string) error
}

// Primitive is a created operating system object, addressed by its
// [sandbox.ScratchPath], with the minimal state needed to verify it.
type Primitive struct {
	Path sandbox.ScratchPath
	Kind schema.Kind

	// Content is the known content of a file or a link's target, nil if only
	// existence is to be verified.
	Content *schema.Payload

	// Target is the path a link refers to.
	Target string

	// Addr is the bound address of a passive socket endpoint.
	Addr net.Addr
}

// Driver is the common shape of the drivers of path-addressed primitives.
type Driver interface {
	Create(p sandbox.ScratchPath) (*Primitive, error)
	Verify(prim *Primitive) error
}

// Drivers is the set of all primitive drivers sharing the same providers.
type Drivers struct {
	File      *FileDriver
	Directory *DirectoryDriver
	FIFO      *FIFODriver
	Hardlink  *HardlinkDriver
	Symlink   *SymlinkDriver
	Socket    *SocketDriver
}

// NewDrivers returns a pointer to a new [Drivers] set.
func NewDrivers(osHandler osProvider, unixHandler unixProvider) *Drivers {
	b := &base{osHandler: osHandler, unixHandler: unixHandler}
	file := &FileDriver{base: b}

	return &Drivers{
		File:      file,
		Directory: &DirectoryDriver{base: b},
		FIFO:      &FIFODriver{base: b},
		Hardlink:  &HardlinkDriver{base: b, file: file},
		Symlink:   &SymlinkDriver{base: b, file: file},
		Socket:    NewSocketDriver(),
	}
}

// ForKind returns the [Driver] of a path-addressed primitive kind.
//
//nolint:ireturn
func (d *Drivers) ForKind(kind schema.Kind) (Driver, error) {
	switch kind {
	case schema.KindFile:
		return d.File, nil
	case schema.KindDirectory:
		return d.Directory, nil
	case schema.KindFIFO:
		return d.FIFO, nil
	default:
		return nil, fmt.Errorf("(prim) %w: %s", ErrNoPathDriver, kind)
	}
}

type base struct {
	osHandler   osProvider
	unixHandler unixProvider
}

// metadata returns the [schema.Metadata] of the directory entry at path.
func (b *base) metadata(path string) (*schema.Metadata, error) {
	var stat unix.Stat_t
	if err := b.unixHandler.Lstat(path, &stat); err != nil {
		return nil, schema.Translate(err)
	}

	return schema.MetadataFromStat(&stat), nil
}

// expect verifies that a directory entry of the wanted kind exists at path.
func (b *base) expect(path string, wantKind schema.Kind) (*schema.Metadata, error) {
	meta, err := b.metadata(path)
	if err != nil {
		if errors.Is(err, schema.ErrNotFound) {
			return nil, schema.Mismatch("existence of "+path, true, false)
		}

		return nil, fmt.Errorf("failed to lstat: %w", err)
	}

	// A hardlinked regular file is still a regular file.
	gotKind := meta.Kind()
	if wantKind == schema.KindFile && gotKind == schema.KindHardlink {
		gotKind = schema.KindFile
	}

	if gotKind != wantKind {
		return nil, schema.Mismatch("kind of "+path, wantKind, gotKind)
	}

	return meta, nil
}

// Absent verifies that no directory entry exists at path.
func (b *base) Absent(path string) error {
	meta, err := b.metadata(path)
	if err == nil {
		return schema.Mismatch("existence of "+path, false, meta.Kind())
	}

	if errors.Is(err, schema.ErrNotFound) {
		return nil
	}

	return fmt.Errorf("(prim-absent) failed to lstat: %w", err)
}

// readContent verifies that reading path yields the expected content.
func (b *base) readContent(path string, expected schema.Payload) error {
	data, err := b.osHandler.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read: %w", schema.Translate(err))
	}

	return schema.VerifyPayload("content of "+path, expected, data)
}
