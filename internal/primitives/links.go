package primitives

import (
	"fmt"

	"github.com/desertwitch/primcheck/internal/sandbox"
	"github.com/desertwitch/primcheck/internal/schema"
)

// HardlinkDriver is the driver for hard links.
type HardlinkDriver struct {
	*base
	file *FileDriver
}

// Create makes a regular file holding content at target and a second
// directory entry for the same storage at link. The returned [Primitive]
// describes the link.
func (d *HardlinkDriver) Create(target, link sandbox.ScratchPath, content schema.Payload) (*Primitive, error) {
	if _, err := d.file.CreateWithContent(target, content); err != nil {
		return nil, fmt.Errorf("(prim-hardl) failed to create target: %w", err)
	}

	if err := d.unixHandler.Link(target.Path(), link.Path()); err != nil {
		return nil, fmt.Errorf("(prim-hardl) failed to link: %w", schema.Translate(err))
	}

	return &Primitive{
		Path:    link,
		Kind:    schema.KindHardlink,
		Content: &content,
		Target:  target.Path(),
	}, nil
}

// Verify checks that both names refer to the same storage and that reading
// through either of them yields the known content.
func (d *HardlinkDriver) Verify(prim *Primitive) error {
	if prim.Content == nil {
		return fmt.Errorf("(prim-hardl) %w", ErrNoContent)
	}

	linkMeta, err := d.expect(prim.Path.Path(), schema.KindFile)
	if err != nil {
		return fmt.Errorf("(prim-hardl) %w", err)
	}

	targetMeta, err := d.expect(prim.Target, schema.KindFile)
	if err != nil {
		return fmt.Errorf("(prim-hardl) %w", err)
	}

	if linkMeta.Inode != targetMeta.Inode {
		return fmt.Errorf("(prim-hardl) %w", schema.Mismatch("inode of "+prim.Path.Path(), targetMeta.Inode, linkMeta.Inode))
	}

	for _, path := range []string{prim.Path.Path(), prim.Target} {
		if err := d.readContent(path, *prim.Content); err != nil {
			return fmt.Errorf("(prim-hardl) %w", err)
		}
	}

	return nil
}

// VerifyUnlink removes the link name and checks that it is gone while the
// target still exists with unchanged content.
func (d *HardlinkDriver) VerifyUnlink(prim *Primitive) error {
	return verifyUnlink(d.base, "(prim-hardl)", prim)
}

// SymlinkDriver is the driver for symbolic links.
type SymlinkDriver struct {
	*base
	file *FileDriver
}

// Create makes a regular file holding content at target and a symbolic link
// resolving to it at link. The returned [Primitive] describes the link.
func (d *SymlinkDriver) Create(target, link sandbox.ScratchPath, content schema.Payload) (*Primitive, error) {
	if _, err := d.file.CreateWithContent(target, content); err != nil {
		return nil, fmt.Errorf("(prim-syml) failed to create target: %w", err)
	}

	if err := d.unixHandler.Symlink(target.Path(), link.Path()); err != nil {
		return nil, fmt.Errorf("(prim-syml) failed to symlink: %w", schema.Translate(err))
	}

	return &Primitive{
		Path:    link,
		Kind:    schema.KindSymlink,
		Content: &content,
		Target:  target.Path(),
	}, nil
}

// Verify checks that the link resolves to its target and that reading
// through the symbolic name yields the target's content.
func (d *SymlinkDriver) Verify(prim *Primitive) error {
	if prim.Content == nil {
		return fmt.Errorf("(prim-syml) %w", ErrNoContent)
	}

	if _, err := d.expect(prim.Path.Path(), schema.KindSymlink); err != nil {
		return fmt.Errorf("(prim-syml) %w", err)
	}

	resolved, err := d.osHandler.Readlink(prim.Path.Path())
	if err != nil {
		return fmt.Errorf("(prim-syml) failed to readlink: %w", schema.Translate(err))
	}

	if resolved != prim.Target {
		return fmt.Errorf("(prim-syml) %w", schema.Mismatch("target of "+prim.Path.Path(), prim.Target, resolved))
	}

	for _, path := range []string{prim.Path.Path(), prim.Target} {
		if err := d.readContent(path, *prim.Content); err != nil {
			return fmt.Errorf("(prim-syml) %w", err)
		}
	}

	return nil
}

// VerifyUnlink removes the symbolic name and checks that it is gone while the
// target is left untouched.
func (d *SymlinkDriver) VerifyUnlink(prim *Primitive) error {
	return verifyUnlink(d.base, "(prim-syml)", prim)
}

func verifyUnlink(b *base, prefix string, prim *Primitive) error {
	if prim.Content == nil {
		return fmt.Errorf("%s %w", prefix, ErrNoContent)
	}

	if err := b.unixHandler.Unlink(prim.Path.Path()); err != nil {
		return fmt.Errorf("%s failed to unlink: %w", prefix, schema.Translate(err))
	}

	if err := b.Absent(prim.Path.Path()); err != nil {
		return fmt.Errorf("%s %w", prefix, err)
	}

	if _, err := b.expect(prim.Target, schema.KindFile); err != nil {
		return fmt.Errorf("%s %w", prefix, err)
	}

	if err := b.readContent(prim.Target, *prim.Content); err != nil {
		return fmt.Errorf("%s %w", prefix, err)
	}

	return nil
}
