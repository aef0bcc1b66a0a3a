package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/desertwitch/primcheck/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// failingUnix is a fake unixProvider that fails removals with a fixed error.
type failingUnix struct {
	schema.Unix
	removeErr error
}

func (f *failingUnix) Unlink(string) error {
	return f.removeErr
}

func (f *failingUnix) Rmdir(string) error {
	return f.removeErr
}

func newTestSandbox(t *testing.T) *Sandbox {
	t.Helper()

	sb, err := New(t.TempDir(), &schema.OS{}, &schema.Unix{})
	require.NoError(t, err)

	return sb
}

// TestNew_Fail_RelativeRoot tests that a relative root is refused.
func TestNew_Fail_RelativeRoot(t *testing.T) {
	t.Parallel()

	sb, err := New("relative/root", &schema.OS{}, &schema.Unix{})
	require.ErrorIs(t, err, ErrRootRelative)
	assert.Nil(t, sb)
}

// TestNewTemp_Success tests that temporary sandboxes get unique roots.
func TestNewTemp_Success(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()

	sb1, err := NewTemp(parent, &schema.OS{}, &schema.Unix{})
	require.NoError(t, err)
	sb2, err := NewTemp(parent, &schema.OS{}, &schema.Unix{})
	require.NoError(t, err)

	assert.NotEqual(t, sb1.Root(), sb2.Root())
	assert.Equal(t, parent, filepath.Dir(sb1.Root()))
	assert.DirExists(t, sb1.Root())

	require.NoError(t, sb1.Destroy())
	require.NoError(t, sb2.Destroy())
	assert.NoDirExists(t, sb1.Root())
}

// TestAcquire_Success tests that the scratch path is built below the root.
func TestAcquire_Success(t *testing.T) {
	t.Parallel()

	sb := newTestSandbox(t)

	p, err := sb.Acquire(schema.KindFile, "test_file1")
	require.NoError(t, err)

	assert.Equal(t, sb.Root(), p.Parent)
	assert.Equal(t, "test_file1", p.Leaf)
	assert.Equal(t, filepath.Join(sb.Root(), "test_file1"), p.Path())
	assert.True(t, filepath.IsAbs(p.Path()))
	assert.NoFileExists(t, p.Path(), "Acquire should not create the object")
}

// TestAcquire_Fail_ExistsOnDisk tests that occupied paths are refused.
func TestAcquire_Fail_ExistsOnDisk(t *testing.T) {
	t.Parallel()

	sb := newTestSandbox(t)
	require.NoError(t, os.WriteFile(filepath.Join(sb.Root(), "123"), nil, 0o644))

	_, err := sb.Acquire(schema.KindFile, "123")
	require.ErrorIs(t, err, schema.ErrAlreadyExists)
}

// TestAcquire_Fail_Reserved tests that a leaf can only be reserved once.
func TestAcquire_Fail_Reserved(t *testing.T) {
	t.Parallel()

	sb := newTestSandbox(t)

	p, err := sb.Acquire(schema.KindFIFO, "test_fifo")
	require.NoError(t, err)

	_, err = sb.Acquire(schema.KindFIFO, "test_fifo")
	require.ErrorIs(t, err, schema.ErrAlreadyExists)

	require.NoError(t, sb.Release(p))

	_, err = sb.Acquire(schema.KindFIFO, "test_fifo")
	require.NoError(t, err, "Release should free the leaf name")
}

// TestAcquire_Fail_InvalidLeaf tests the leaf name validation.
func TestAcquire_Fail_InvalidLeaf(t *testing.T) {
	t.Parallel()

	sb := newTestSandbox(t)

	for _, leaf := range []string{"", ".", "..", "a/b", "../escape"} {
		t.Run(leaf, func(t *testing.T) {
			t.Parallel()

			_, err := sb.Acquire(schema.KindFile, leaf)
			require.ErrorIs(t, err, ErrInvalidLeaf)
		})
	}
}

// TestRelease_Success_Idempotent tests that releasing twice never errors.
func TestRelease_Success_Idempotent(t *testing.T) {
	t.Parallel()

	sb := newTestSandbox(t)

	p, err := sb.Acquire(schema.KindFile, "-asdads-")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.Path(), []byte("x"), 0o644))

	require.NoError(t, sb.Release(p))
	assert.NoFileExists(t, p.Path())

	require.NoError(t, sb.Release(p), "second Release should tolerate the absent object")
}

// TestRelease_Fail_NonEmptyDirectory tests that directories are only removed
// when empty and that the failure is surfaced.
func TestRelease_Fail_NonEmptyDirectory(t *testing.T) {
	t.Parallel()

	sb := newTestSandbox(t)

	p, err := sb.Acquire(schema.KindDirectory, "666")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(p.Path(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.Path(), "inner"), nil, 0o644))

	err = sb.Release(p)
	require.ErrorIs(t, err, unix.ENOTEMPTY)
	assert.DirExists(t, p.Path())

	require.NoError(t, os.Remove(filepath.Join(p.Path(), "inner")))
	require.NoError(t, sb.Release(p))
	assert.NoDirExists(t, p.Path())
}

// TestRelease_Fail_RemoveError tests that removal errors other than
// not-found are surfaced.
func TestRelease_Fail_RemoveError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sb, err := New(root, &schema.OS{}, &failingUnix{removeErr: unix.EACCES})
	require.NoError(t, err)

	p, err := sb.Acquire(schema.KindFile, "file")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.Path(), nil, 0o644))

	require.ErrorIs(t, sb.Release(p), unix.EACCES)
}

// TestRelease_Success_NotFoundFromRemove tests that a concurrent removal
// between lstat and unlink is tolerated.
func TestRelease_Success_NotFoundFromRemove(t *testing.T) {
	t.Parallel()

	sb, err := New(t.TempDir(), &schema.OS{}, &failingUnix{removeErr: unix.ENOENT})
	require.NoError(t, err)

	p, err := sb.Acquire(schema.KindFile, "file")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.Path(), nil, 0o644))

	require.NoError(t, sb.Release(p))
}

// TestIsolate_Success tests that isolated sandboxes can reuse leaf names.
func TestIsolate_Success(t *testing.T) {
	t.Parallel()

	sb := newTestSandbox(t)

	child1, err := sb.Isolate("scenario-1")
	require.NoError(t, err)
	child2, err := sb.Isolate("scenario-2")
	require.NoError(t, err)

	p1, err := child1.Acquire(schema.KindFile, "file")
	require.NoError(t, err)
	p2, err := child2.Acquire(schema.KindFile, "file")
	require.NoError(t, err)
	assert.NotEqual(t, p1.Path(), p2.Path())

	require.NoError(t, child1.Release(p1))
	require.NoError(t, child2.Release(p2))

	require.NoError(t, child1.Destroy())
	require.NoError(t, child2.Destroy())
	assert.NoDirExists(t, child1.Root())

	_, err = sb.Acquire(schema.KindDirectory, "scenario-1")
	require.NoError(t, err, "Destroy should release the child root in the parent")
}

// TestDestroy_Fail_NonEmpty tests that leftovers are never removed silently.
func TestDestroy_Fail_NonEmpty(t *testing.T) {
	t.Parallel()

	sb := newTestSandbox(t)
	child, err := sb.Isolate("child")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(child.Root(), "leftover"), nil, 0o644))

	require.ErrorIs(t, child.Destroy(), unix.ENOTEMPTY)
	assert.FileExists(t, filepath.Join(child.Root(), "leftover"))
}
