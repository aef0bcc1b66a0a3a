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

// TestScopeClose_Success tests that all acquired paths are released.
func TestScopeClose_Success(t *testing.T) {
	t.Parallel()

	sb := newTestSandbox(t)
	scope := sb.NewScope()

	file, err := scope.Acquire(schema.KindFile, "file")
	require.NoError(t, err)
	link, err := scope.Acquire(schema.KindHardlink, "link")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(file.Path(), []byte("content"), 0o644))
	require.NoError(t, os.Link(file.Path(), link.Path()))

	assert.Len(t, scope.Acquired(), 2)

	require.NoError(t, scope.Close())
	assert.NoFileExists(t, file.Path())
	assert.NoFileExists(t, link.Path())
	assert.Empty(t, scope.Acquired())

	require.NoError(t, scope.Close(), "second Close should be a no-op")
}

// recordingUnix is a fake unixProvider that records the unlinked paths.
type recordingUnix struct {
	schema.Unix
	unlinked []string
}

func (r *recordingUnix) Unlink(path string) error {
	r.unlinked = append(r.unlinked, filepath.Base(path))

	return r.Unix.Unlink(path)
}

// TestScopeClose_Success_ReverseOrder tests that paths are released last
// acquired first.
func TestScopeClose_Success_ReverseOrder(t *testing.T) {
	t.Parallel()

	rec := &recordingUnix{}
	sb, err := New(t.TempDir(), &schema.OS{}, rec)
	require.NoError(t, err)
	scope := sb.NewScope()

	for _, leaf := range []string{"file", "link", "another_link"} {
		p, err := scope.Acquire(schema.KindFile, leaf)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(p.Path(), nil, 0o644))
	}

	require.NoError(t, scope.Close())
	assert.Equal(t, []string{"another_link", "link", "file"}, rec.unlinked)
}

// TestScopeClose_Fail_Aggregates tests that all release failures are
// returned while every release is still attempted.
func TestScopeClose_Fail_Aggregates(t *testing.T) {
	t.Parallel()

	sb, err := New(t.TempDir(), &schema.OS{}, &failingUnix{removeErr: unix.EPERM})
	require.NoError(t, err)
	scope := sb.NewScope()

	for _, leaf := range []string{"a", "b"} {
		p, err := scope.Acquire(schema.KindFile, leaf)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(p.Path(), nil, 0o644))
	}

	err = scope.Close()
	require.ErrorIs(t, err, unix.EPERM)
	assert.Contains(t, err.Error(), filepath.Join(sb.Root(), "a"))
	assert.Contains(t, err.Error(), filepath.Join(sb.Root(), "b"))
}

// TestScopeAcquire_Fail_Closed tests that a closed scope refuses new paths.
func TestScopeAcquire_Fail_Closed(t *testing.T) {
	t.Parallel()

	scope := newTestSandbox(t).NewScope()
	require.NoError(t, scope.Close())

	_, err := scope.Acquire(schema.KindFile, "late")
	require.ErrorIs(t, err, ErrScopeClosed)
}

// TestScopeAcquire_Fail_NotRegistered tests that a failed acquisition is never
// registered for release, leaving the occupying object untouched.
func TestScopeAcquire_Fail_NotRegistered(t *testing.T) {
	t.Parallel()

	sb := newTestSandbox(t)
	occupied := filepath.Join(sb.Root(), "occupied")
	require.NoError(t, os.WriteFile(occupied, nil, 0o644))

	scope := sb.NewScope()
	_, err := scope.Acquire(schema.KindFile, "occupied")
	require.ErrorIs(t, err, schema.ErrAlreadyExists)

	require.NoError(t, scope.Close())
	assert.FileExists(t, occupied)
}

// TestScopeRelease_Success tests that an early release removes the path from
// the scope and can be repeated.
func TestScopeRelease_Success(t *testing.T) {
	t.Parallel()

	scope := newTestSandbox(t).NewScope()

	p, err := scope.Acquire(schema.KindFile, "early")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.Path(), nil, 0o644))

	require.NoError(t, scope.Release(p))
	require.NoError(t, scope.Release(p))

	assert.NoFileExists(t, p.Path())
	assert.Empty(t, scope.Acquired())
	require.NoError(t, scope.Close())
}

// TestScopeRelease_Fail_Foreign tests that a scope refuses to release a path
// acquired through a different scope and leaves the object in place.
func TestScopeRelease_Fail_Foreign(t *testing.T) {
	t.Parallel()

	sb := newTestSandbox(t)
	owner := sb.NewScope()
	other := sb.NewScope()

	p, err := owner.Acquire(schema.KindFile, "owned")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.Path(), []byte("data"), 0o644))

	err = other.Release(p)
	require.ErrorIs(t, err, ErrNotOwned)

	assert.FileExists(t, p.Path())
	assert.Equal(t, []ScratchPath{p}, owner.Acquired())

	_, err = sb.Acquire(schema.KindFile, "owned")
	require.ErrorIs(t, err, schema.ErrAlreadyExists)

	require.NoError(t, other.Close())
	assert.FileExists(t, p.Path())

	require.NoError(t, owner.Close())
	assert.NoFileExists(t, p.Path())
}
