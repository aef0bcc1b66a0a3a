package primitives

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/desertwitch/primcheck/internal/sandbox"
	"github.com/desertwitch/primcheck/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnv(t *testing.T) (*Drivers, *sandbox.Scope) {
	t.Helper()

	sb, err := sandbox.New(t.TempDir(), &schema.OS{}, &schema.Unix{})
	require.NoError(t, err)

	scope := sb.NewScope()
	t.Cleanup(func() {
		assert.NoError(t, scope.Close())
	})

	return NewDrivers(&schema.OS{}, &schema.Unix{}), scope
}

// TestFileDriver_Success tests creation, verification and cleanup of plain
// files for the literal file names.
func TestFileDriver_Success(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"test_file1", "-asdads-", "123"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			drivers, scope := newTestEnv(t)

			p, err := scope.Acquire(schema.KindFile, name)
			require.NoError(t, err)

			prim, err := drivers.File.Create(p)
			require.NoError(t, err)
			require.NoError(t, drivers.File.Verify(prim))

			require.NoError(t, scope.Release(p))
			require.NoError(t, drivers.File.VerifyAbsent(prim))
			require.ErrorIs(t, drivers.File.Verify(prim), schema.ErrVerificationMismatch)
		})
	}
}

// TestFileDriverCreate_Fail_Exists tests that an occupied path is reported as
// already existing.
func TestFileDriverCreate_Fail_Exists(t *testing.T) {
	t.Parallel()

	drivers, scope := newTestEnv(t)

	p, err := scope.Acquire(schema.KindFile, "file")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.Path(), nil, 0o644))

	_, err = drivers.File.Create(p)
	require.ErrorIs(t, err, schema.ErrAlreadyExists)

	_, err = drivers.File.CreateWithContent(p, schema.PayloadString("content"))
	require.ErrorIs(t, err, schema.ErrAlreadyExists)
}

// TestFileDriverCreateWithContent_Success tests the content round-trip.
func TestFileDriverCreateWithContent_Success(t *testing.T) {
	t.Parallel()

	for _, payload := range []string{"input", "1", "pewpew", ""} {
		t.Run("payload_"+payload, func(t *testing.T) {
			t.Parallel()

			drivers, scope := newTestEnv(t)

			p, err := scope.Acquire(schema.KindFile, "file")
			require.NoError(t, err)

			prim, err := drivers.File.CreateWithContent(p, schema.PayloadString(payload))
			require.NoError(t, err)
			require.NoError(t, drivers.File.Verify(prim))
		})
	}
}

// TestFileDriverVerify_Fail_ContentMismatch tests that changed content is
// reported with expected and observed values.
func TestFileDriverVerify_Fail_ContentMismatch(t *testing.T) {
	t.Parallel()

	drivers, scope := newTestEnv(t)

	p, err := scope.Acquire(schema.KindFile, "file")
	require.NoError(t, err)

	prim, err := drivers.File.CreateWithContent(p, schema.PayloadString("content"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.Path(), []byte("tampered"), 0o644))

	err = drivers.File.Verify(prim)
	require.ErrorIs(t, err, schema.ErrVerificationMismatch)

	var mismatch *schema.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []byte("content"), mismatch.Expected)
	assert.Equal(t, []byte("tampered"), mismatch.Observed)
}

// TestFileDriverVerify_Fail_WrongKind tests that a directory is not accepted
// as a regular file.
func TestFileDriverVerify_Fail_WrongKind(t *testing.T) {
	t.Parallel()

	drivers, scope := newTestEnv(t)

	p, err := scope.Acquire(schema.KindDirectory, "dir")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(p.Path(), 0o755))

	err = drivers.File.Verify(&Primitive{Path: p, Kind: schema.KindFile})
	require.ErrorIs(t, err, schema.ErrVerificationMismatch)
}

// TestDirectoryDriver_Success tests creation, verification and removal of
// directories for the literal directory names.
func TestDirectoryDriver_Success(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"test_dir", "another_test_dir", "666"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			drivers, scope := newTestEnv(t)

			p, err := scope.Acquire(schema.KindDirectory, name)
			require.NoError(t, err)

			prim, err := drivers.Directory.Create(p)
			require.NoError(t, err)
			require.NoError(t, drivers.Directory.Verify(prim))

			empty, err := drivers.Directory.IsEmpty(prim)
			require.NoError(t, err)
			assert.True(t, empty)

			require.NoError(t, drivers.Directory.Remove(prim))
			require.NoError(t, drivers.Directory.Absent(p.Path()))
		})
	}
}

// TestDirectoryDriverRemove_Fail_NotEmpty tests that a non-empty directory is
// not removed.
func TestDirectoryDriverRemove_Fail_NotEmpty(t *testing.T) {
	t.Parallel()

	drivers, scope := newTestEnv(t)

	p, err := scope.Acquire(schema.KindDirectory, "test_dir")
	require.NoError(t, err)

	prim, err := drivers.Directory.Create(p)
	require.NoError(t, err)

	inner := filepath.Join(p.Path(), "inner")
	require.NoError(t, os.WriteFile(inner, nil, 0o644))

	require.ErrorIs(t, drivers.Directory.Remove(prim), ErrNotEmpty)
	require.NoError(t, drivers.Directory.Verify(prim))

	require.NoError(t, os.Remove(inner))
	require.NoError(t, drivers.Directory.Remove(prim))
}

// TestFIFODriver_Success tests creation and verification of named pipes.
func TestFIFODriver_Success(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"test_fifo", "another_fifo", "111"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			drivers, scope := newTestEnv(t)

			p, err := scope.Acquire(schema.KindFIFO, name)
			require.NoError(t, err)

			prim, err := drivers.FIFO.Create(p)
			require.NoError(t, err)
			require.NoError(t, drivers.FIFO.Verify(prim))

			require.ErrorIs(t, drivers.File.Verify(&Primitive{Path: p}), schema.ErrVerificationMismatch,
				"a named pipe should not verify as a regular file")
		})
	}
}

// TestDriversForKind tests the driver lookup by primitive kind.
func TestDriversForKind(t *testing.T) {
	t.Parallel()

	drivers := NewDrivers(&schema.OS{}, &schema.Unix{})

	for _, kind := range []schema.Kind{schema.KindFile, schema.KindDirectory, schema.KindFIFO} {
		d, err := drivers.ForKind(kind)
		require.NoError(t, err)
		assert.NotNil(t, d)
	}

	for _, kind := range []schema.Kind{schema.KindHardlink, schema.KindSymlink, schema.KindSocket} {
		_, err := drivers.ForKind(kind)
		require.ErrorIs(t, err, ErrNoPathDriver)
	}
}
