package schema

import (
	"os"

	"golang.org/x/sys/unix"
)

// OS is an implementation wrapping operating system functions.
type OS struct{}

// OpenFile wraps around [os.OpenFile].
func (*OS) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

// ReadFile wraps around [os.ReadFile].
func (*OS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Readlink wraps around [os.Readlink].
func (*OS) Readlink(name string) (string, error) {
	return os.Readlink(name)
}

// ReadDir wraps around [os.ReadDir].
func (*OS) ReadDir(name string) ([]os.DirEntry, error) {
	return os.ReadDir(name)
}

// MkdirAll wraps around [os.MkdirAll].
func (*OS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Unix is an implementation wrapping Unix operating system functions.
type Unix struct{}

// Lstat wraps around [unix.Lstat].
func (*Unix) Lstat(path string, stat *unix.Stat_t) error {
	return unix.Lstat(path, stat)
}

// Mknod wraps around [unix.Mknod].
func (*Unix) Mknod(path string, mode uint32, dev int) error {
	return unix.Mknod(path, mode, dev)
}

// Mkfifo wraps around [unix.Mkfifo].
func (*Unix) Mkfifo(path string, mode uint32) error {
	return unix.Mkfifo(path, mode)
}

// Mkdir wraps around [unix.Mkdir].
func (*Unix) Mkdir(path string, mode uint32) error {
	return unix.Mkdir(path, mode)
}

// Rmdir wraps around [unix.Rmdir].
func (*Unix) Rmdir(path string) error {
	return unix.Rmdir(path)
}

// Unlink wraps around [unix.Unlink].
func (*Unix) Unlink(path string) error {
	return unix.Unlink(path)
}

// Link wraps around [unix.Link].
func (*Unix) Link(oldpath, newpath string) error {
	return unix.Link(oldpath, newpath)
}

// Symlink wraps around [unix.Symlink].
func (*Unix) Symlink(oldpath, newpath string) error {
	return unix.Symlink(oldpath, newpath)
}
