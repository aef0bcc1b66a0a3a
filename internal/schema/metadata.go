package schema

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Metadata is the subset of an [unix.Stat_t] that the drivers verify against.
// It always describes the directory entry itself, never a symbolic link's
// target.
type Metadata struct {
	Inode     uint64
	Nlink     uint64
	Perms     uint32
	Size      uint64
	IsDir     bool
	IsRegular bool
	IsFIFO    bool
	IsSymlink bool
	IsSocket  bool
}

// MetadataFromStat converts a [unix.Stat_t] into a [Metadata].
func MetadataFromStat(stat *unix.Stat_t) *Metadata {
	format := stat.Mode & unix.S_IFMT

	return &Metadata{
		Inode:     stat.Ino,
		Nlink:     uint64(stat.Nlink), //nolint:unconvert
		Perms:     stat.Mode & 0o7777, //nolint:mnd
		Size:      handleSize(stat.Size),
		IsDir:     format == unix.S_IFDIR,
		IsRegular: format == unix.S_IFREG,
		IsFIFO:    format == unix.S_IFIFO,
		IsSymlink: format == unix.S_IFLNK,
		IsSocket:  format == unix.S_IFSOCK,
	}
}

// Kind returns the [Kind] that matches the file type of the [Metadata].
func (m *Metadata) Kind() Kind {
	switch {
	case m.IsDir:
		return KindDirectory
	case m.IsFIFO:
		return KindFIFO
	case m.IsSymlink:
		return KindSymlink
	case m.IsSocket:
		return KindSocket
	case m.IsRegular && m.Nlink > 1:
		return KindHardlink
	default:
		return KindFile
	}
}

func (m *Metadata) String() string {
	return fmt.Sprintf("%s (inode=%d, nlink=%d, perms=%#o, size=%d)",
		m.Kind(), m.Inode, m.Nlink, m.Perms, m.Size)
}

func handleSize(size int64) uint64 {
	if size < 0 {
		return 0
	}

	return uint64(size)
}
