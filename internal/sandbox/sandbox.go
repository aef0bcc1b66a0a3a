// Package sandbox allocates scratch paths for scenarios and guarantees their
// cleanup. A [Sandbox] owns an explicit root directory; all scratch paths are
// direct children of that root. A [Scope] ties every path it acquired to a
// single release point, so that no object outlives its scenario.
package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/desertwitch/primcheck/internal/schema"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

const (
	rootDirPerms = 0o755
	rootPrefix   = "primcheck-"
)

type osProvider interface {
	MkdirAll(path string, perm os.FileMode) error
}

type unixProvider interface {
	Lstat(path string, stat *unix.Stat_t) error
	Rmdir(path string) error
	Unlink(path string) error
}

// ScratchPath is a disposable, uniquely named location for one scenario.
type ScratchPath struct {
	Parent string
	Leaf   string
	Kind   schema.Kind
}

// Path returns the absolute path of the [ScratchPath].
func (p ScratchPath) Path() string {
	return filepath.Join(p.Parent, p.Leaf)
}

func (p ScratchPath) String() string {
	return p.Path()
}

// Sandbox is the principal implementation of the scratch path allocator.
type Sandbox struct {
	sync.Mutex
	root        string
	osHandler   osProvider
	unixHandler unixProvider
	reserved    map[string]schema.Kind

	parent *Sandbox
	self   ScratchPath
}

// New returns a pointer to a new [Sandbox] rooted at the given directory,
// which is created if it does not yet exist.
func New(root string, osHandler osProvider, unixHandler unixProvider) (*Sandbox, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("(sandbox-new) %w: %s", ErrRootRelative, root)
	}

	if err := osHandler.MkdirAll(root, rootDirPerms); err != nil {
		return nil, fmt.Errorf("(sandbox-new) failed to mkdir root: %w", err)
	}

	return &Sandbox{
		root:        filepath.Clean(root),
		osHandler:   osHandler,
		unixHandler: unixHandler,
		reserved:    make(map[string]schema.Kind),
	}, nil
}

// NewTemp returns a pointer to a new [Sandbox] rooted at a uniquely named
// directory below parent. An empty parent selects [os.TempDir].
func NewTemp(parent string, osHandler osProvider, unixHandler unixProvider) (*Sandbox, error) {
	if parent == "" {
		parent = os.TempDir()
	}

	return New(filepath.Join(parent, rootPrefix+uuid.NewString()), osHandler, unixHandler)
}

// Root returns the directory all scratch paths of the [Sandbox] live in.
func (s *Sandbox) Root() string {
	return s.root
}

// Self returns the [ScratchPath] of an isolated [Sandbox] within its parent,
// the zero value for a top-level [Sandbox].
func (s *Sandbox) Self() ScratchPath {
	return s.self
}

// Acquire reserves a new [ScratchPath] for the given leaf name. The path must
// neither exist on disk nor be reserved by another scenario, otherwise
// [schema.ErrAlreadyExists] is returned. The underlying object is not created.
func (s *Sandbox) Acquire(kind schema.Kind, leaf string) (ScratchPath, error) {
	if err := validateLeaf(leaf); err != nil {
		return ScratchPath{}, fmt.Errorf("(sandbox-acquire) %w", err)
	}

	s.Lock()
	defer s.Unlock()

	if _, reserved := s.reserved[leaf]; reserved {
		return ScratchPath{}, fmt.Errorf("(sandbox-acquire) %w: %s is reserved", schema.ErrAlreadyExists, leaf)
	}

	p := ScratchPath{Parent: s.root, Leaf: leaf, Kind: kind}

	var stat unix.Stat_t
	if err := s.unixHandler.Lstat(p.Path(), &stat); err == nil {
		return ScratchPath{}, fmt.Errorf("(sandbox-acquire) %w: %s", schema.ErrAlreadyExists, p)
	} else if !errors.Is(err, unix.ENOENT) {
		return ScratchPath{}, fmt.Errorf("(sandbox-acquire) failed to lstat: %w", err)
	}

	s.reserved[leaf] = kind

	return p, nil
}

// Release removes the object at the [ScratchPath] and frees its leaf name.
// Directories are removed only when empty. An already absent object is not
// an error, so that Release can safely be called more than once.
func (s *Sandbox) Release(p ScratchPath) error {
	err := s.remove(p)

	s.Lock()
	delete(s.reserved, p.Leaf)
	s.Unlock()

	if err != nil {
		return fmt.Errorf("(sandbox-release) %w", err)
	}

	return nil
}

func (s *Sandbox) remove(p ScratchPath) error {
	path := p.Path()

	var stat unix.Stat_t
	if err := s.unixHandler.Lstat(path, &stat); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil
		}

		return fmt.Errorf("failed to lstat %s: %w", path, err)
	}

	var err error
	if schema.MetadataFromStat(&stat).IsDir {
		err = s.unixHandler.Rmdir(path)
	} else {
		err = s.unixHandler.Unlink(path)
	}

	if err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	return nil
}

// Isolate returns a child [Sandbox] rooted at a new directory below the root
// of s, for scenarios that run concurrently with the same leaf names.
func (s *Sandbox) Isolate(name string) (*Sandbox, error) {
	p, err := s.Acquire(schema.KindDirectory, name)
	if err != nil {
		return nil, fmt.Errorf("(sandbox-isolate) %w", err)
	}

	child, err := New(p.Path(), s.osHandler, s.unixHandler)
	if err != nil {
		s.Release(p) //nolint:errcheck

		return nil, fmt.Errorf("(sandbox-isolate) %w", err)
	}
	child.parent = s
	child.self = p

	return child, nil
}

// Destroy removes the (empty) root directory of the [Sandbox]. Any objects
// left behind by scenarios cause an error rather than being removed.
func (s *Sandbox) Destroy() error {
	s.Lock()
	defer s.Unlock()

	if len(s.reserved) > 0 {
		leaves := make([]string, 0, len(s.reserved))
		for leaf := range s.reserved {
			leaves = append(leaves, leaf)
		}

		slog.Warn("Sandbox destroyed with reserved scratch paths",
			"root", s.root,
			"leaves", leaves,
		)
	}

	if s.parent != nil {
		if err := s.parent.Release(s.self); err != nil {
			return fmt.Errorf("(sandbox-destroy) %w", err)
		}

		return nil
	}

	if err := s.unixHandler.Rmdir(s.root); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("(sandbox-destroy) failed to rmdir root: %w", err)
	}

	return nil
}

func validateLeaf(leaf string) error {
	if leaf == "" || leaf == "." || leaf == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidLeaf, leaf)
	}

	if strings.ContainsRune(leaf, filepath.Separator) || strings.ContainsRune(leaf, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidLeaf, leaf)
	}

	return nil
}
