package sandbox

import "errors"

var (
	// ErrRootRelative is an error that occurs when a [Sandbox] root is given
	// as a relative path.
	ErrRootRelative = errors.New("sandbox root is relative")

	// ErrInvalidLeaf is an error that occurs when a leaf name is empty, a
	// relative path element or contains a path separator.
	ErrInvalidLeaf = errors.New("invalid leaf name")

	// ErrScopeClosed is an error that occurs when a path is acquired through
	// an already closed [Scope].
	ErrScopeClosed = errors.New("scope is closed")

	// ErrNotOwned is an error that occurs when a [Scope] is asked to release
	// a path it did not acquire.
	ErrNotOwned = errors.New("path not owned by scope")
)
