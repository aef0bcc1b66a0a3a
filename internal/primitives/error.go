package primitives

import "errors"

var (
	// ErrNoPathDriver is an error that occurs when a driver is requested for a
	// primitive kind that is not created from a single scratch path.
	ErrNoPathDriver = errors.New("no single-path driver for kind")

	// ErrNotEmpty is an error that occurs when a directory that still has
	// entries is attempted to be removed.
	ErrNotEmpty = errors.New("directory not empty")

	// ErrNoContent is an error that occurs when a link primitive is verified
	// that has no known target content.
	ErrNoContent = errors.New("primitive has no known content")

	// ErrNotListening is an error that occurs when a socket primitive without
	// a bound listener is used as a passive endpoint.
	ErrNotListening = errors.New("socket primitive is not listening")
)
