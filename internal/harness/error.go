package harness

import "errors"

var (
	// ErrNotPrepared is an error that occurs when a side of a [Transport] is
	// requested that needs to be prepared first.
	ErrNotPrepared = errors.New("transport is not prepared")

	// ErrUnsupportedMode is an error that occurs when a [Transport] cannot be
	// driven in the requested execution mode.
	ErrUnsupportedMode = errors.New("unsupported mode for transport")

	// ErrUnknownNetwork is an error that occurs when a producer is requested
	// for an unknown endpoint network.
	ErrUnknownNetwork = errors.New("unknown endpoint network")

	// ErrProducerFailed is an error that occurs when a producer process exits
	// unsuccessfully.
	ErrProducerFailed = errors.New("producer process failed")
)
