package schema

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Translate annotates an operating system error with the matching sentinel
// of the error taxonomy, keeping the original error inspectable. Errors
// without a matching sentinel are returned unchanged.
func Translate(err error) error {
	var sentinel error

	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EEXIST):
		sentinel = ErrAlreadyExists
	case errors.Is(err, unix.ENOENT):
		sentinel = ErrNotFound
	case errors.Is(err, unix.EADDRINUSE):
		sentinel = ErrAddressInUse
	case errors.Is(err, unix.ECONNREFUSED):
		sentinel = ErrConnectionRefused
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		sentinel = ErrBlocked
	default:
		return err
	}

	if errors.Is(err, sentinel) {
		return err
	}

	return fmt.Errorf("%w: %w", sentinel, err)
}
