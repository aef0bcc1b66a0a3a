package schema

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

var (
	// ErrAlreadyExists is an error that occurs when a scratch path is
	// requested that is already occupied, either on disk or by a concurrently
	// running scenario.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is an error that occurs when an object that is expected to
	// exist is absent. Cleanup of an absent object swallows it.
	ErrNotFound = errors.New("not found")

	// ErrAddressInUse is an error that occurs when a passive endpoint cannot be
	// bound because the address is already bound by someone else.
	ErrAddressInUse = errors.New("address in use")

	// ErrConnectionRefused is an error that occurs when an active endpoint
	// cannot connect because no passive endpoint is listening.
	ErrConnectionRefused = errors.New("connection refused")

	// ErrVerificationMismatch is an error that occurs when an observed content
	// or existence differs from what was expected.
	ErrVerificationMismatch = errors.New("verification mismatch")

	// ErrBlocked is an error that occurs when a blocking operation stalls past
	// the configured deadline.
	ErrBlocked = errors.New("blocked past deadline")

	// ErrSetup is an error that occurs when the preconditions of a scenario
	// could not be established.
	ErrSetup = errors.New("setup failed")

	// ErrUnknownKind is an error that occurs when a primitive kind name cannot
	// be resolved.
	ErrUnknownKind = errors.New("unknown primitive kind")
)

// MismatchError is an error carrying the expected and the observed value of a
// failed verification. It matches [ErrVerificationMismatch] with [errors.Is].
type MismatchError struct {
	What     string
	Expected any
	Observed any
}

func (e *MismatchError) Error() string {
	expBytes, expOk := e.Expected.([]byte)
	obsBytes, obsOk := e.Observed.([]byte)

	if expOk && obsOk {
		return fmt.Sprintf("%s: %s: expected %q (%s, blake3 %.16s), observed %q (%s, blake3 %.16s)",
			ErrVerificationMismatch, e.What,
			expBytes, humanize.Bytes(uint64(len(expBytes))), Digest(expBytes),
			obsBytes, humanize.Bytes(uint64(len(obsBytes))), Digest(obsBytes),
		)
	}

	return fmt.Sprintf("%s: %s: expected %v, observed %v", ErrVerificationMismatch, e.What, e.Expected, e.Observed)
}

// Is allows [errors.Is] to match a [*MismatchError] with
// [ErrVerificationMismatch].
func (e *MismatchError) Is(target error) bool {
	return target == ErrVerificationMismatch //nolint:errorlint
}

// Mismatch returns a [*MismatchError] for the given expected and observed
// values.
func Mismatch(what string, expected, observed any) error {
	return &MismatchError{What: what, Expected: expected, Observed: observed}
}

// Setup wraps an error as [ErrSetup], keeping the original error inspectable
// with [errors.Is] and [errors.As].
func Setup(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrSetup, err)
}
