package configuration

import "errors"

var (
	// ErrInvalidValue is returned when a configuration value cannot be
	// converted to the type of its key.
	ErrInvalidValue = errors.New("invalid configuration value")

	// ErrOutOfRange is returned when a configuration value is outside of the
	// range allowed for its key.
	ErrOutOfRange = errors.New("configuration value out of range")
)
