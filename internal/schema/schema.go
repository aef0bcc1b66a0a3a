// Package schema provides the principal schematics for all other packages. It
// defines the primitive kinds under test, the scenario results and the error
// taxonomy, and provides implementations for handling (Unix-based) operating
// system syscalls. The package serves as a foundational layer for all
// filesystem and socket interactions throughout the codebase.
package schema
