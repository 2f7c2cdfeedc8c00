// Package errors defines all exported error sentinels for the ngramstore library.
//
// This is the single source of truth for error values. The top-level
// ngramstore package and every storage package import from here, ensuring
// errors.Is checks work across package boundaries.
package errors

import "errors"

// Access errors
var (
	ErrOutOfRange   = errors.New("ngramstore: index out of range")
	ErrInvalidWidth = errors.New("ngramstore: invalid record width (need 0 <= keyWidth <= fullWidth <= 64)")
	ErrCapacity     = errors.New("ngramstore: capacity of chosen backing exceeded")
)

// Hash container errors
var (
	ErrImmutable = errors.New("ngramstore: container is frozen and cannot be modified")
)

// Value container errors
var (
	ErrInvalidOrder   = errors.New("ngramstore: n-gram order out of range")
	ErrNoStorage      = errors.New("ngramstore: no storage allocated for order")
	ErrNoSuffixes     = errors.New("ngramstore: container does not store suffix offsets")
	ErrInvalidRadix   = errors.New("ngramstore: compression radix must be in [1, 64]")
	ErrTruncatedInput = errors.New("ngramstore: compressed stream is truncated")
)

// File errors
var (
	ErrInvalidMagic   = errors.New("ngramstore: invalid magic number")
	ErrInvalidVersion = errors.New("ngramstore: unsupported version")
	ErrValueKind      = errors.New("ngramstore: file holds a different value kind")
	ErrChecksumFailed = errors.New("ngramstore: file checksum verification failed")
	ErrTruncatedFile  = errors.New("ngramstore: file is truncated")
	ErrCorruptedFile  = errors.New("ngramstore: file data is corrupted")
	ErrClosed         = errors.New("ngramstore: values are closed")
)
