package store

import "errors"

var (
	// ErrDimensionMismatch is returned by Add and Search when a supplied vector's
	// length does not equal the store's dimension. Always a caller bug, never retried.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCorruptState is returned by Load when the persisted artifacts exist but
	// cannot be parsed, or when the vector and metadata artifacts disagree on
	// entry count or dimension after parsing.
	ErrCorruptState = errors.New("corrupt persisted state")
)
