// Package embedding provides face embedding extraction from images, via ONNX
// Runtime when available, with an LRU cache and a deterministic mock for tests.
package embedding

import (
	"context"
	"errors"
)

// ErrNoFace is returned by Extract when the image is readable but contains no
// usable face. Callers distinguish it from I/O and decode errors with
// errors.Is; ingestion counts it as a per-image failure and continues.
var ErrNoFace = errors.New("no face detected")

// ErrBadImage is returned by Extract when the file at path is not a decodable
// image. It marks the input itself as invalid, as opposed to I/O or inference
// failures; the HTTP layer maps it to a client error.
var ErrBadImage = errors.New("not a decodable image")

// Extractor produces a fixed-dimension face embedding from an image file.
type Extractor interface {
	// Extract returns the embedding for the face in the image at path. The
	// returned vector has Dimensions() elements and is not normalized; the
	// store normalizes at insertion.
	Extract(ctx context.Context, path string) ([]float32, error)
	Dimensions() int
	Close() error
}
