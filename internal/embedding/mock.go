package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
)

// MockExtractor is a deterministic extractor for tests and for running without
// the ONNX runtime. The embedding is derived from a hash of the image bytes,
// so the same file content always gets the same embedding and different
// content gets a (very likely) different one. An empty file is treated as an
// image with no detectable face.
type MockExtractor struct {
	dimensions int
}

// NewMockExtractor returns an extractor producing deterministic embeddings of
// the given dimension.
func NewMockExtractor(dimensions int) *MockExtractor {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &MockExtractor{dimensions: dimensions}
}

// Extract returns a unit-norm embedding derived from the file's content hash.
// Empty files return ErrNoFace.
func (e *MockExtractor) Extract(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoFace
	}
	h := fnv.New64a()
	_, _ = h.Write(data)
	return EmbeddingFromSeed(h.Sum64(), e.dimensions), nil
}

// Dimensions returns the embedding dimension.
func (e *MockExtractor) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockExtractor.
func (e *MockExtractor) Close() error {
	return nil
}

// EmbeddingFromSeed returns a deterministic unit-norm vector of the given
// dimension derived from seed. Exposed for tests that need distinct,
// reproducible embeddings without image files.
func EmbeddingFromSeed(seed uint64, dimensions int) []float32 {
	emb := make([]float32, dimensions)
	for i := 0; i < dimensions; i++ {
		emb[i] = float32(math.Sin(float64(seed%100003)*float64(i+1)) * 0.1)
	}
	var sum float64
	for _, v := range emb {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		inv := float32(1.0 / math.Sqrt(sum))
		for i := range emb {
			emb[i] *= inv
		}
	}
	return emb
}
