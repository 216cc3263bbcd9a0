package benchmark

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/DevJelvehgar/face-similarity-search/internal/embedding"
	"github.com/DevJelvehgar/face-similarity-search/internal/store"
)

func populatedStore(b *testing.B, n, dim int) *store.Store {
	b.Helper()
	s, err := store.New(dim)
	if err != nil {
		b.Fatal(err)
	}
	rng := rand.New(rand.NewSource(42))
	vec := make([]float32, dim)
	for i := 0; i < n; i++ {
		for j := range vec {
			vec[j] = rng.Float32()*2 - 1
		}
		name := fmt.Sprintf("face%06d.jpg", i)
		if err := s.Add(name, "/library/"+name, vec); err != nil {
			b.Fatal(err)
		}
	}
	return s
}

func BenchmarkStoreSearch_1k(b *testing.B) {
	benchmarkStoreSearch(b, 1_000)
}

func BenchmarkStoreSearch_10k(b *testing.B) {
	benchmarkStoreSearch(b, 10_000)
}

func benchmarkStoreSearch(b *testing.B, n int) {
	const dim = 512
	s := populatedStore(b, n, dim)
	query := make([]float32, dim)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Search(query, 10, 0.0)
	}
}

func BenchmarkNormalize(b *testing.B) {
	const dim = 512
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(i%7) - 3
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Normalize(vec)
	}
}

func BenchmarkMockExtractor_Seed(b *testing.B) {
	const dim = 512
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = embedding.EmbeddingFromSeed(uint64(i), dim)
	}
}
