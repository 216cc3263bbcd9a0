// Package store provides the face embedding store: an exact (brute-force)
// cosine-similarity index over fixed-dimension vectors with paired metadata,
// persisted as a binary vector artifact plus a JSON metadata artifact.
package store

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/DevJelvehgar/face-similarity-search/internal/models"
)

// Entry is one indexed face: display name, storage path, and the stored vector.
// Vectors are L2-normalized at insertion time, except zero-norm vectors which
// are kept as-is (see Normalize).
type Entry struct {
	Filename string
	FilePath string
	Vector   []float32
}

// Store holds face embeddings and answers exact top-k cosine similarity queries.
// Every stored and queried vector must have the store's dimension. Entries are
// append-only; there is no per-entry delete or update, only Clear.
//
// Search and Count may run concurrently; Add, Clear, and Load take the write
// lock so a reader never observes a partially appended entry.
type Store struct {
	dimension int
	entries   []Entry
	paths     map[string]struct{}
	mu        sync.RWMutex
}

// New creates an empty store for vectors of the given dimension.
func New(dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	return &Store{
		dimension: dimension,
		entries:   make([]Entry, 0),
		paths:     make(map[string]struct{}),
	}, nil
}

// Dimension returns the fixed vector dimension set at construction.
func (s *Store) Dimension() int {
	return s.dimension
}

// Normalize returns a unit-norm copy of v. A zero-norm vector is returned as a
// plain copy: the degenerate case is stored unnormalized rather than rejected,
// matching the insert-and-search contract (scores against such vectors are raw
// dot products, not cosines). The input is never mutated.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// Add normalizes vector and appends an entry. Returns ErrDimensionMismatch if
// the vector's length does not equal the store dimension; on error the store is
// unchanged. Duplicate filenames and paths are allowed (re-indexing appends).
func (s *Store) Add(filename, filePath string, vector []float32) error {
	if len(vector) != s.dimension {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vector), s.dimension)
	}
	normalized := Normalize(vector)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{
		Filename: filename,
		FilePath: filePath,
		Vector:   normalized,
	})
	s.paths[filePath] = struct{}{}
	return nil
}

// Contains reports whether an entry with the given file path is stored. Callers
// deciding whether a file needs (re-)ingestion must consult this, not just
// external bookkeeping: a record that outlived the store's artifacts would
// otherwise suppress re-ingestion of a face the store no longer holds.
func (s *Store) Contains(filePath string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.paths[filePath]
	return ok
}

// Search scores query against every stored vector and returns the matches with
// similarity >= threshold, best first, at most min(k, Count()) of them. Ties
// keep insertion order. The query is normalized with the same rule as Add, so
// the score is cosine similarity for non-degenerate vectors. An empty store
// returns an empty result, not an error.
func (s *Store) Search(query []float32, k int, threshold float64) ([]models.Match, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), s.dimension)
	}
	normalized := Normalize(query)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.entries) == 0 {
		return []models.Match{}, nil
	}

	matches := make([]models.Match, 0, len(s.entries))
	for _, e := range s.entries {
		var dot float64
		for j := 0; j < s.dimension; j++ {
			dot += float64(normalized[j]) * float64(e.Vector[j])
		}
		if dot >= threshold {
			matches = append(matches, models.Match{
				Filename:   e.Filename,
				FilePath:   e.FilePath,
				Similarity: dot,
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries. The dimension is unchanged.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
	clear(s.paths)
}
