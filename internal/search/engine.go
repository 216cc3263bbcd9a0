// Package search provides the caller-facing similarity search engine: extract
// an embedding from a query image and rank stored faces against it with the
// configured k and threshold.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DevJelvehgar/face-similarity-search/internal/config"
	"github.com/DevJelvehgar/face-similarity-search/internal/embedding"
	"github.com/DevJelvehgar/face-similarity-search/internal/models"
	"github.com/DevJelvehgar/face-similarity-search/internal/store"
)

// Engine answers find-similar queries against the embedding store. The k and
// threshold policy lives here, not in the store.
type Engine struct {
	store     *store.Store
	extractor embedding.Extractor
	config    *config.SearchConfig
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(s *store.Store, extractor embedding.Extractor, cfg *config.SearchConfig) *Engine {
	return &Engine{
		store:     s,
		extractor: extractor,
		config:    cfg,
	}
}

// FindSimilar searches the store with the configured threshold. k <= 0 uses
// the configured default; k is capped at the configured maximum.
func (e *Engine) FindSimilar(ctx context.Context, query []float32, k int) (*models.SearchResponse, error) {
	if k <= 0 {
		k = e.config.DefaultK
	}
	if maxK := e.config.MaxKOrDefault(); maxK > 0 && k > maxK {
		k = maxK
	}
	start := time.Now()
	matches, err := e.store.Search(query, k, e.config.ThresholdOrDefault())
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return &models.SearchResponse{
		Matches:   matches,
		Total:     len(matches),
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

// FindSimilarImage extracts an embedding from the image at path and searches
// with it. An image with no detectable face yields an empty response with
// NoFace set, not an error; extraction I/O and decode failures propagate.
func (e *Engine) FindSimilarImage(ctx context.Context, path string, k int) (*models.SearchResponse, error) {
	vec, err := e.extractor.Extract(ctx, path)
	if err != nil {
		if errors.Is(err, embedding.ErrNoFace) {
			return &models.SearchResponse{Matches: []models.Match{}, NoFace: true}, nil
		}
		return nil, fmt.Errorf("embedding extraction failed: %w", err)
	}
	return e.FindSimilar(ctx, vec, k)
}

// StoreCount returns the number of indexed faces.
func (e *Engine) StoreCount() int {
	return e.store.Count()
}

// Dimension returns the store's vector dimension.
func (e *Engine) Dimension() int {
	return e.store.Dimension()
}
