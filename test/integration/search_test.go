// Package integration exercises the full pipeline (ingest, persistence, search)
// against real files on disk.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DevJelvehgar/face-similarity-search/internal/catalog"
	"github.com/DevJelvehgar/face-similarity-search/internal/config"
	"github.com/DevJelvehgar/face-similarity-search/internal/embedding"
	"github.com/DevJelvehgar/face-similarity-search/internal/ingest"
	"github.com/DevJelvehgar/face-similarity-search/internal/search"
	"github.com/DevJelvehgar/face-similarity-search/internal/store"
)

const testDimensions = 32

func searchConfig(defaultK, maxK int, threshold float64) *config.SearchConfig {
	return &config.SearchConfig{DefaultK: defaultK, MaxK: &maxK, Threshold: &threshold}
}

func writeImage(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIntegration_BuildAndSearch(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "library")
	if err := os.MkdirAll(libDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeImage(t, libDir, "alice.jpg", []byte("alice portrait bytes"))
	writeImage(t, libDir, "bob.jpg", []byte("bob portrait bytes"))
	writeImage(t, libDir, "carol.png", []byte("carol portrait bytes"))
	writeImage(t, libDir, "notes.txt", []byte("not an image"))

	searchCfg := searchConfig(10, 100, 0.0)

	s, err := store.New(testDimensions)
	if err != nil {
		t.Fatal(err)
	}
	extractor := embedding.NewMockExtractor(testDimensions)
	defer extractor.Close()

	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()

	builder := ingest.NewBuilder(s, extractor, ingest.WithCatalog(cat))
	ctx := context.Background()

	report, err := builder.BuildFromDirectory(ctx, libDir, []string{".jpg", ".png"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Indexed != 3 {
		t.Errorf("indexed = %d, want 3", report.Indexed)
	}
	if s.Count() != 3 {
		t.Errorf("store count = %d, want 3", s.Count())
	}

	// A query with the same bytes as an indexed file embeds to the same
	// vector, so it must come back as the top match with similarity ~1.
	queryPath := writeImage(t, dir, "query.jpg", []byte("alice portrait bytes"))
	engine := search.NewEngine(s, extractor, searchCfg)
	resp, err := engine.FindSimilarImage(ctx, queryPath, 3)
	if err != nil {
		t.Fatal(err)
	}
	if resp.NoFace {
		t.Fatal("unexpected no-face response")
	}
	if resp.Total < 1 {
		t.Fatalf("expected at least 1 match, got %d", resp.Total)
	}
	top := resp.Matches[0]
	if top.Filename != "alice.jpg" {
		t.Errorf("top match = %q, want alice.jpg", top.Filename)
	}
	if top.Similarity < 0.999 {
		t.Errorf("top similarity = %f, want ~1.0", top.Similarity)
	}
}

func TestIntegration_PersistenceAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "library")
	if err := os.MkdirAll(libDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeImage(t, libDir, "alice.jpg", []byte("alice portrait bytes"))
	writeImage(t, libDir, "bob.jpg", []byte("bob portrait bytes"))

	indexPath := filepath.Join(dir, "faces.idx")
	metadataPath := filepath.Join(dir, "faces.meta.json")

	extractor := embedding.NewMockExtractor(testDimensions)
	defer extractor.Close()

	s1, err := store.New(testDimensions)
	if err != nil {
		t.Fatal(err)
	}
	builder := ingest.NewBuilder(s1, extractor)
	ctx := context.Background()
	if _, err := builder.BuildFromDirectory(ctx, libDir, []string{".jpg"}); err != nil {
		t.Fatal(err)
	}
	if err := s1.Save(indexPath, metadataPath); err != nil {
		t.Fatal(err)
	}

	// Simulate a restart: a fresh store loads the artifacts and serves the
	// same results as the original.
	s2, err := store.New(testDimensions)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := s2.Load(indexPath, metadataPath)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded {
		t.Fatal("expected artifacts to load")
	}
	if s2.Count() != s1.Count() {
		t.Errorf("count after reload = %d, want %d", s2.Count(), s1.Count())
	}

	queryPath := writeImage(t, dir, "query.jpg", []byte("bob portrait bytes"))
	engine := search.NewEngine(s2, extractor, searchConfig(10, 100, 0.0))
	resp, err := engine.FindSimilarImage(ctx, queryPath, 2)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total < 1 || resp.Matches[0].Filename != "bob.jpg" {
		t.Fatalf("expected bob.jpg as top match, got %+v", resp.Matches)
	}
}

func TestIntegration_IncrementalBuildSkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "library")
	if err := os.MkdirAll(libDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeImage(t, libDir, "alice.jpg", []byte("alice portrait bytes"))

	s, err := store.New(testDimensions)
	if err != nil {
		t.Fatal(err)
	}
	extractor := embedding.NewMockExtractor(testDimensions)
	defer extractor.Close()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()

	builder := ingest.NewBuilder(s, extractor, ingest.WithCatalog(cat))
	ctx := context.Background()

	first, err := builder.BuildFromDirectory(ctx, libDir, []string{".jpg"})
	if err != nil {
		t.Fatal(err)
	}
	if first.Indexed != 1 {
		t.Fatalf("first build indexed = %d, want 1", first.Indexed)
	}

	second, err := builder.BuildFromDirectory(ctx, libDir, []string{".jpg"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Indexed != 0 {
		t.Errorf("second build indexed = %d, want 0", second.Indexed)
	}
	if second.Skipped != 1 {
		t.Errorf("second build skipped = %d, want 1", second.Skipped)
	}
	if s.Count() != 1 {
		t.Errorf("store count = %d, want 1 (no duplicate entries)", s.Count())
	}
}
