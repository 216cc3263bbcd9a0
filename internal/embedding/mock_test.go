package embedding

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMockExtractor_Deterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.jpg", []byte("face bytes"))
	e := NewMockExtractor(8)
	defer e.Close()
	ctx := context.Background()

	first, err := e.Extract(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 8 {
		t.Fatalf("got %d dims, want 8", len(first))
	}
	second, err := e.Extract(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("embedding not deterministic at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestMockExtractor_DistinctContent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.jpg", []byte("first"))
	b := writeFile(t, dir, "b.jpg", []byte("second"))
	e := NewMockExtractor(8)
	ctx := context.Background()

	ea, err := e.Extract(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	eb, err := e.Extract(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range ea {
		if ea[i] != eb[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different content should produce different embeddings")
	}
}

func TestMockExtractor_NoFace(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.jpg", nil)
	e := NewMockExtractor(8)
	_, err := e.Extract(context.Background(), path)
	if !errors.Is(err, ErrNoFace) {
		t.Errorf("expected ErrNoFace, got %v", err)
	}
}

func TestMockExtractor_MissingFile(t *testing.T) {
	e := NewMockExtractor(8)
	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, ErrNoFace) {
		t.Error("missing file is an I/O error, not ErrNoFace")
	}
}

func TestEmbeddingFromSeed_UnitNorm(t *testing.T) {
	emb := EmbeddingFromSeed(42, 16)
	var sum float64
	for _, v := range emb {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1.0) > 1e-6 {
		t.Errorf("norm = %f, want 1.0", math.Sqrt(sum))
	}
}
