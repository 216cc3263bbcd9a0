// Package ingest provides the bulk ingestion driver: walk an image directory,
// extract face embeddings, and add them to the store. One bad image never
// aborts a build; failures are counted and recorded in the catalog.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/DevJelvehgar/face-similarity-search/internal/catalog"
	"github.com/DevJelvehgar/face-similarity-search/internal/embedding"
	"github.com/DevJelvehgar/face-similarity-search/internal/models"
	"github.com/DevJelvehgar/face-similarity-search/internal/store"
	"go.uber.org/zap"
)

// Builder ingests images into the embedding store.
type Builder struct {
	store     *store.Store
	extractor embedding.Extractor
	catalog   *catalog.Catalog // optional; when set, enables skip-unchanged and outcome records
	logger    *zap.Logger      // optional; when set, logs debug events
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for debug output (file ingested, extraction failed, etc.).
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithCatalog sets the ingest catalog. Without one, every file is processed
// and no outcomes are recorded.
func WithCatalog(c *catalog.Catalog) BuilderOption {
	return func(b *Builder) { b.catalog = c }
}

// NewBuilder creates a builder with the given dependencies.
func NewBuilder(s *store.Store, extractor embedding.Extractor, opts ...BuilderOption) *Builder {
	b := &Builder{store: s, extractor: extractor}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildFromDirectory walks dir and ingests every file whose extension is in
// exts (case-insensitive; empty exts means all files). Files the catalog
// reports unchanged since their last successful ingest are skipped, provided
// the store still holds them. Extraction failures are counted and the walk
// continues.
func (b *Builder) BuildFromDirectory(ctx context.Context, dir string, exts []string) (*models.BuildReport, error) {
	report := &models.BuildReport{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !extensionAllowed(path, exts) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch outcome := b.ingestOne(ctx, path); outcome {
		case outcomeIndexed:
			report.Indexed++
		case outcomeSkipped:
			report.Skipped++
		case outcomeFailed:
			report.Failed++
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walk %s: %w", dir, err)
	}
	if b.logger != nil {
		b.logger.Info("build complete",
			zap.String("dir", dir),
			zap.Int("indexed", report.Indexed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// Rebuild clears the store and catalog and ingests dir from scratch.
func (b *Builder) Rebuild(ctx context.Context, dir string, exts []string) (*models.BuildReport, error) {
	b.store.Clear()
	if b.catalog != nil {
		if err := b.catalog.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset catalog: %w", err)
		}
	}
	return b.BuildFromDirectory(ctx, dir, exts)
}

// IngestFile ingests a single image, e.g. from a watcher event.
func (b *Builder) IngestFile(ctx context.Context, path string) error {
	switch b.ingestOne(ctx, path) {
	case outcomeFailed:
		return fmt.Errorf("ingest %s failed", path)
	default:
		return nil
	}
}

// MarkRemoved records that a library file disappeared. The store is
// append-only, so the vector stays until the next full rebuild.
func (b *Builder) MarkRemoved(ctx context.Context, path string) error {
	if b.catalog == nil {
		return nil
	}
	return b.catalog.MarkStale(ctx, path)
}

type outcome int

const (
	outcomeIndexed outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (b *Builder) ingestOne(ctx context.Context, path string) outcome {
	filename := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		b.recordFailure(ctx, path, filename, 0, 0, err)
		return outcomeFailed
	}
	size := info.Size()
	modTime := info.ModTime().Unix()

	if b.catalog != nil {
		// Skip only when the store actually holds the entry. A catalog row can
		// outlive the index artifacts (build interrupted before save, artifacts
		// deleted); trusting it alone would silently drop those faces.
		unchanged, err := b.catalog.IsUnchanged(ctx, path, size, modTime)
		if err == nil && unchanged && b.store.Contains(path) {
			if b.logger != nil {
				b.logger.Debug("skipping unchanged image", zap.String("path", path))
			}
			return outcomeSkipped
		}
	}

	vec, err := b.extractor.Extract(ctx, path)
	if err != nil {
		if b.logger != nil {
			if errors.Is(err, embedding.ErrNoFace) {
				b.logger.Debug("no face in image", zap.String("path", path))
			} else {
				b.logger.Warn("extraction failed", zap.String("path", path), zap.Error(err))
			}
		}
		b.recordFailure(ctx, path, filename, size, modTime, err)
		return outcomeFailed
	}

	if err := b.store.Add(filename, path, vec); err != nil {
		if b.logger != nil {
			b.logger.Warn("store add failed", zap.String("path", path), zap.Error(err))
		}
		b.recordFailure(ctx, path, filename, size, modTime, err)
		return outcomeFailed
	}

	if b.catalog != nil {
		_ = b.catalog.Record(ctx, &catalog.Entry{
			Path:        path,
			Filename:    filename,
			Status:      catalog.StatusIndexed,
			SizeBytes:   size,
			ModTimeUnix: modTime,
		})
	}
	if b.logger != nil {
		b.logger.Debug("image indexed", zap.String("path", path))
	}
	return outcomeIndexed
}

func (b *Builder) recordFailure(ctx context.Context, path, filename string, size, modTime int64, cause error) {
	if b.catalog == nil {
		return
	}
	_ = b.catalog.Record(ctx, &catalog.Entry{
		Path:        path,
		Filename:    filename,
		Status:      catalog.StatusFailed,
		Error:       cause.Error(),
		SizeBytes:   size,
		ModTimeUnix: modTime,
	})
}

func extensionAllowed(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range exts {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
