package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DevJelvehgar/face-similarity-search/internal/catalog"
	"github.com/DevJelvehgar/face-similarity-search/internal/embedding"
)

// maxUploadBytes bounds multipart memory buffering for search uploads.
const maxUploadBytes = 32 << 20

// handleSearch accepts a multipart image upload in the "file" field, saves it
// to a temp file, and responds with the similar faces. Optional "k" query
// parameter overrides the configured result count (still capped by max_k).
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err = strconv.Atoi(raw)
		if err != nil || k < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid k parameter")
			return
		}
	}

	tempPath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.logger.Error("saving upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(tempPath)

	s.logger.Debug("search request", zap.String("filename", header.Filename), zap.Int("k", k))
	response, err := s.engine.FindSimilarImage(r.Context(), tempPath, k)
	if err != nil {
		if errors.Is(err, embedding.ErrBadImage) {
			s.respondError(w, http.StatusBadRequest, "could not decode image")
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

// saveUpload writes the upload to a uuid-named file in the configured upload
// directory, keeping the original extension for decoders that sniff by name.
func (s *Server) saveUpload(file io.Reader, originalName string) (string, error) {
	dir := s.config.Storage.UploadDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := uuid.New().String() + filepath.Ext(originalName)
	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create temp upload: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp upload: %w", err)
	}
	return path, nil
}

// handleRebuild clears the store, re-ingests the library directory, and saves
// the artifacts.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("rebuild requested", zap.String("library", s.config.Storage.LibraryDir))
	report, err := s.builder.Rebuild(r.Context(), s.config.Storage.LibraryDir, s.config.Watch.Extensions)
	if err != nil {
		s.logger.Error("rebuild failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.Save(s.config.Storage.IndexPath, s.config.Storage.MetadataPath); err != nil {
		s.logger.Error("artifact save failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"faces":     s.store.Count(),
		"dimension": s.store.Dimension(),
		"config": map[string]interface{}{
			"index_path":    s.config.Storage.IndexPath,
			"metadata_path": s.config.Storage.MetadataPath,
			"library_dir":   s.config.Storage.LibraryDir,
			"default_k":     s.config.Search.DefaultK,
			"threshold":     s.config.Search.ThresholdOrDefault(),
		},
	}
	if s.catalog != nil {
		counts, err := s.catalog.CountByStatus(r.Context())
		if err != nil {
			s.logger.Error("status: catalog counts failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["catalog"] = counts
	}
	diskBytes, err := catalog.DiskUsageBytes(
		s.config.Storage.IndexPath,
		s.config.Storage.MetadataPath,
		s.config.Storage.DatabasePath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
