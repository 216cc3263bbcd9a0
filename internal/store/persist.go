package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// metadataFile is the JSON shape of the metadata artifact. The filename and
// file path lists are parallel arrays in the same order as the vectors in the
// binary artifact.
type metadataFile struct {
	Filenames []string `json:"filenames"`
	FilePaths []string `json:"file_paths"`
	Dimension int      `json:"dimension"`
}

// Save writes the vector artifact to indexPath and the metadata artifact to
// metadataPath, overwriting existing files. Vector artifact layout: dimension
// (uint32), count (uint32), then count vectors of dimension float32 each, all
// little-endian. Parent directories are created if needed.
//
// A Load of the written artifacts with no intervening mutation reconstructs an
// identical store.
func (s *Store) Save(indexPath, metadataPath string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range []string{indexPath, metadataPath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create artifact dir: %w", err)
			}
		}
	}

	f, err := os.Create(indexPath)
	if err != nil {
		return fmt.Errorf("create vector artifact: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(s.dimension)); err != nil {
		return fmt.Errorf("write dimension: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(s.entries))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, e := range s.entries {
		if _, err := f.Write(float32SliceToBytes(e.Vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}

	meta := metadataFile{
		Filenames: make([]string, len(s.entries)),
		FilePaths: make([]string, len(s.entries)),
		Dimension: s.dimension,
	}
	for i, e := range s.entries {
		meta.Filenames[i] = e.Filename
		meta.FilePaths[i] = e.FilePath
	}
	data, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(metadataPath, data, 0644); err != nil {
		return fmt.Errorf("write metadata artifact: %w", err)
	}
	return nil
}

// Load replaces the store's contents with the persisted state at indexPath and
// metadataPath. If either artifact is missing it returns (false, nil) and the
// store is untouched; this is the normal first-run condition. Artifacts that
// exist but cannot be parsed, or whose vector and metadata counts or dimensions
// disagree, return ErrCorruptState. On any error the in-memory state is left as
// it was: parsing completes into scratch state before the swap.
func (s *Store) Load(indexPath, metadataPath string) (bool, error) {
	for _, p := range []string{indexPath, metadataPath} {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, fmt.Errorf("stat artifact: %w", err)
		}
	}

	dimension, vectors, err := readVectorArtifact(indexPath)
	if err != nil {
		return false, err
	}

	metaData, err := os.ReadFile(metadataPath)
	if err != nil {
		return false, fmt.Errorf("read metadata artifact: %w", err)
	}
	var meta metadataFile
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return false, fmt.Errorf("%w: parse metadata artifact: %v", ErrCorruptState, err)
	}
	if len(meta.Filenames) != len(meta.FilePaths) || len(meta.Filenames) != len(vectors) {
		return false, fmt.Errorf("%w: %d filenames, %d file paths, %d vectors",
			ErrCorruptState, len(meta.Filenames), len(meta.FilePaths), len(vectors))
	}
	if meta.Dimension != dimension {
		return false, fmt.Errorf("%w: metadata dimension %d, vector artifact dimension %d",
			ErrCorruptState, meta.Dimension, dimension)
	}

	entries := make([]Entry, len(vectors))
	paths := make(map[string]struct{}, len(vectors))
	for i := range vectors {
		entries[i] = Entry{
			Filename: meta.Filenames[i],
			FilePath: meta.FilePaths[i],
			Vector:   vectors[i],
		}
		paths[meta.FilePaths[i]] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.entries = entries
	s.paths = paths
	return true, nil
}

func readVectorArtifact(path string) (int, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("open vector artifact: %w", err)
	}
	defer f.Close()

	var dim, count uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return 0, nil, fmt.Errorf("%w: read dimension: %v", ErrCorruptState, err)
	}
	if dim == 0 {
		return 0, nil, fmt.Errorf("%w: zero dimension in vector artifact", ErrCorruptState)
	}
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return 0, nil, fmt.Errorf("%w: read count: %v", ErrCorruptState, err)
	}

	vectors := make([][]float32, 0, count)
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return 0, nil, fmt.Errorf("%w: read vector %d: %v", ErrCorruptState, i, err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	return int(dim), vectors, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
