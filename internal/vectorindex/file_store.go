package vectorindex

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	currentFile    = "CURRENT"
	vectorsFile    = "vectors.bin"
	metadataFile   = "metadata.json"
	generationPref = "gen-"
)

// fileMetadata is the JSON sidecar stored next to vectors.bin.
type fileMetadata struct {
	Generation string    `json:"generation"`
	Model      string    `json:"model"`
	Dimension  int       `json:"dimension"`
	Count      int       `json:"count"`
	UpdatedAt  time.Time `json:"updated_at"`
	Records    []Record  `json:"records"`
}

// FileStore persists snapshots under a directory. Each save writes a new
// generation directory and then switches the CURRENT pointer with a rename,
// so a crash mid-save leaves the previous generation current.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Load reads the current generation. It returns (nil, nil) when the store
// has never been written.
func (s *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	pointer, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index pointer: %w", err)
	}
	gen := strings.TrimSpace(string(pointer))
	if !strings.HasPrefix(gen, generationPref) || strings.ContainsAny(gen, `/\`) {
		return nil, fmt.Errorf("invalid index pointer %q", gen)
	}
	genDir := filepath.Join(s.dir, gen)

	data, err := os.ReadFile(filepath.Join(genDir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}
	var meta fileMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode index metadata: %w", err)
	}
	if meta.Count != len(meta.Records) {
		return nil, fmt.Errorf("index metadata lists %d records, header says %d", len(meta.Records), meta.Count)
	}

	vectors, err := readVectors(filepath.Join(genDir, vectorsFile), meta.Count, meta.Dimension)
	if err != nil {
		return nil, err
	}
	for i := range meta.Records {
		meta.Records[i].Vector = vectors[i]
	}

	return &Snapshot{
		Generation: meta.Generation,
		Model:      meta.Model,
		Dimension:  meta.Dimension,
		UpdatedAt:  meta.UpdatedAt,
		Records:    meta.Records,
	}, nil
}

// Save writes snap as a new generation and makes it current.
func (s *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	id := snap.Generation
	if id == "" {
		id = uuid.NewString()
	}
	gen := generationPref + id
	genDir := filepath.Join(s.dir, gen)
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		return fmt.Errorf("failed to create generation directory: %w", err)
	}

	if err := s.writeGeneration(genDir, snap); err != nil {
		os.RemoveAll(genDir)
		return err
	}
	if err := writeFileAtomic(filepath.Join(s.dir, currentFile), []byte(gen+"\n")); err != nil {
		os.RemoveAll(genDir)
		return fmt.Errorf("failed to update index pointer: %w", err)
	}

	s.removeStale(gen)
	return nil
}

func (s *FileStore) writeGeneration(genDir string, snap *Snapshot) error {
	meta := fileMetadata{
		Generation: snap.Generation,
		Model:      snap.Model,
		Dimension:  snap.Dimension,
		Count:      len(snap.Records),
		UpdatedAt:  snap.UpdatedAt,
		Records:    snap.Records,
	}
	if meta.Records == nil {
		meta.Records = []Record{}
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(genDir, metadataFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}
	if err := writeVectors(filepath.Join(genDir, vectorsFile), snap); err != nil {
		return err
	}
	return nil
}

func (s *FileStore) removeStale(keep string) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == keep || !strings.HasPrefix(e.Name(), generationPref) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			log.Printf("vectorindex: failed to remove stale generation %s: %v", e.Name(), err)
		}
	}
}

// vectors.bin layout: uint32 count, uint32 dimension, then count*dimension
// float32 values, all little-endian.
func writeVectors(path string, snap *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create vectors file: %w", err)
	}
	w := bufio.NewWriter(f)

	header := [2]uint32{uint32(len(snap.Records)), uint32(snap.Dimension)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write vectors header: %w", err)
	}
	for _, r := range snap.Records {
		if err := binary.Write(w, binary.LittleEndian, r.Vector); err != nil {
			f.Close()
			return fmt.Errorf("failed to write vectors: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write vectors: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync vectors: %w", err)
	}
	return f.Close()
}

// vectorsHeaderSize is the byte length of the count and dimension header.
const vectorsHeaderSize = 8

// readVectors reads vectors.bin and checks its header against the counts
// recorded in metadata.json and against the file size before allocating.
func readVectors(path string, wantCount, wantDim int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vectors file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat vectors file: %w", err)
	}
	r := bufio.NewReader(f)

	var header [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read vectors header: %w", err)
	}
	count, dim := int64(header[0]), int64(header[1])
	if count != int64(wantCount) || dim != int64(wantDim) {
		return nil, fmt.Errorf("vectors header says %dx%d, metadata says %dx%d", count, dim, wantCount, wantDim)
	}
	if want := vectorsHeaderSize + count*dim*4; info.Size() != want {
		return nil, fmt.Errorf("vectors file is %d bytes, expected %d", info.Size(), want)
	}

	out := make([][]float32, count)
	for i := range out {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("failed to read vector %d: %w", i, err)
		}
		for _, x := range vec {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return nil, fmt.Errorf("vector %d contains a non-finite value", i)
			}
		}
		out[i] = vec
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("vectors file has trailing data")
	}
	return out, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
