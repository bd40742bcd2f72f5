package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/companion/internal/storage"
)

const snapshotContentType = "application/json"

// ObjectStore is the subset of storage.S3Client used by S3Store.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// s3Snapshot is the single-object encoding of a snapshot. Vectors travel
// inline since an object write is already atomic.
type s3Snapshot struct {
	Generation string     `json:"generation"`
	Model      string     `json:"model"`
	Dimension  int        `json:"dimension"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Records    []s3Record `json:"records"`
}

type s3Record struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Vector   []float32         `json:"vector"`
}

// S3Store keeps the whole index as one object in an S3-compatible bucket.
type S3Store struct {
	objects ObjectStore
	key     string
}

func NewS3Store(objects ObjectStore, key string) *S3Store {
	return &S3Store{objects: objects, key: key}
}

func (s *S3Store) Load(ctx context.Context) (*Snapshot, error) {
	data, err := s.objects.GetObject(ctx, s.key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var enc s3Snapshot
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("failed to decode index object: %w", err)
	}
	snap := &Snapshot{
		Generation: enc.Generation,
		Model:      enc.Model,
		Dimension:  enc.Dimension,
		UpdatedAt:  enc.UpdatedAt,
		Records:    make([]Record, len(enc.Records)),
	}
	for i, r := range enc.Records {
		snap.Records[i] = Record{Vector: r.Vector, Text: r.Text, Metadata: r.Metadata}
	}
	return snap, nil
}

func (s *S3Store) Save(ctx context.Context, snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	enc := s3Snapshot{
		Generation: snap.Generation,
		Model:      snap.Model,
		Dimension:  snap.Dimension,
		UpdatedAt:  snap.UpdatedAt,
		Records:    make([]s3Record, len(snap.Records)),
	}
	for i, r := range snap.Records {
		enc.Records[i] = s3Record{Text: r.Text, Metadata: r.Metadata, Vector: r.Vector}
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return fmt.Errorf("failed to encode index object: %w", err)
	}
	return s.objects.PutObject(ctx, s.key, data, snapshotContentType)
}
