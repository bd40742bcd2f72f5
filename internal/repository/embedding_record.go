package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/companion/internal/vectorindex"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingRecordRepository persists index snapshots in Postgres using
// pgvector columns.
type EmbeddingRecordRepository struct {
	db dbtx
}

func NewEmbeddingRecordRepository(pool *pgxpool.Pool) *EmbeddingRecordRepository {
	return &EmbeddingRecordRepository{db: pool}
}

func NewEmbeddingRecordRepositoryWithTx(tx pgx.Tx) *EmbeddingRecordRepository {
	return &EmbeddingRecordRepository{db: tx}
}

// ReplaceAll deletes the stored snapshot and writes snap in its place. Callers
// run it inside a transaction so readers never see a mix of generations.
func (r *EmbeddingRecordRepository) ReplaceAll(ctx context.Context, snap *vectorindex.Snapshot) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM embedding_records`); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO embedding_index (id, generation, model, dimension, updated_at)
		 VALUES (1, $1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET generation = EXCLUDED.generation, model = EXCLUDED.model,
		     dimension = EXCLUDED.dimension, updated_at = EXCLUDED.updated_at`,
		snap.Generation, snap.Model, snap.Dimension, snap.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if len(snap.Records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, rec := range snap.Records {
		metadata := rec.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		batch.Queue(
			`INSERT INTO embedding_records (position, text, metadata, embedding)
			 VALUES ($1, $2, $3, $4)`,
			i, rec.Text, metadata, pgvector.NewVector(rec.Vector),
		)
	}

	results := r.db.SendBatch(ctx, batch)
	for i := range snap.Records {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}
	return results.Close()
}

// LoadAll returns the stored snapshot, or nil when none has been written.
func (r *EmbeddingRecordRepository) LoadAll(ctx context.Context) (*vectorindex.Snapshot, error) {
	var snap vectorindex.Snapshot
	err := r.db.QueryRow(ctx,
		`SELECT generation, model, dimension, updated_at FROM embedding_index WHERE id = 1`,
	).Scan(&snap.Generation, &snap.Model, &snap.Dimension, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT text, metadata, embedding::text
		 FROM embedding_records
		 ORDER BY position ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap.Records = make([]vectorindex.Record, 0)
	for rows.Next() {
		var rec vectorindex.Record
		var vec pgvector.Vector
		if err := rows.Scan(&rec.Text, &rec.Metadata, &vec); err != nil {
			return nil, err
		}
		rec.Vector = vec.Slice()
		snap.Records = append(snap.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Count returns the number of stored records.
func (r *EmbeddingRecordRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM embedding_records`).Scan(&n)
	return n, err
}
