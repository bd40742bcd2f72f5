package service

import (
	"context"

	"github.com/cloo-solutions/companion/internal/vectorindex"
)

// EmbeddingRecordRepositoryInterface stores index snapshots in a database.
type EmbeddingRecordRepositoryInterface interface {
	ReplaceAll(ctx context.Context, snap *vectorindex.Snapshot) error
	LoadAll(ctx context.Context) (*vectorindex.Snapshot, error)
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	EmbeddingRecords() EmbeddingRecordRepositoryInterface
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// DatabaseIndexStore is a vectorindex.Store backed by a record repository.
// Every save replaces the stored snapshot in a single transaction.
type DatabaseIndexStore struct {
	tx      TxRunner
	records EmbeddingRecordRepositoryInterface
}

func NewDatabaseIndexStore(tx TxRunner, records EmbeddingRecordRepositoryInterface) *DatabaseIndexStore {
	return &DatabaseIndexStore{tx: tx, records: records}
}

func (s *DatabaseIndexStore) Load(ctx context.Context) (*vectorindex.Snapshot, error) {
	return s.records.LoadAll(ctx)
}

func (s *DatabaseIndexStore) Save(ctx context.Context, snap *vectorindex.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(repos TxRepositories) error {
		return repos.EmbeddingRecords().ReplaceAll(ctx, snap)
	})
}
