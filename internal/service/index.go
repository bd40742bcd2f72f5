package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/vectorindex"
)

// VectorIndex is the subset of vectorindex.Index managed by IndexService.
type VectorIndex interface {
	SearchIndex
	Rebuild(ctx context.Context, docs []domain.Document) (int, error)
	Stats() vectorindex.Stats
}

// IndexService keeps the embedding index in step with the profile.
type IndexService struct {
	profiles ProfileSource
	index    VectorIndex
}

func NewIndexService(profiles ProfileSource, index VectorIndex) *IndexService {
	return &IndexService{profiles: profiles, index: index}
}

// Rebuild re-embeds the current profile and returns the number of documents
// indexed.
func (s *IndexService) Rebuild(ctx context.Context) (int, error) {
	profile, err := s.profiles.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load profile: %w", err)
	}
	return s.index.Rebuild(ctx, vectorindex.DocumentsFromProfile(profile))
}

// Search returns raw vector hits for query.
func (s *IndexService) Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	if query == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if k <= 0 {
		k = DefaultTopK
	}
	hits, err := s.index.SearchText(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	return hits, nil
}

// Stats reports the index contents.
func (s *IndexService) Stats() vectorindex.Stats {
	return s.index.Stats()
}
