package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/telemetry"
)

// ProfileRepository persists the profile snapshot.
type ProfileRepository interface {
	Load(ctx context.Context) (*domain.Profile, error)
	Save(ctx context.Context, p *domain.Profile) error
}

// RebuildRequester schedules an asynchronous index rebuild.
type RebuildRequester interface {
	RequestRebuild()
}

// ProfileService owns the current profile. Saving a profile invalidates
// cached responses and schedules an index rebuild, since both derive from it.
type ProfileService struct {
	repo      ProfileRepository
	responses ResponseCache
	rebuilds  RebuildRequester

	mu      sync.RWMutex
	current *domain.Profile
}

// NewProfileService creates a ProfileService. responses and rebuilds may be
// nil.
func NewProfileService(repo ProfileRepository, responses ResponseCache, rebuilds RebuildRequester) *ProfileService {
	return &ProfileService{
		repo:      repo,
		responses: responses,
		rebuilds:  rebuilds,
	}
}

// SetRebuildRequester replaces the rebuild scheduler. The scheduler usually
// depends on an IndexService that reads from this ProfileService, so it is
// attached after construction.
func (s *ProfileService) SetRebuildRequester(r RebuildRequester) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuilds = r
}

// Snapshot returns the current profile, loading it on first use.
func (s *ProfileService) Snapshot(ctx context.Context) (*domain.Profile, error) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()
	if current != nil {
		return current, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return s.current, nil
	}
	p, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	s.current = p
	return p, nil
}

// Save validates and stores p, then invalidates everything derived from the
// previous profile.
func (s *ProfileService) Save(ctx context.Context, p *domain.Profile) error {
	ctx, span := telemetry.StartSpan(ctx, "ProfileService.Save", telemetry.SpanAttributes{Operation: "save"})
	defer span.End()

	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Save(ctx, p); err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to save profile: %w", err)
	}
	s.current = p

	if s.responses != nil {
		s.responses.InvalidateAll()
	}
	if s.rebuilds != nil {
		s.rebuilds.RequestRebuild()
	}
	log.Printf("profile: saved, cache invalidated and index rebuild requested")
	return nil
}
