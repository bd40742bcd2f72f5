package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) Load(ctx context.Context) (*domain.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockProfileRepository) Save(ctx context.Context, p *domain.Profile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockResponseCache struct {
	mock.Mock
}

func (m *MockResponseCache) Get(question string, qt domain.QueryType, fingerprint string) (string, bool) {
	args := m.Called(question, qt, fingerprint)
	return args.String(0), args.Bool(1)
}

func (m *MockResponseCache) Put(question string, qt domain.QueryType, response, fingerprint string) bool {
	args := m.Called(question, qt, response, fingerprint)
	return args.Bool(0)
}

func (m *MockResponseCache) InvalidateAll() {
	m.Called()
}

type MockRebuildRequester struct {
	mock.Mock
}

func (m *MockRebuildRequester) RequestRebuild() {
	m.Called()
}

func TestProfileService_Snapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("loads once", func(t *testing.T) {
		profile := loadProfile(t, angularProfileJSON)
		repo := new(MockProfileRepository)
		repo.On("Load", mock.Anything).Return(profile, nil).Once()

		svc := NewProfileService(repo, nil, nil)
		first, err := svc.Snapshot(ctx)
		require.NoError(t, err)
		second, err := svc.Snapshot(ctx)
		require.NoError(t, err)

		assert.Same(t, profile, first)
		assert.Same(t, first, second)
		repo.AssertExpectations(t)
	})

	t.Run("load failure", func(t *testing.T) {
		repo := new(MockProfileRepository)
		repo.On("Load", mock.Anything).Return(nil, errors.New("permission denied"))

		_, err := NewProfileService(repo, nil, nil).Snapshot(ctx)
		assert.ErrorContains(t, err, "permission denied")
	})
}

func TestProfileService_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("stores and invalidates", func(t *testing.T) {
		profile := loadProfile(t, fullProfileJSON)
		repo := new(MockProfileRepository)
		repo.On("Save", mock.Anything, profile).Return(nil)
		responses := new(MockResponseCache)
		responses.On("InvalidateAll").Return()
		rebuilds := new(MockRebuildRequester)
		rebuilds.On("RequestRebuild").Return()

		svc := NewProfileService(repo, responses, rebuilds)
		require.NoError(t, svc.Save(ctx, profile))

		got, err := svc.Snapshot(ctx)
		require.NoError(t, err)
		assert.Same(t, profile, got)
		repo.AssertExpectations(t)
		responses.AssertNumberOfCalls(t, "InvalidateAll", 1)
		rebuilds.AssertNumberOfCalls(t, "RequestRebuild", 1)
		repo.AssertNotCalled(t, "Load", mock.Anything)
	})

	t.Run("invalid profile is rejected", func(t *testing.T) {
		repo := new(MockProfileRepository)
		responses := new(MockResponseCache)

		invalid := &domain.Profile{Projects: []domain.Project{{}}}
		err := NewProfileService(repo, responses, nil).Save(ctx, invalid)

		assert.Equal(t, domain.ErrCodeValidation, domain.CodeOf(err))
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		responses.AssertNotCalled(t, "InvalidateAll")
	})

	t.Run("rebuild requester attached later", func(t *testing.T) {
		profile := loadProfile(t, angularProfileJSON)
		repo := new(MockProfileRepository)
		repo.On("Save", mock.Anything, profile).Return(nil)
		rebuilds := new(MockRebuildRequester)
		rebuilds.On("RequestRebuild").Return()

		svc := NewProfileService(repo, nil, nil)
		svc.SetRebuildRequester(rebuilds)
		require.NoError(t, svc.Save(ctx, profile))

		rebuilds.AssertNumberOfCalls(t, "RequestRebuild", 1)
	})

	t.Run("repository failure keeps cache", func(t *testing.T) {
		profile := loadProfile(t, angularProfileJSON)
		repo := new(MockProfileRepository)
		repo.On("Save", mock.Anything, profile).Return(errors.New("disk full"))
		responses := new(MockResponseCache)

		err := NewProfileService(repo, responses, nil).Save(ctx, profile)
		assert.ErrorContains(t, err, "disk full")
		responses.AssertNotCalled(t, "InvalidateAll")
	})
}

type MockVectorIndex struct {
	MockSearchIndex
}

func (m *MockVectorIndex) Rebuild(ctx context.Context, docs []domain.Document) (int, error) {
	args := m.Called(ctx, docs)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorIndex) Stats() vectorindex.Stats {
	args := m.Called()
	return args.Get(0).(vectorindex.Stats)
}

func TestIndexService(t *testing.T) {
	ctx := context.Background()
	profile := loadProfile(t, angularProfileJSON)
	profiles := new(MockProfileSource)
	profiles.On("Snapshot", mock.Anything).Return(profile, nil)

	t.Run("rebuild indexes profile documents", func(t *testing.T) {
		index := new(MockVectorIndex)
		expected := vectorindex.DocumentsFromProfile(profile)
		index.On("Rebuild", mock.Anything, expected).Return(len(expected), nil)

		n, err := NewIndexService(profiles, index).Rebuild(ctx)
		require.NoError(t, err)
		assert.Equal(t, 6, n)
		index.AssertExpectations(t)
	})

	t.Run("search defaults k and never returns nil", func(t *testing.T) {
		index := new(MockVectorIndex)
		index.On("SearchText", mock.Anything, "angular", DefaultTopK).Return(nil, nil)

		hits, err := NewIndexService(profiles, index).Search(ctx, "angular", 0)
		require.NoError(t, err)
		assert.NotNil(t, hits)
		assert.Empty(t, hits)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := NewIndexService(profiles, new(MockVectorIndex)).Search(ctx, "", 3)
		assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
	})

	t.Run("stats", func(t *testing.T) {
		index := new(MockVectorIndex)
		index.On("Stats").Return(vectorindex.Stats{TotalDocuments: 6, Dimension: 3})

		assert.Equal(t, 6, NewIndexService(profiles, index).Stats().TotalDocuments)
	})
}
