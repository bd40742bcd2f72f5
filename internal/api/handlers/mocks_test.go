package handlers

import (
	"context"

	"github.com/cloo-solutions/companion/internal/cache"
	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/service"
	"github.com/cloo-solutions/companion/internal/vectorindex"
	"github.com/stretchr/testify/mock"
)

type MockAssistantService struct {
	mock.Mock
}

func (m *MockAssistantService) Ask(ctx context.Context, question string) (*service.AskResult, error) {
	args := m.Called(ctx, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AskResult), args.Error(1)
}

func (m *MockAssistantService) History() []service.Message {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]service.Message)
}

func (m *MockAssistantService) ClearHistory() {
	m.Called()
}

func (m *MockAssistantService) HistoryLen() int {
	args := m.Called()
	return args.Int(0)
}

type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Snapshot(ctx context.Context) (*domain.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockProfileService) Save(ctx context.Context, p *domain.Profile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockIndexService struct {
	mock.Mock
}

func (m *MockIndexService) Rebuild(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockIndexService) Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchHit), args.Error(1)
}

func (m *MockIndexService) Stats() vectorindex.Stats {
	args := m.Called()
	return args.Get(0).(vectorindex.Stats)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) Stats() cache.Stats {
	args := m.Called()
	return args.Get(0).(cache.Stats)
}

func (m *MockCacheService) InvalidateAll() {
	m.Called()
}
