package vectorindex

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns fixed vectors per text.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	fail    map[string]bool
	calls   int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{}, fail: map[string]bool{}}
}

func (e *fakeEmbedder) set(text string, v ...float32) *fakeEmbedder {
	e.vectors[text] = v
	return e
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail[text] {
		return nil, errors.New("connection refused")
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context) (*Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Snapshot), args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, snap *Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func docs(texts ...string) []domain.Document {
	out := make([]domain.Document, len(texts))
	for i, t := range texts {
		out[i] = domain.Document{Text: t, Metadata: map[string]string{domain.MetaSource: "skills"}}
	}
	return out
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, got[0], 1e-6)
	assert.InDelta(t, 0.8, got[1], 1e-6)

	zero := Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("short"))

	exact := strings.Repeat("a", SnippetLength)
	assert.Equal(t, exact, Snippet(exact))

	long := strings.Repeat("b", 200)
	got := Snippet(long)
	assert.Len(t, got, SnippetLength)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("b", 147), strings.TrimSuffix(got, "..."))
}

func TestIndex_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("orders by similarity and applies threshold", func(t *testing.T) {
		emb := newFakeEmbedder().
			set("angular", 1, 0, 0).
			set("typescript", 0.8, 0.6, 0).
			set("cooking", 0, 1, 0)
		ix := New(emb, nil, Config{Model: "test"})

		n, err := ix.Add(ctx, docs("cooking", "typescript", "angular"))
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		hits, err := ix.Search([]float32{2, 0, 0}, 5)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "angular", hits[0].Text)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
		assert.Equal(t, "typescript", hits[1].Text)
		assert.InDelta(t, 0.8, hits[1].Score, 1e-6)
		assert.Equal(t, "skills", hits[0].Metadata[domain.MetaSource])
	})

	t.Run("single record with k larger than index", func(t *testing.T) {
		emb := newFakeEmbedder().set("angular", 1, 0, 0)
		ix := New(emb, nil, Config{})
		_, err := ix.Add(ctx, docs("angular"))
		require.NoError(t, err)

		hits, err := ix.Search([]float32{1, 0, 0}, 3)
		require.NoError(t, err)
		assert.Len(t, hits, 1)

		hits, err = ix.Search([]float32{0, 1, 0}, 3)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("respects k", func(t *testing.T) {
		emb := newFakeEmbedder().set("a", 1, 0, 0).set("b", 0.9, 0.1, 0).set("c", 0.8, 0.2, 0)
		ix := New(emb, nil, Config{})
		_, err := ix.Add(ctx, docs("a", "b", "c"))
		require.NoError(t, err)

		hits, err := ix.Search([]float32{1, 0, 0}, 2)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
		assert.Equal(t, "a", hits[0].Text)
	})

	t.Run("empty index and dimension mismatch", func(t *testing.T) {
		ix := New(newFakeEmbedder(), nil, Config{})
		hits, err := ix.Search([]float32{1, 0, 0}, 3)
		require.NoError(t, err)
		assert.Empty(t, hits)

		_, err = ix.Add(ctx, docs("x"))
		require.NoError(t, err)
		_, err = ix.Search([]float32{1, 0}, 3)
		assert.Error(t, err)
	})

	t.Run("search text embeds the query", func(t *testing.T) {
		emb := newFakeEmbedder().set("angular", 1, 0, 0).set("what angular work", 1, 0.1, 0)
		ix := New(emb, nil, Config{})
		_, err := ix.Add(ctx, docs("angular"))
		require.NoError(t, err)

		hits, err := ix.SearchText(ctx, "what angular work", 3)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "angular", hits[0].Snippet)
	})
}

func TestIndex_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("embedding failure leaves index untouched", func(t *testing.T) {
		emb := newFakeEmbedder().set("a", 1, 0, 0)
		ix := New(emb, nil, Config{})
		_, err := ix.Add(ctx, docs("a"))
		require.NoError(t, err)
		before := ix.Stats().Generation

		emb.fail["b"] = true
		n, err := ix.Add(ctx, docs("c", "b"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.Equal(t, 0, n)
		assert.Equal(t, 1, ix.Len())
		assert.Equal(t, before, ix.Stats().Generation)
	})

	t.Run("dimension mismatch is rejected", func(t *testing.T) {
		emb := newFakeEmbedder().set("a", 1, 0, 0).set("b", 1, 0)
		ix := New(emb, nil, Config{})
		_, err := ix.Add(ctx, docs("a"))
		require.NoError(t, err)

		_, err = ix.Add(ctx, docs("b"))
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.Equal(t, 1, ix.Len())
	})

	t.Run("empty documents are skipped", func(t *testing.T) {
		ix := New(newFakeEmbedder(), nil, Config{})
		n, err := ix.Add(ctx, docs("", ""))
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, "", ix.Stats().Generation)
	})

	t.Run("persistence failure is not fatal", func(t *testing.T) {
		store := new(MockStore)
		store.On("Save", mock.Anything, mock.AnythingOfType("*vectorindex.Snapshot")).Return(errors.New("disk full"))

		ix := New(newFakeEmbedder(), store, Config{})
		n, err := ix.Add(ctx, docs("a", "b"))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 2, ix.Len())
		store.AssertExpectations(t)
	})

	t.Run("missing embedder", func(t *testing.T) {
		ix := New(nil, nil, Config{})
		_, err := ix.Add(ctx, docs("a"))
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}

func TestIndex_Rebuild(t *testing.T) {
	ctx := context.Background()
	emb := newFakeEmbedder().set("old", 1, 0, 0).set("new", 0, 1, 0)
	store := NewMemoryStore()
	ix := New(emb, store, Config{Model: "m"})

	_, err := ix.Add(ctx, docs("old"))
	require.NoError(t, err)
	first := ix.Stats().Generation

	n, err := ix.Rebuild(ctx, docs("new"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats := ix.Stats()
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 3, stats.Dimension)
	assert.Equal(t, "m", stats.Model)
	assert.NotEqual(t, first, stats.Generation)

	saved, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Generation, saved.Generation)
	assert.Equal(t, "new", saved.Records[0].Text)

	t.Run("failed rebuild keeps previous snapshot", func(t *testing.T) {
		emb.fail["broken"] = true
		_, err := ix.Rebuild(ctx, docs("old", "broken"))
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.Equal(t, stats.Generation, ix.Stats().Generation)
	})

	t.Run("concurrent searches see a whole snapshot", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					hits, err := ix.Search([]float32{0, 1, 0}, 3)
					assert.NoError(t, err)
					assert.LessOrEqual(t, len(hits), 2)
				}
			}()
		}
		for i := 0; i < 10; i++ {
			_, err := ix.Rebuild(ctx, docs("new", "old"))
			require.NoError(t, err)
		}
		wg.Wait()
	})
}

func TestIndex_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("restores stored snapshot", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(ctx, &Snapshot{
			Generation: "g1",
			Dimension:  2,
			Records:    []Record{{Vector: []float32{1, 0}, Text: "a"}},
		}))

		ix := New(newFakeEmbedder(), store, Config{})
		require.NoError(t, ix.Load(ctx))
		assert.Equal(t, 1, ix.Len())
		assert.Equal(t, "g1", ix.Stats().Generation)
	})

	t.Run("empty store", func(t *testing.T) {
		ix := New(newFakeEmbedder(), NewMemoryStore(), Config{})
		require.NoError(t, ix.Load(ctx))
		assert.Equal(t, 0, ix.Len())
	})

	t.Run("corrupt store falls back to empty", func(t *testing.T) {
		store := new(MockStore)
		store.On("Load", mock.Anything).Return(nil, errors.New("truncated file"))

		ix := New(newFakeEmbedder(), store, Config{})
		err := ix.Load(ctx)
		assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
		assert.Equal(t, domain.ErrCodeIndexCorrupt, domain.CodeOf(err))
		assert.Equal(t, 0, ix.Len())
	})

	t.Run("stored vectors are re-normalized", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(ctx, &Snapshot{
			Dimension: 2,
			Records:   []Record{{Vector: []float32{3, 4}, Text: "a"}},
		}))

		ix := New(newFakeEmbedder(), store, Config{})
		require.NoError(t, ix.Load(ctx))

		hits, err := ix.Search([]float32{3, 4}, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	})

	t.Run("model mismatch is corrupt", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(ctx, &Snapshot{
			Model:     "text-embedding-ada-002",
			Dimension: 2,
			Records:   []Record{{Vector: []float32{1, 0}, Text: "a"}},
		}))

		ix := New(newFakeEmbedder(), store, Config{Model: "text-embedding-3-small"})
		err := ix.Load(ctx)
		assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
		assert.ErrorContains(t, err, "text-embedding-ada-002")
		assert.Equal(t, 0, ix.Len())
	})

	t.Run("inconsistent snapshot is corrupt", func(t *testing.T) {
		store := new(MockStore)
		store.On("Load", mock.Anything).Return(&Snapshot{
			Dimension: 3,
			Records:   []Record{{Vector: []float32{1, 0}, Text: "a"}},
		}, nil)

		ix := New(newFakeEmbedder(), store, Config{})
		assert.ErrorIs(t, ix.Load(ctx), domain.ErrIndexCorrupt)
		assert.Equal(t, 0, ix.Len())
	})
}
