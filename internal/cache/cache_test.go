package cache

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const (
	question = "What are my strongest skills?"
	answer   = "Your strongest skills are Angular and TypeScript."
	fp       = "abcd1234"
)

func newTestCache(clock *fakeClock, maxEntries int) *ResponseCache {
	return New(rules.Default(), Config{TTL: time.Hour, MaxEntries: maxEntries, Now: clock.Now})
}

func TestResponseCache_RoundTrip(t *testing.T) {
	t.Run("returns response before ttl", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(clock, 10)

		require.True(t, c.Put(question, domain.QueryTypeGeneralQuestion, answer, fp))
		clock.Advance(59 * time.Minute)

		got, ok := c.Get(question, domain.QueryTypeGeneralQuestion, fp)
		assert.True(t, ok)
		assert.Equal(t, answer, got)
	})

	t.Run("misses after ttl and drops the entry", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(clock, 10)

		require.True(t, c.Put(question, domain.QueryTypeGeneralQuestion, answer, fp))
		clock.Advance(time.Hour)

		_, ok := c.Get(question, domain.QueryTypeGeneralQuestion, fp)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("key includes type and fingerprint", func(t *testing.T) {
		c := newTestCache(newFakeClock(), 10)
		require.True(t, c.Put(question, domain.QueryTypeGeneralQuestion, answer, fp))

		_, ok := c.Get(question, domain.QueryTypeSkillAnalysis, fp)
		assert.False(t, ok)
		_, ok = c.Get(question, domain.QueryTypeGeneralQuestion, "other")
		assert.False(t, ok)
	})

	t.Run("near-duplicate phrasing hits", func(t *testing.T) {
		c := newTestCache(newFakeClock(), 10)
		require.True(t, c.Put("Can you list my skills?", domain.QueryTypeGeneralQuestion, answer, fp))

		got, ok := c.Get("list my skills", domain.QueryTypeGeneralQuestion, fp)
		assert.True(t, ok)
		assert.Equal(t, answer, got)
	})

	t.Run("put replaces an existing entry", func(t *testing.T) {
		c := newTestCache(newFakeClock(), 10)
		require.True(t, c.Put(question, domain.QueryTypeGeneralQuestion, answer, fp))
		require.True(t, c.Put(question, domain.QueryTypeGeneralQuestion, answer+" Updated.", fp))

		got, _ := c.Get(question, domain.QueryTypeGeneralQuestion, fp)
		assert.Equal(t, answer+" Updated.", got)
		assert.Equal(t, 1, c.Len())
	})
}

func TestResponseCache_Normalize(t *testing.T) {
	c := newTestCache(newFakeClock(), 10)

	tests := []struct {
		in       string
		expected string
	}{
		{"Can you list my skills?", "list skills"},
		{"list my skills", "list skills"},
		{"  Could you PLEASE show the   projects!  ", "show projects"},
		{"java skills", "java skills"},
		{"Tell me about an API; a REST one", "tell me about api rest one"},
		{"What's \"my\" stack: now.", "what's stack now"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Normalize(tt.in))
		})
	}

	assert.Equal(t,
		c.Key("Can you list my skills?", domain.QueryTypeGeneralQuestion, fp),
		c.Key("list my skills", domain.QueryTypeGeneralQuestion, fp))
	assert.Len(t, c.Key("list my skills", domain.QueryTypeGeneralQuestion, fp), 16)
}

func TestResponseCache_IsCacheable(t *testing.T) {
	c := newTestCache(newFakeClock(), 10)

	tests := []struct {
		name     string
		question string
		qt       domain.QueryType
		expected bool
	}{
		{"allowed type", "Where are my skill gaps?", domain.QueryTypeSkillAnalysis, true},
		{"type not allowed", "Where are my skill gaps?", domain.QueryTypeSearchResponse, false},
		{"general without profile keyword", "Hello there friend", domain.QueryTypeGeneralQuestion, false},
		{"general with profile keyword", "What work have I done?", domain.QueryTypeGeneralQuestion, true},
		{"time sensitive", "What should I learn right now?", domain.QueryTypeCareerSuggestions, false},
		{"today", "What is my focus today?", domain.QueryTypeCareerSuggestions, false},
		{"know is not now", "What do I know about my work?", domain.QueryTypeGeneralQuestion, true},
		{"too short", "my skills", domain.QueryTypeSkillAnalysis, false},
		{"too long", strings.Repeat("my skills ", 51), domain.QueryTypeSkillAnalysis, false},
		{"exactly the minimum", "my skills?", domain.QueryTypeSkillAnalysis, true},
		{"short in characters, long in bytes", "mes compé", domain.QueryTypeSkillAnalysis, false},
		{"long in bytes, within limit in characters", strings.Repeat("é", 300), domain.QueryTypeSkillAnalysis, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.IsCacheable(tt.question, tt.qt))
		})
	}
}

func TestResponseCache_RejectsResponses(t *testing.T) {
	c := newTestCache(newFakeClock(), 10)

	for _, response := range []string{
		"Too short",
		"   padded but short    ",
		"There was an Error generating a response.",
		"Sorry, I cannot answer that question.",
	} {
		t.Run(response, func(t *testing.T) {
			assert.False(t, c.Put(question, domain.QueryTypeGeneralQuestion, response, fp))
		})
	}
	assert.False(t, c.Put("Hello there friend", domain.QueryTypeGeneralQuestion, answer, fp))
	assert.Equal(t, 0, c.Len())
}

func TestResponseCache_Eviction(t *testing.T) {
	t.Run("oldest entries go first", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(clock, 3)

		for i := 0; i < 5; i++ {
			require.True(t, c.Put(fmt.Sprintf("%s %d", question, i), domain.QueryTypeGeneralQuestion, answer, fp))
			clock.Advance(time.Second)
		}
		assert.Equal(t, 3, c.Len())

		for i := 0; i < 5; i++ {
			_, ok := c.Get(fmt.Sprintf("%s %d", question, i), domain.QueryTypeGeneralQuestion, fp)
			assert.Equal(t, i >= 2, ok, i)
		}
	})

	t.Run("insertion order breaks timestamp ties", func(t *testing.T) {
		c := newTestCache(newFakeClock(), 2)
		for i := 0; i < 3; i++ {
			require.True(t, c.Put(fmt.Sprintf("%s %d", question, i), domain.QueryTypeGeneralQuestion, answer, fp))
		}
		_, ok := c.Get(question+" 0", domain.QueryTypeGeneralQuestion, fp)
		assert.False(t, ok)
		_, ok = c.Get(question+" 2", domain.QueryTypeGeneralQuestion, fp)
		assert.True(t, ok)
	})

	t.Run("expired entries are removed on put", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(clock, 10)
		require.True(t, c.Put(question+" old", domain.QueryTypeGeneralQuestion, answer, fp))
		clock.Advance(2 * time.Hour)
		require.True(t, c.Put(question+" new", domain.QueryTypeGeneralQuestion, answer, fp))
		assert.Equal(t, 1, c.Len())
	})
}

func TestResponseCache_InvalidateAll(t *testing.T) {
	c := newTestCache(newFakeClock(), 10)
	require.True(t, c.Put(question, domain.QueryTypeGeneralQuestion, answer, fp))

	c.InvalidateAll()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get(question, domain.QueryTypeGeneralQuestion, fp)
	assert.False(t, ok)
}

func TestResponseCache_Stats(t *testing.T) {
	c := newTestCache(newFakeClock(), 10)

	empty := c.Stats()
	assert.Equal(t, 0, empty.TotalEntries)
	assert.Equal(t, "none", empty.MostPopularType)

	require.True(t, c.Put(question, domain.QueryTypeGeneralQuestion, answer, fp))
	require.True(t, c.Put("Where are my skill gaps?", domain.QueryTypeSkillAnalysis, answer, fp))
	require.True(t, c.Put("What skills should I learn?", domain.QueryTypeSkillAnalysis, answer, fp))

	c.Get(question, domain.QueryTypeGeneralQuestion, fp)
	c.Get(question, domain.QueryTypeGeneralQuestion, fp)
	c.Get("Where are my skill gaps?", domain.QueryTypeSkillAnalysis, fp)
	c.Get("Unknown question about my work", domain.QueryTypeGeneralQuestion, fp)

	s := c.Stats()
	assert.Equal(t, 3, s.TotalEntries)
	assert.Equal(t, int64(3), s.TotalHits)
	assert.InDelta(t, 1.0, s.AvgHitsPerEntry, 1e-9)
	assert.Equal(t, string(domain.QueryTypeSkillAnalysis), s.MostPopularType)
	assert.Equal(t, map[string]int{"general_question": 1, "skill_analysis": 2}, s.TypeDistribution)
	assert.Equal(t, 3*len(answer), s.SizeBytes)
	assert.Equal(t, int64(3), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
}

func TestResponseCache_Concurrent(t *testing.T) {
	c := newTestCache(newFakeClock(), 20)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				q := fmt.Sprintf("%s %d", question, (w+i)%30)
				c.Put(q, domain.QueryTypeGeneralQuestion, answer, fp)
				c.Get(q, domain.QueryTypeGeneralQuestion, fp)
				_ = c.Stats()
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 20)
}

func TestFingerprint(t *testing.T) {
	a := domain.Sections{"skills": "Frontend: Angular", "projects": "Project: Dash"}
	b := domain.Sections{"projects": "Project: Dash", "skills": "Frontend: Angular"}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 8)
	assert.NotEqual(t, Fingerprint(a), Fingerprint(domain.Sections{"skills": "Frontend: React"}))
	assert.Equal(t, Fingerprint(nil), Fingerprint(domain.Sections{}))
}
