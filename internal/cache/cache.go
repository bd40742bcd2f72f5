// Package cache memoizes assistant responses keyed by normalized question,
// query type and context fingerprint.
//
// The cache cannot detect profile changes on its own. Whoever mutates the
// profile must call InvalidateAll.
package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/rules"
)

const (
	DefaultTTL        = 24 * time.Hour
	DefaultMaxEntries = 100
)

// Config configures a ResponseCache.
type Config struct {
	TTL        time.Duration
	MaxEntries int
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

type entry struct {
	response  string
	queryType domain.QueryType
	createdAt time.Time
	seq       uint64
	hits      atomic.Int64
}

// Stats describes the cache contents.
type Stats struct {
	TotalEntries     int            `json:"total_entries"`
	TotalHits        int64          `json:"total_hits"`
	AvgHitsPerEntry  float64        `json:"average_hits_per_entry"`
	MostPopularType  string         `json:"most_popular_query_type"`
	SizeBytes        int            `json:"cache_size_bytes"`
	SizeMB           float64        `json:"cache_size_mb"`
	TypeDistribution map[string]int `json:"query_type_distribution"`
	Hits             int64          `json:"hits"`
	Misses           int64          `json:"misses"`
}

// ResponseCache is a TTL and size bounded in-memory response cache. It is
// safe for concurrent use.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	seq     uint64

	rules      rules.Cache
	cacheable  map[domain.QueryType]bool
	normalizer normalizer
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache using the cacheability tables from r.
func New(r *rules.Rules, cfg Config) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &ResponseCache{
		entries:    make(map[string]*entry),
		rules:      r.Cache,
		cacheable:  make(map[domain.QueryType]bool, len(r.Cache.CacheableTypes)),
		normalizer: newNormalizer(r.Cache.Punctuation, r.Cache.FillerPhrases),
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		now:        cfg.Now,
	}
	for _, qt := range r.Cache.CacheableTypes {
		c.cacheable[qt] = true
	}
	return c
}

// Normalize returns the form of question used in cache keys.
func (c *ResponseCache) Normalize(question string) string {
	return c.normalizer.Normalize(question)
}

// Key derives the cache key for a question.
func (c *ResponseCache) Key(question string, qt domain.QueryType, fingerprint string) string {
	return hashHex(fmt.Sprintf("%s:%s:%s", qt, c.Normalize(question), fingerprint), keyHexLen)
}

// IsCacheable reports whether answers to question may be cached.
func (c *ResponseCache) IsCacheable(question string, qt domain.QueryType) bool {
	if !c.cacheable[qt] {
		return false
	}
	lowered := strings.ToLower(question)
	if qt == domain.QueryTypeGeneralQuestion && !rules.ContainsAny(lowered, c.rules.ProfileKeywords) {
		return false
	}
	if rules.ContainsAnyTerm(lowered, c.rules.BlockedPhrases) {
		return false
	}
	n := utf8.RuneCountInString(strings.TrimSpace(question))
	return n >= c.rules.MinQuestionLength && n <= c.rules.MaxQuestionLength
}

func (c *ResponseCache) acceptsResponse(response string) bool {
	trimmed := strings.TrimSpace(response)
	if utf8.RuneCountInString(trimmed) < c.rules.MinResponseLength {
		return false
	}
	lowered := strings.ToLower(trimmed)
	if rules.ContainsAny(lowered, c.rules.RejectResponseSubstrings) {
		return false
	}
	for _, prefix := range c.rules.RejectResponsePrefixes {
		if prefix != "" && strings.HasPrefix(lowered, prefix) {
			return false
		}
	}
	return true
}

func (c *ResponseCache) expired(e *entry, now time.Time) bool {
	return now.Sub(e.createdAt) >= c.ttl
}

// Get returns a cached response if one exists and has not expired.
func (c *ResponseCache) Get(question string, qt domain.QueryType, fingerprint string) (string, bool) {
	if !c.IsCacheable(question, qt) {
		c.misses.Add(1)
		return "", false
	}
	key := c.Key(question, qt, fingerprint)
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	if ok && !c.expired(e, now) {
		e.hits.Add(1)
		c.mu.RUnlock()
		c.hits.Add(1)
		return e.response, true
	}
	c.mu.RUnlock()

	if ok {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && c.expired(cur, now) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	c.misses.Add(1)
	return "", false
}

// Put stores response unless the question or response is not cacheable. It
// reports whether the response was stored.
func (c *ResponseCache) Put(question string, qt domain.QueryType, response, fingerprint string) bool {
	if !c.IsCacheable(question, qt) || !c.acceptsResponse(response) {
		return false
	}
	key := c.Key(question, qt, fingerprint)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.entries[key] = &entry{
		response:  response,
		queryType: qt,
		createdAt: c.now(),
		seq:       c.seq,
	}
	c.evictLocked()
	return true
}

// evictLocked drops expired entries, then the oldest entries until the cache
// is within its size bound.
func (c *ResponseCache) evictLocked() {
	now := c.now()
	for key, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) <= c.maxEntries {
		return
	}

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := c.entries[keys[i]], c.entries[keys[j]]
		if !a.createdAt.Equal(b.createdAt) {
			return a.createdAt.Before(b.createdAt)
		}
		return a.seq < b.seq
	})
	for _, key := range keys[:len(keys)-c.maxEntries] {
		delete(c.entries, key)
	}
}

// InvalidateAll removes every entry.
func (c *ResponseCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats summarizes the cache contents.
func (c *ResponseCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		TotalEntries:     len(c.entries),
		MostPopularType:  "none",
		TypeDistribution: make(map[string]int),
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
	}
	for _, e := range c.entries {
		s.TotalHits += e.hits.Load()
		s.SizeBytes += len(e.response)
		s.TypeDistribution[string(e.queryType)]++
	}
	if s.TotalEntries > 0 {
		s.AvgHitsPerEntry = float64(s.TotalHits) / float64(s.TotalEntries)
	}
	s.SizeMB = float64(s.SizeBytes) / (1024 * 1024)

	best := 0
	for qt, n := range s.TypeDistribution {
		if n > best || (n == best && qt < s.MostPopularType) {
			best = n
			s.MostPopularType = qt
		}
	}
	return s
}
