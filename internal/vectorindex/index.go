// Package vectorindex keeps unit-normalized embeddings of profile fragments
// in memory and answers inner-product similarity queries against them.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/telemetry"
	"github.com/google/uuid"
)

const (
	// DefaultMinScore drops weakly similar records from search results.
	DefaultMinScore = 0.3
	// SnippetLength is the maximum length of SearchHit.Snippet.
	SnippetLength = 150

	candidateFactor = 2
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store persists whole snapshots. Load returns (nil, nil) when nothing has
// been stored yet. Save must be all-or-nothing.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// Record is one embedded fragment.
type Record struct {
	Vector   []float32         `json:"-"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Snapshot is an immutable view of the index. Writers build a new snapshot
// and swap it in; readers never see a partially written one.
type Snapshot struct {
	Generation string    `json:"generation"`
	Model      string    `json:"model"`
	Dimension  int       `json:"dimension"`
	UpdatedAt  time.Time `json:"updated_at"`
	Records    []Record  `json:"records"`
}

// Validate checks that every record matches the snapshot dimension.
func (s *Snapshot) Validate() error {
	for i, r := range s.Records {
		if len(r.Vector) != s.Dimension {
			return fmt.Errorf("record %d has dimension %d, expected %d", i, len(r.Vector), s.Dimension)
		}
	}
	return nil
}

// Stats describes the current index contents.
type Stats struct {
	TotalDocuments int       `json:"total_documents"`
	Dimension      int       `json:"dimension"`
	Model          string    `json:"model"`
	Generation     string    `json:"generation"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// Config configures an Index.
type Config struct {
	Model    string
	MinScore float64
}

// Index is an in-memory vector index. Searches are lock-free; Add and
// Rebuild are serialized.
type Index struct {
	embedder Embedder
	store    Store
	model    string
	minScore float64

	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// New creates an empty index. A nil store disables persistence.
func New(embedder Embedder, store Store, cfg Config) *Index {
	if store == nil {
		store = NewMemoryStore()
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}
	ix := &Index{
		embedder: embedder,
		store:    store,
		model:    cfg.Model,
		minScore: cfg.MinScore,
	}
	ix.snap.Store(&Snapshot{Model: cfg.Model})
	return ix
}

// Load replaces the in-memory snapshot with the stored one. Stored vectors
// are re-normalized. A corrupt or unreadable store, or one built with a
// different embedding model, leaves the index empty and returns an error
// wrapping domain.ErrIndexCorrupt.
func (ix *Index) Load(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	snap, err := ix.store.Load(ctx)
	if err == nil && snap != nil {
		err = snap.Validate()
	}
	if err == nil && snap != nil && ix.model != "" && snap.Model != "" && snap.Model != ix.model {
		err = fmt.Errorf("index was built with model %q, configured model is %q", snap.Model, ix.model)
	}
	if err == nil && snap != nil {
		snap = normalized(snap)
	}
	if err != nil {
		ix.snap.Store(&Snapshot{Model: ix.model})
		log.Printf("vectorindex: %v, starting empty: %v", domain.ErrIndexCorrupt, err)
		return domain.Wrap(domain.ErrIndexCorrupt, err)
	}
	if snap == nil {
		return nil
	}
	ix.snap.Store(snap)
	log.Printf("vectorindex: loaded %d records (generation %s)", len(snap.Records), snap.Generation)
	return nil
}

// Add embeds docs and appends them to the index. Nothing changes when any
// embedding fails. Persistence failures are logged and do not undo the
// in-memory update.
func (ix *Index) Add(ctx context.Context, docs []domain.Document) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "Index.Add", telemetry.SpanAttributes{Operation: "add"})
	defer span.End()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	cur := ix.snap.Load()
	records, err := ix.embedAll(ctx, docs, cur.Dimension)
	if err != nil {
		span.SetError(err)
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	next := ix.nextSnapshot(append(append(make([]Record, 0, len(cur.Records)+len(records)), cur.Records...), records...))
	ix.commit(ctx, next)
	return len(records), nil
}

// Rebuild replaces the whole index with embeddings of docs. The previous
// snapshot stays visible until every document has been embedded.
func (ix *Index) Rebuild(ctx context.Context, docs []domain.Document) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "Index.Rebuild", telemetry.SpanAttributes{Operation: "rebuild"})
	defer span.End()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	records, err := ix.embedAll(ctx, docs, 0)
	if err != nil {
		span.SetError(err)
		return 0, err
	}
	ix.commit(ctx, ix.nextSnapshot(records))
	log.Printf("vectorindex: rebuilt with %d records", len(records))
	return len(records), nil
}

func (ix *Index) nextSnapshot(records []Record) *Snapshot {
	dim := 0
	if len(records) > 0 {
		dim = len(records[0].Vector)
	}
	return &Snapshot{
		Generation: uuid.NewString(),
		Model:      ix.model,
		Dimension:  dim,
		UpdatedAt:  time.Now().UTC(),
		Records:    records,
	}
}

func (ix *Index) commit(ctx context.Context, next *Snapshot) {
	ix.snap.Store(next)
	if err := ix.store.Save(ctx, next); err != nil {
		log.Printf("vectorindex: failed to persist generation %s: %v", next.Generation, err)
		telemetry.CaptureError(ctx, err)
	}
}

// embedAll embeds every non-empty document. dim is the required vector
// dimension, or 0 to accept the first one returned.
func (ix *Index) embedAll(ctx context.Context, docs []domain.Document, dim int) ([]Record, error) {
	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		if doc.Text == "" {
			continue
		}
		vec, err := ix.embed(ctx, doc.Text)
		if err != nil {
			return nil, err
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return nil, domain.Wrap(domain.ErrEmbeddingUnavailable,
				fmt.Errorf("embedding has dimension %d, expected %d", len(vec), dim))
		}
		records = append(records, Record{Vector: vec, Text: doc.Text, Metadata: copyMetadata(doc.Metadata)})
	}
	return records, nil
}

func (ix *Index) embed(ctx context.Context, text string) ([]float32, error) {
	if ix.embedder == nil {
		return nil, domain.Wrap(domain.ErrEmbeddingUnavailable, errors.New("no embedder configured"))
	}
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, domain.Wrap(domain.ErrEmbeddingUnavailable, err)
	}
	if len(vec) == 0 {
		return nil, domain.Wrap(domain.ErrEmbeddingUnavailable, errors.New("empty embedding"))
	}
	return Normalize(vec), nil
}

// SearchText embeds query and searches with the resulting vector.
func (ix *Index) SearchText(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	ctx, span := telemetry.StartSpan(ctx, "Index.SearchText", telemetry.SpanAttributes{Operation: "search"})
	defer span.End()

	if ix.Len() == 0 || k <= 0 {
		return nil, nil
	}
	vec, err := ix.embed(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return ix.Search(vec, k)
}

type scored struct {
	pos   int
	score float64
}

// Search returns up to k records in descending inner-product order whose
// score is at least the configured minimum. The query vector is normalized
// before comparison.
func (ix *Index) Search(query []float32, k int) ([]domain.SearchHit, error) {
	snap := ix.snap.Load()
	if k <= 0 || len(snap.Records) == 0 {
		return nil, nil
	}
	if len(query) != snap.Dimension {
		return nil, fmt.Errorf("query has dimension %d, index has %d", len(query), snap.Dimension)
	}
	q := Normalize(query)

	all := make([]scored, len(snap.Records))
	for i, r := range snap.Records {
		all[i] = scored{pos: i, score: dot(q, r.Vector)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	candidates := all[:min(len(all), candidateFactor*k)]
	hits := make([]domain.SearchHit, 0, k)
	for _, c := range candidates {
		if len(hits) == k {
			break
		}
		if c.score < ix.minScore {
			continue
		}
		r := snap.Records[c.pos]
		hits = append(hits, domain.SearchHit{
			Text:     r.Text,
			Snippet:  Snippet(r.Text),
			Score:    c.score,
			Metadata: copyMetadata(r.Metadata),
		})
	}
	return hits, nil
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return len(ix.snap.Load().Records)
}

// Stats reports the current snapshot.
func (ix *Index) Stats() Stats {
	snap := ix.snap.Load()
	model := snap.Model
	if model == "" {
		model = ix.model
	}
	return Stats{
		TotalDocuments: len(snap.Records),
		Dimension:      snap.Dimension,
		Model:          model,
		Generation:     snap.Generation,
		UpdatedAt:      snap.UpdatedAt,
	}
}

// Normalize returns a unit-length copy of v. A zero vector is returned as a
// zero copy.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// normalized returns a copy of snap whose record vectors have unit length.
func normalized(snap *Snapshot) *Snapshot {
	out := *snap
	out.Records = make([]Record, len(snap.Records))
	for i, r := range snap.Records {
		r.Vector = Normalize(r.Vector)
		out.Records[i] = r
	}
	return &out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Snippet truncates text to SnippetLength runes, marking the cut with "...".
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= SnippetLength {
		return text
	}
	return string(runes[:SnippetLength-3]) + "..."
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
