package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
)

const (
	// MaxRetries is the number of consecutive failed rebuilds before a
	// pending request is dropped
	MaxRetries = 3
)

// IndexRebuilder rebuilds the embedding index from the current profile
type IndexRebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// IndexRebuildProcessor coalesces rebuild requests and runs at most one
// rebuild per poll
type IndexRebuildProcessor struct {
	rebuilder IndexRebuilder

	mu       sync.Mutex
	pending  bool
	failures int
	notify   func()
}

// NewIndexRebuildProcessor creates a new IndexRebuildProcessor instance
func NewIndexRebuildProcessor(rebuilder IndexRebuilder) *IndexRebuildProcessor {
	return &IndexRebuildProcessor{rebuilder: rebuilder}
}

// OnRequest registers fn to be called after every RequestRebuild, typically
// Worker.Wake so the rebuild does not wait for the next poll.
func (p *IndexRebuildProcessor) OnRequest(fn func()) {
	p.mu.Lock()
	p.notify = fn
	p.mu.Unlock()
}

// RequestRebuild marks the index as stale. Repeated requests before the next
// poll collapse into one rebuild.
func (p *IndexRebuildProcessor) RequestRebuild() {
	p.mu.Lock()
	p.pending = true
	p.failures = 0
	notify := p.notify
	p.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Pending reports whether a rebuild is waiting to run
func (p *IndexRebuildProcessor) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// ProcessJobs implements the JobProcessor interface
func (p *IndexRebuildProcessor) ProcessJobs(ctx context.Context) error {
	p.mu.Lock()
	if !p.pending {
		p.mu.Unlock()
		return nil
	}
	p.pending = false
	p.mu.Unlock()

	log.Printf("Rebuilding embedding index")
	n, err := p.rebuilder.Rebuild(ctx)
	if err != nil {
		return p.handleFailure(err)
	}

	p.mu.Lock()
	p.failures = 0
	p.mu.Unlock()
	log.Printf("Index rebuild completed: %d documents", n)
	return nil
}

// handleFailure re-queues the rebuild until MaxRetries consecutive failures
func (p *IndexRebuildProcessor) handleFailure(rebuildErr error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failures++
	if p.failures >= MaxRetries {
		log.Printf("Index rebuild exceeded max retries (%d), waiting for the next request", MaxRetries)
		p.failures = 0
		return fmt.Errorf("index rebuild failed: %w", rebuildErr)
	}

	// A request that arrived during the failed run is already pending.
	p.pending = true
	log.Printf("Index rebuild will be retried (attempt %d/%d)", p.failures, MaxRetries)
	return fmt.Errorf("index rebuild failed: %w", rebuildErr)
}
