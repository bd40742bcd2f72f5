package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs a JobProcessor on a fixed poll interval. Wake triggers an
// extra run without waiting for the next tick.
type Worker struct {
	name         string
	processor    JobProcessor
	pollInterval time.Duration
	wakeChan     chan struct{}
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return NewNamedWorker("worker", processor, pollInterval)
}

// NewNamedWorker creates a Worker whose log lines carry name
func NewNamedWorker(name string, processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		wakeChan:     make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start processes once immediately, then on every tick until the context is
// cancelled or Stop is called
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("%s: started with poll interval %v", w.name, w.pollInterval)
	w.process(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s: stopped, context cancelled", w.name)
			return
		case <-w.stopChan:
			log.Printf("%s: stopped, stop signal received", w.name)
			return
		case <-ticker.C:
			w.process(ctx)
		case <-w.wakeChan:
			w.process(ctx)
		}
	}
}

func (w *Worker) process(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("%s: error processing jobs: %v", w.name, err)
	}
}

// Wake schedules a run as soon as the worker is idle. Wakes that arrive
// while one is already queued are dropped.
func (w *Worker) Wake() {
	select {
	case w.wakeChan <- struct{}{}:
	default:
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Printf("%s: shutdown complete", w.name)
}
