package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-pipeline/internal/logger"
)

// WorkerConfig tunes the queue polling loop.
type WorkerConfig struct {
	// PollInterval is how often the queue is checked when idle.
	PollInterval time.Duration

	// Concurrency is the number of jobs handled in parallel.
	Concurrency int
}

// DefaultWorkerConfig returns the standard polling settings.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: 2 * time.Second,
		Concurrency:  1,
	}
}

// Worker polls the job queue and hands each claimed job to the
// orchestrator. The queue lease provides redelivery, so a crash between
// claim and resolution loses nothing.
type Worker struct {
	config       WorkerConfig
	queue        driven.JobQueue
	orchestrator *Orchestrator

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewWorker creates a queue worker.
func NewWorker(config WorkerConfig, queue driven.JobQueue, orchestrator *Orchestrator) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Worker{
		config:       config,
		queue:        queue,
		orchestrator: orchestrator,
	}
}

// Start begins the polling loop. This method blocks until Stop is
// called or the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.run(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		w.wg.Wait()
		return ctx.Err()
	case <-w.stopCh:
		w.wg.Wait()
		return nil
	}
}

// Stop gracefully shuts down the worker, waiting for in-flight jobs.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	return nil
}

// run is a single polling goroutine. It drains the queue, then sleeps
// for the poll interval before checking again.
func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain handles jobs until the queue reports empty.
func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		qj, err := w.queue.Dequeue(ctx)
		if err != nil {
			logger.Error("worker: failed to dequeue: %v", err)
			return
		}
		if qj == nil {
			return
		}

		if err := w.orchestrator.HandleJob(ctx, qj); err != nil {
			logger.Error("worker: job %d for document %s failed: %v", qj.ID, qj.Job.DocumentID, err)
		}
	}
}
