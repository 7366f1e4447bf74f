package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// WorkerPool continuously drains one queue with bounded concurrency. Each
// worker goroutine polls the queue, routes the message to the registered
// JobWorker for its payload kind, and settles the delivery: ack on success,
// nack on error so the queue's retry policy applies.
type WorkerPool struct {
	queue        interfaces.JobQueue
	workers      map[models.JobKind]interfaces.JobWorker
	concurrency  int
	pollInterval time.Duration
	logger       arbor.ILogger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWorkerPool creates a worker pool for a single queue.
func NewWorkerPool(q interfaces.JobQueue, concurrency int, pollInterval time.Duration, logger arbor.ILogger) *WorkerPool {
	if concurrency < 1 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:        q,
		workers:      make(map[models.JobKind]interfaces.JobWorker),
		concurrency:  concurrency,
		pollInterval: pollInterval,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Register adds a job worker for its payload kind.
func (wp *WorkerPool) Register(worker interfaces.JobWorker) {
	wp.workers[worker.Kind()] = worker
	wp.logger.Debug().
		Str("queue", string(wp.queue.Name())).
		Str("job_kind", string(worker.Kind())).
		Msg("Job worker registered")
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running {
		return fmt.Errorf("worker pool for %s already running", wp.queue.Name())
	}
	if len(wp.workers) == 0 {
		return fmt.Errorf("worker pool for %s has no registered workers", wp.queue.Name())
	}
	wp.running = true

	wp.logger.Info().
		Str("queue", string(wp.queue.Name())).
		Int("concurrency", wp.concurrency).
		Msg("Starting worker pool")

	for i := 0; i < wp.concurrency; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	return nil
}

// Stop gracefully drains the pool: stop accepting new jobs, wait for
// in-flight ones to finish, bounded by the context deadline.
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		return nil
	}
	wp.running = false
	wp.mu.Unlock()

	wp.logger.Info().
		Str("queue", string(wp.queue.Name())).
		Msg("Stopping worker pool")

	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logger.Info().
			Str("queue", string(wp.queue.Name())).
			Msg("Worker pool drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool for %s did not drain before deadline: %w", wp.queue.Name(), ctx.Err())
	}
}

// worker is the main poll loop for one concurrency slot.
func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	// Stagger worker starts to spread polling across the interval
	stagger := (wp.pollInterval / time.Duration(wp.concurrency)) * time.Duration(workerID)
	if stagger > 0 {
		select {
		case <-wp.ctx.Done():
			return
		case <-time.After(stagger):
		}
	}

	wp.logger.Debug().
		Str("queue", string(wp.queue.Name())).
		Int("worker_id", workerID).
		Msg("Worker started")

	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().
				Str("queue", string(wp.queue.Name())).
				Int("worker_id", workerID).
				Msg("Worker stopped")
			return

		case <-ticker.C:
			if err := wp.processOne(workerID); err != nil {
				if !errors.Is(err, interfaces.ErrNoMessage) {
					wp.logger.Warn().
						Err(err).
						Str("queue", string(wp.queue.Name())).
						Int("worker_id", workerID).
						Msg("Error processing message")
				}
			}
		}
	}
}

// processOne receives and processes a single message.
func (wp *WorkerPool) processOne(workerID int) error {
	delivery, err := wp.queue.Receive(wp.ctx)
	if err != nil {
		return err
	}

	msg := delivery.Message

	worker, exists := wp.workers[msg.Payload.Kind()]
	if !exists {
		wp.logger.Error().
			Str("queue", string(wp.queue.Name())).
			Str("job_id", msg.ID).
			Str("job_kind", string(msg.Payload.Kind())).
			Msg("No worker registered for job kind")
		// Settle so an undeliverable message cannot loop forever
		if nackErr := delivery.Nack("no worker for kind " + string(msg.Payload.Kind())); nackErr != nil {
			wp.logger.Warn().Err(nackErr).Msg("Failed to nack undeliverable message")
		}
		return fmt.Errorf("no worker for job kind: %s", msg.Payload.Kind())
	}

	wp.logger.Debug().
		Str("queue", string(wp.queue.Name())).
		Str("job_id", msg.ID).
		Int("attempt", msg.Attempt).
		Int("worker_id", workerID).
		Msg("Processing message")

	start := time.Now()
	execErr := worker.Execute(wp.ctx, msg)
	duration := time.Since(start)

	if execErr != nil {
		wp.logger.Error().
			Err(execErr).
			Str("queue", string(wp.queue.Name())).
			Str("job_id", msg.ID).
			Int("attempt", msg.Attempt).
			Dur("duration", duration).
			Msg("Job worker failed")

		if err := delivery.Nack(execErr.Error()); err != nil {
			wp.logger.Warn().
				Err(err).
				Str("job_id", msg.ID).
				Msg("Failed to nack message after failure")
		}
		return execErr
	}

	wp.logger.Info().
		Str("queue", string(wp.queue.Name())).
		Str("job_id", msg.ID).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Job completed")

	if err := delivery.Ack(); err != nil {
		wp.logger.Warn().
			Err(err).
			Str("job_id", msg.ID).
			Msg("Failed to ack message after successful processing")
		return err
	}

	return nil
}
