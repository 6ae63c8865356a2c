// Package cleanup removes the content of deleted users in the background.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vidfriends/shorts/internal/logging"
	"github.com/vidfriends/shorts/internal/metrics"
)

// Cleaner removes every short, edge and blob belonging to a user.
type Cleaner interface {
	DeleteAllShorts(ctx context.Context, userID string) error
}

// Config controls the concurrency of the worker pool.
type Config struct {
	QueueSize  int
	Workers    int
	JobTimeout time.Duration
}

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("cleanup worker closed")

// Worker drains queued user ids through a Cleaner.
type Worker struct {
	cleaner Cleaner
	metrics metrics.Recorder
	logger  *slog.Logger
	timeout time.Duration

	// mu guards closed; senders hold it shared so jobs is never closed
	// under a pending send.
	mu     sync.RWMutex
	closed bool
	jobs   chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker starts cfg.Workers goroutines consuming the queue.
func NewWorker(cleaner Cleaner, rec metrics.Recorder, cfg Config, logger *slog.Logger) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		cleaner: cleaner,
		metrics: rec,
		logger:  logger,
		timeout: cfg.JobTimeout,
		jobs:    make(chan string, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	w.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go w.run()
	}

	return w
}

// Enqueue schedules the removal of userID's content.
func (w *Worker) Enqueue(ctx context.Context, userID string) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ctx.Done():
		return ErrClosed
	case w.jobs <- userID:
		return nil
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (w *Worker) Shutdown(ctx context.Context) error {
	// Cancelling first releases senders blocked on a full queue.
	w.cancel()
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	for userID := range w.jobs {
		w.handle(userID)
	}
}

func (w *Worker) handle(userID string) {
	ctx, cancel := context.WithTimeout(logging.WithLogger(context.Background(), w.logger), w.timeout)
	defer cancel()

	if err := w.cleaner.DeleteAllShorts(ctx, userID); err != nil {
		w.logger.Error("user cleanup failed", slog.String("userId", userID), slog.Any("error", err))
		w.metrics.RecordCleanup(metrics.ResultError)
		return
	}
	w.metrics.RecordCleanup(metrics.ResultOK)
}
