package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrWriterClosed is returned by Flush after Close.
var ErrWriterClosed = errors.New("persist: writer closed")

const (
	defaultQueueSize  = 64
	defaultJobTimeout = 5 * time.Second
)

type job struct {
	name string
	run  func(ctx context.Context) error
	done chan struct{}
}

// Writer runs store writes on a single goroutine in the order they were
// enqueued. Callers never wait for a write; failures are logged and dropped.
type Writer struct {
	jobs    chan job
	log     *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewWriter starts the writer goroutine.
func NewWriter(log *zap.Logger) *Writer {
	w := &Writer{
		jobs:    make(chan job, defaultQueueSize),
		log:     log,
		timeout: defaultJobTimeout,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for j := range w.jobs {
		if j.done != nil {
			close(j.done)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		if err := j.run(ctx); err != nil {
			w.log.Error("failed to persist", zap.String("write", j.name), zap.Error(err))
		} else {
			w.log.Debug("persisted", zap.String("write", j.name))
		}
		cancel()
	}
}

// Enqueue schedules fn after every previously enqueued write. It is a no-op
// once the writer is closed.
func (w *Writer) Enqueue(name string, fn func(ctx context.Context) error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.log.Warn("dropping write after close", zap.String("write", name))
		return
	}
	w.jobs <- job{name: name, run: fn}
}

// Flush blocks until every write enqueued before the call has run.
func (w *Writer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrWriterClosed
	}
	w.jobs <- job{done: done}
	w.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending writes and stops the goroutine.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()
	w.wg.Wait()
}
