package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const defaultJobTimeout = 2 * time.Minute

// Dispatcher runs background jobs detached from the request that triggered them.
//
// Jobs get their own timeout context; there is no ordering, deduplication or retry.
// Errors and panics are logged and otherwise dropped.
type Dispatcher struct {
	timeout time.Duration
	logger  *log.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher whose jobs time out after timeout (2 minutes when zero).
func NewDispatcher(timeout time.Duration, logger *log.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Dispatcher{timeout: timeout, logger: logger}
}

// Go starts fn in a goroutine and returns immediately. It reports false once the dispatcher is closed.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatcher closed, dropping job", "job", name)
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		started := time.Now()
		if err := d.run(ctx, fn); err != nil {
			d.logger.Error("background job failed", "job", name, "error", err, "elapsed", time.Since(started))
			return
		}
		d.logger.Debug("background job finished", "job", name, "elapsed", time.Since(started))
	}()
	return true
}

func (d *Dispatcher) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every started job has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close rejects new jobs and waits for running ones, giving up when ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
