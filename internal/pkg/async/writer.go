// Package async runs fire-and-forget durable writes and lets shutdown wait for them.
package async

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Writer tracks background writes. A failed write is logged and never
// retried; the caller has already applied its local effect.
type Writer struct {
	base    context.Context
	timeout time.Duration
	wg      sync.WaitGroup

	mu    sync.Mutex
	lanes map[string]chan struct{}
}

// NewWriter creates a Writer. Each write gets its own timeout derived from base.
func NewWriter(base context.Context, timeout time.Duration) *Writer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{
		base:    context.WithoutCancel(base),
		timeout: timeout,
		lanes:   make(map[string]chan struct{}),
	}
}

// Go runs fn in the background. onErr, if set, runs after a failure is logged.
func (w *Writer) Go(op string, fn func(ctx context.Context) error, onErr ...func(error)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(op, fn, onErr)
	}()
}

// GoOrdered runs fn in the background after every earlier write queued on
// the same lane has finished, including its onErr callbacks. Writes on
// different lanes run independently.
func (w *Writer) GoOrdered(lane, op string, fn func(ctx context.Context) error, onErr ...func(error)) {
	done := make(chan struct{})

	w.mu.Lock()
	prev := w.lanes[lane]
	w.lanes[lane] = done
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			if w.lanes[lane] == done {
				delete(w.lanes, lane)
			}
			w.mu.Unlock()
			close(done)
		}()

		if prev != nil {
			<-prev
		}
		w.run(op, fn, onErr)
	}()
}

// WaitLane blocks until every write queued on lane so far has finished.
func (w *Writer) WaitLane(ctx context.Context, lane string) error {
	w.mu.Lock()
	tail := w.lanes[lane]
	w.mu.Unlock()
	if tail == nil {
		return nil
	}

	select {
	case <-tail:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every started write has finished.
func (w *Writer) Wait() {
	w.wg.Wait()
}

func (w *Writer) run(op string, fn func(ctx context.Context) error, onErr []func(error)) {
	ctx, cancel := context.WithTimeout(w.base, w.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("op", op).Msg("Background write failed")
		for _, f := range onErr {
			f(err)
		}
	}
}
