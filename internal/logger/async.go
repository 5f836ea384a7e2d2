package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

// nopCloser is a no-op Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// queued is a record waiting for a worker, together with the context it was
// logged under.
type queued struct {
	ctx context.Context
	rec slog.Record
	to  slog.Handler
}

// AsyncHandler hands records to a pool of workers through a bounded queue.
//
// The record's context travels with it, detached from cancellation, so a
// ContextHandler behind the queue still sees the request and tenant ids of
// a request that has already finished. Records below slog.LevelError are
// dropped when the queue is full; errors wait for room.
type AsyncHandler struct {
	inner slog.Handler
	*asyncQueue
}

type asyncQueue struct {
	ch      chan queued
	wg      sync.WaitGroup
	dropped atomic.Int64
	root    slog.Handler
}

// NewAsyncHandler creates an AsyncHandler with the given queue capacity and
// worker count.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	q := &asyncQueue{ch: make(chan queued, chanSize), root: inner}
	for range workers {
		q.wg.Add(1)
		go q.drain()
	}
	return &AsyncHandler{inner: inner, asyncQueue: q}
}

func (q *asyncQueue) drain() {
	defer q.wg.Done()
	for item := range q.ch {
		_ = item.to.Handle(item.ctx, item.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues a copy of the record.
func (h *AsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if ctx == nil {
		ctx = context.Background()
	}
	item := queued{ctx: context.WithoutCancel(ctx), rec: rec.Clone(), to: h.inner}
	if rec.Level >= slog.LevelError {
		h.ch <- item
		return nil
	}
	select {
	case h.ch <- item:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns an AsyncHandler sharing the same queue.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), asyncQueue: h.asyncQueue}
}

// WithGroup returns an AsyncHandler sharing the same queue.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), asyncQueue: h.asyncQueue}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.dropped.Load()
}

// Close drains the queue and stops the workers. If records were dropped, a
// final warning with the count is written.
func (h *AsyncHandler) Close() {
	close(h.ch)
	h.wg.Wait()
	if n := h.dropped.Load(); n > 0 {
		rec := slog.NewRecord(time.Now(), slog.LevelWarn, "log records dropped", 0)
		rec.AddAttrs(slog.Int64("dropped", n))
		_ = h.root.Handle(context.Background(), rec)
	}
}
