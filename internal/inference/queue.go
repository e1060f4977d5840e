package inference

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/bottomrun/internal/inferlog"
)

// LogQueue is a bounded, single-producer/single-consumer batched writer in
// front of inferlog.Store. The loop enqueues one entry per tick; a
// background worker flushes whenever batchSize rows have accumulated or
// flushInterval has elapsed, whichever comes first, so a burst of ticks
// never blocks on a slow store and a quiet period never holds a row
// longer than flushInterval.
type LogQueue struct {
	store   inferlog.Store
	pending chan inferlog.Entry

	batchSize     int
	flushInterval time.Duration

	wg     sync.WaitGroup
	done   chan struct{}
	closed sync.Once
}

func NewLogQueue(store inferlog.Store, batchSize int, flushInterval time.Duration, capacity int) *LogQueue {
	if batchSize <= 0 {
		batchSize = 64
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if capacity <= 0 {
		capacity = batchSize * 4
	}
	q := &LogQueue{
		store:         store,
		pending:       make(chan inferlog.Entry, capacity),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Enqueue submits an entry for eventual append. Non-blocking unless the
// bounded channel is full, in which case it blocks the caller briefly —
// callers on a 10s+ loop interval should never observe backpressure in
// practice.
func (q *LogQueue) Enqueue(e inferlog.Entry) {
	select {
	case q.pending <- e:
	case <-q.done:
	}
}

func (q *LogQueue) run() {
	defer q.wg.Done()
	ticker := time.NewTicker(q.flushInterval)
	defer ticker.Stop()

	batch := make([]inferlog.Entry, 0, q.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx := context.Background()
		for _, e := range batch {
			if _, err := q.store.Append(ctx, e); err != nil {
				log.Error().Err(err).Str("symbol", e.Symbol).Msg("inference log append failed")
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case e := <-q.pending:
			batch = append(batch, e)
			if len(batch) >= q.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-q.done:
			// Drain whatever is already buffered, then flush once more.
			for {
				select {
				case e := <-q.pending:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close signals the worker to drain and flush, waiting up to grace for it
// to finish. Matches the 2s shutdown-grace budget.
func (q *LogQueue) Close(grace time.Duration) {
	q.closed.Do(func() { close(q.done) })

	doneCh := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(grace):
		log.Warn().Msg("inference log queue drain exceeded shutdown grace")
	}
}
