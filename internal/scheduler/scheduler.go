// Package scheduler coordinates the periodic loops (ingestor watchdog,
// feature backfill, inference, labeler, calibration monitor, risk session
// reconciliation, daily loss cap reset) as independent tasks under one
// process-wide shutdown signal, grounded on the teacher's single
// ticker-driven job dispatcher (internal/scheduler/scheduler.go in the
// original tree) generalized from cron-style job configs to fixed-interval
// Go tickers, one per job, each skipping its own tick if still running.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is one periodic unit of work. Tick is called at most once
// concurrently per Job; a slow Tick causes the next due tick to be
// skipped rather than queued, matching the spec's "non-reentrant" ticks
// requirement.
type Job interface {
	Name() string
	Tick(ctx context.Context) error
}

// JobFunc adapts a plain function to the Job interface.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (f JobFunc) Name() string                   { return f.JobName }
func (f JobFunc) Tick(ctx context.Context) error { return f.Fn(ctx) }

// Result records one completed Tick invocation, for observability.
type Result struct {
	JobName  string
	StartedAt time.Time
	Duration time.Duration
	Err      error
}

// ResultSink receives a Result after every Tick, success or failure.
type ResultSink func(Result)

type registered struct {
	job      Job
	interval time.Duration
	running  atomic.Bool
}

// Scheduler runs a fixed set of Jobs, each on its own ticker.
type Scheduler struct {
	mu    sync.Mutex
	jobs  []*registered
	sink  ResultSink
	grace time.Duration

	wg sync.WaitGroup
}

// New constructs a Scheduler. grace bounds how long Run waits for
// in-flight ticks to finish after ctx is cancelled (spec: 2s shutdown
// grace).
func New(grace time.Duration, sink ResultSink) *Scheduler {
	if sink == nil {
		sink = func(Result) {}
	}
	return &Scheduler{grace: grace, sink: sink}
}

// Register adds a job that fires every interval once Run starts. Must be
// called before Run.
func (s *Scheduler) Register(job Job, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &registered{job: job, interval: interval})
}

// Run starts every registered job on its own ticker and blocks until ctx
// is cancelled, then waits up to the configured grace for in-flight ticks
// to finish before returning.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	jobs := append([]*registered(nil), s.jobs...)
	s.mu.Unlock()

	for _, r := range jobs {
		s.wg.Add(1)
		go s.runJob(ctx, r)
	}

	<-ctx.Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.grace):
		log.Warn().Msg("scheduler: shutdown grace exceeded, some ticks may still be in flight")
	}
}

func (s *Scheduler) runJob(ctx context.Context, r *registered) {
	defer s.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, r)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, r *registered) {
	if !r.running.CompareAndSwap(false, true) {
		log.Debug().Str("job", r.job.Name()).Msg("scheduler: skipping tick, previous still running")
		return
	}
	defer r.running.Store(false)

	start := time.Now()
	err := r.job.Tick(ctx)
	res := Result{JobName: r.job.Name(), StartedAt: start, Duration: time.Since(start), Err: err}
	if err != nil {
		log.Error().Err(err).Str("job", r.job.Name()).Dur("duration", res.Duration).Msg("scheduler: job tick failed")
	}
	s.sink(res)
}

// RunOnce executes a job's Tick immediately, outside the ticker loop. It
// does not consult a Scheduler's per-job running flag, so it can overlap
// a tick of the same job that a Scheduler is running.
func RunOnce(ctx context.Context, job Job) Result {
	start := time.Now()
	err := job.Tick(ctx)
	return Result{JobName: job.Name(), StartedAt: start, Duration: time.Since(start), Err: err}
}
