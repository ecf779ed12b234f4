package enrich

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"horse.fit/opinio/internal/metrics"
)

// job is one unit of enrichment work for one review.
type job struct {
	name     string
	reviewID int64
	run      func(ctx context.Context) error
}

// pool executes enrichment jobs on a fixed set of workers. Jobs are
// mutually independent, so there is no ordering between them; a failed
// job is logged and counted, never retried synchronously and never
// surfaced to the ingestion caller.
type pool struct {
	workers int
	jobs    chan job
	wg      sync.WaitGroup
	logger  zerolog.Logger

	mu     sync.Mutex
	closed bool
}

func newPool(workers int, logger zerolog.Logger) *pool {
	if workers <= 0 {
		workers = 1
	}
	return &pool{
		workers: workers,
		jobs:    make(chan job, workers*16),
		logger:  logger,
	}
}

func (p *pool) start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			p.execute(ctx, j)
		}
	}
}

func (p *pool) execute(ctx context.Context, j job) {
	if err := j.run(ctx); err != nil {
		metrics.EnrichJobs.WithLabelValues(j.name, "error").Inc()
		p.logger.Warn().
			Err(err).
			Str("job", j.name).
			Int64("review_id", j.reviewID).
			Msg("enrichment job failed")
		return
	}
	metrics.EnrichJobs.WithLabelValues(j.name, "ok").Inc()
}

// submit enqueues one job. It blocks only while the buffer is full,
// never on job completion. Jobs arriving after close are dropped and
// logged; a request that outlives shutdown must not crash the process.
func (p *pool) submit(ctx context.Context, j job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.logger.Warn().
			Str("job", j.name).
			Int64("review_id", j.reviewID).
			Msg("enrichment pool closed, job dropped")
		return
	}

	select {
	case <-ctx.Done():
	case p.jobs <- j:
	}
}

// close drains the queue and waits for in-flight jobs.
func (p *pool) close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
