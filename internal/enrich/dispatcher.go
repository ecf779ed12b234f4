package enrich

import (
	"context"

	"github.com/rs/zerolog"
)

// Dispatcher fans newly ingested reviews out to the enrichment worker
// pool. Scheduling is fire and forget: the ingest run does not wait
// for jobs to finish, and a failed job only logs and counts.
type Dispatcher struct {
	service *Service
	pool    *pool
	ctx     context.Context
	logger  zerolog.Logger
}

// NewDispatcher starts the worker pool immediately. ctx bounds the
// lifetime of the workers; Close drains the queue on shutdown.
func NewDispatcher(ctx context.Context, service *Service, workers int, logger zerolog.Logger) *Dispatcher {
	p := newPool(workers, logger)
	p.start(ctx)
	return &Dispatcher{service: service, pool: p, ctx: ctx, logger: logger}
}

// Dispatch schedules the enrichment jobs for each review. The
// moderation job is only scheduled when a moderator is configured.
func (d *Dispatcher) Dispatch(reviewIDs []int64) {
	for _, reviewID := range reviewIDs {
		d.pool.submit(d.ctx, job{name: "keywords", reviewID: reviewID, run: d.runner(reviewID, d.service.RunKeywords)})
		d.pool.submit(d.ctx, job{name: "aspects", reviewID: reviewID, run: d.runner(reviewID, d.service.RunAspects)})
		d.pool.submit(d.ctx, job{name: "sentiment", reviewID: reviewID, run: d.runner(reviewID, d.service.RunSentiment)})
		d.pool.submit(d.ctx, job{name: "event_match", reviewID: reviewID, run: d.runner(reviewID, d.service.RunEventMatch)})
		if d.service.moderator != nil {
			d.pool.submit(d.ctx, job{name: "moderation", reviewID: reviewID, run: d.runner(reviewID, d.service.RunModeration)})
		}
	}
}

func (d *Dispatcher) runner(reviewID int64, fn func(context.Context, int64) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return fn(ctx, reviewID)
	}
}

// Close stops accepting work and waits for in-flight jobs.
func (d *Dispatcher) Close() {
	d.pool.close()
}
