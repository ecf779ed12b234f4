package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinio_ingest_runs_total",
		Help: "Ingestion runs by source and outcome.",
	}, []string{"source", "status"})

	ReviewsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinio_reviews_inserted_total",
		Help: "Reviews persisted per source.",
	}, []string{"source"})

	ReviewsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinio_reviews_skipped_total",
		Help: "Fetched items dropped as duplicates per source.",
	}, []string{"source"})

	EnrichJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinio_enrich_jobs_total",
		Help: "Enrichment job executions by job type and outcome.",
	}, []string{"job", "status"})
)
