package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"horse.fit/opinio/internal/config"
	"horse.fit/opinio/internal/db"
	"horse.fit/opinio/internal/enrich"
	"horse.fit/opinio/internal/ingest"
	"horse.fit/opinio/internal/match"
	"horse.fit/opinio/internal/nlp"
	"horse.fit/opinio/internal/source"
	"horse.fit/opinio/internal/textnorm"
)

// runtime bundles the wiring shared by the import, match and serve
// commands: database pool, ingestion coordinator and the enrichment
// dispatcher with its worker pool.
type runtime struct {
	pool        *db.Pool
	enricher    *enrich.Service
	dispatcher  *enrich.Dispatcher
	coordinator *ingest.Coordinator
}

// buildRuntime wires the full pipeline. ctx bounds both the database
// connect and the lifetime of the enrichment workers.
func buildRuntime(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*runtime, error) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	norm, err := textnorm.NewNormalizer()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("build text normalizer: %w", err)
	}

	encoder := nlp.NewEmbeddingClient(cfg.EmbeddingEndpoint)
	matcher := match.NewMatcher(norm, encoder, logger)
	sentiment := nlp.NewSentimentClient(cfg.SentimentEndpoint)
	aspects := nlp.NewAspectClient(cfg.AspectEndpoint)

	var moderator enrich.Moderator
	if cfg.OpenAIAPIKey != "" {
		client, err := nlp.NewModerationClient(cfg.OpenAIAPIKey)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("build moderation client: %w", err)
		}
		moderator = client
	}

	enricher := enrich.NewService(pool, norm, sentiment, aspects, matcher, moderator, logger)
	dispatcher := enrich.NewDispatcher(ctx, enricher, cfg.EnrichWorkers, logger)

	registry := source.NewRegistry(source.Config{
		MapsBaseURL:      cfg.MapsAPIBaseURL,
		MapsAPIKey:       cfg.MapsAPIKey,
		MapsToken:        cfg.MapsAPIToken,
		SocialBaseURL:    cfg.SocialAPIBaseURL,
		SocialToken:      cfg.SocialAPIToken,
		MessagingBaseURL: cfg.MessagingBaseURL,
		MessagingToken:   cfg.MessagingToken,
		UserAgent:        cfg.ScrapeUserAgent,
		CallDelay:        cfg.SourceCallDelay,
		Timeout:          cfg.SourceTimeout,
		Logger:           logger,
	})

	coordinator := ingest.NewCoordinator(pool, registry, dispatcher, logger)

	return &runtime{
		pool:        pool,
		enricher:    enricher,
		dispatcher:  dispatcher,
		coordinator: coordinator,
	}, nil
}

// close drains the enrichment queue before releasing the pool, so
// already scheduled jobs finish their writes.
func (r *runtime) close() {
	r.dispatcher.Close()
	_ = r.pool.Close()
}
