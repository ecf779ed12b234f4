package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"horse.fit/opinio/internal/db"
	"horse.fit/opinio/internal/metrics"
	"horse.fit/opinio/internal/source"
)

// ErrUnknownSource is returned when the requested source tag names no
// registered adapter.
var ErrUnknownSource = errors.New("unknown source")

// Store is the slice of the review store an ingestion run touches.
type Store interface {
	GetInstitution(ctx context.Context, institutionID int64) (*db.Institution, error)
	ExistingTexts(ctx context.Context, institutionID int64) (map[string]struct{}, error)
	MaxReviewedAt(ctx context.Context, institutionID int64, source string) (*time.Time, error)
	BulkInsertReviews(ctx context.Context, reviews []db.Review) ([]db.Review, error)
}

// AdapterFactory builds a fresh single-use adapter per run. Satisfied
// by source.Registry.
type AdapterFactory interface {
	New(tag, link string) (source.Adapter, error)
}

// Dispatcher receives the identifiers of freshly persisted reviews.
type Dispatcher interface {
	Dispatch(reviewIDs []int64)
}

// Result summarizes one ingestion run. Partial is set when the source
// failed mid-pagination and only the items fetched before the failure
// were persisted.
type Result struct {
	Inserted     int  `json:"inserted"`
	Skipped      int  `json:"skipped"`
	TotalFetched int  `json:"total_fetched"`
	Partial      bool `json:"partial"`
}

// Coordinator runs source ingestions. Concurrent runs for the same
// institution and source collapse into one via singleflight, so a
// double-triggered import never double-inserts.
type Coordinator struct {
	store      Store
	adapters   AdapterFactory
	dispatcher Dispatcher
	logger     zerolog.Logger
	group      singleflight.Group
}

func NewCoordinator(store Store, adapters AdapterFactory, dispatcher Dispatcher, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:      store,
		adapters:   adapters,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run ingests one source for one institution: resolve the link, fetch
// everything past the since-cursor, drop duplicates and invalid items,
// persist the rest in a single transaction, then hand the new review
// identifiers to the enrichment dispatcher.
func (c *Coordinator) Run(ctx context.Context, institutionID int64, sourceTag string) (Result, error) {
	if !source.KnownTag(sourceTag) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownSource, sourceTag)
	}

	key := fmt.Sprintf("%d:%s", institutionID, sourceTag)
	value, err, _ := c.group.Do(key, func() (any, error) {
		return c.run(ctx, institutionID, sourceTag)
	})
	if err != nil {
		metrics.IngestRuns.WithLabelValues(sourceTag, "error").Inc()
		return Result{}, err
	}

	result := value.(Result)
	status := "ok"
	if result.Partial {
		status = "partial"
	}
	metrics.IngestRuns.WithLabelValues(sourceTag, status).Inc()
	return result, nil
}

func (c *Coordinator) run(ctx context.Context, institutionID int64, sourceTag string) (Result, error) {
	institution, err := c.store.GetInstitution(ctx, institutionID)
	if err != nil {
		return Result{}, err
	}

	link := sourceLink(institution, sourceTag)
	if link == "" {
		return Result{}, fmt.Errorf("institution %d has no %s link", institutionID, sourceTag)
	}

	adapter, err := c.adapters.New(sourceTag, link)
	if err != nil {
		return Result{}, fmt.Errorf("build %s adapter: %w", sourceTag, err)
	}

	since, err := c.store.MaxReviewedAt(ctx, institutionID, sourceTag)
	if err != nil {
		return Result{}, err
	}

	items, fetchErr := adapter.Fetch(ctx, since)
	if fetchErr != nil && len(items) == 0 {
		return Result{}, fmt.Errorf("fetch %s reviews: %w", sourceTag, fetchErr)
	}
	if fetchErr != nil {
		c.logger.Warn().
			Err(fetchErr).
			Int64("institution_id", institutionID).
			Str("source", sourceTag).
			Int("fetched", len(items)).
			Msg("source failed mid-pagination, persisting partial batch")
	}

	existing, err := c.store.ExistingTexts(ctx, institutionID)
	if err != nil {
		return Result{}, err
	}

	result := Result{TotalFetched: len(items), Partial: fetchErr != nil}
	reviews := make([]db.Review, 0, len(items))
	for _, item := range items {
		if item.Text == "" || item.Date.IsZero() {
			result.Skipped++
			continue
		}
		if _, dup := existing[item.Text]; dup {
			result.Skipped++
			continue
		}
		existing[item.Text] = struct{}{}

		externalID := item.ExternalID
		reviews = append(reviews, db.Review{
			InstitutionID: institutionID,
			Text:          item.Text,
			Source:        sourceTag,
			ExternalID:    &externalID,
			ReviewedAt:    item.Date,
		})
	}

	metrics.ReviewsSkipped.WithLabelValues(sourceTag).Add(float64(result.Skipped))

	if len(reviews) == 0 {
		c.logger.Info().
			Int64("institution_id", institutionID).
			Str("source", sourceTag).
			Int("fetched", result.TotalFetched).
			Msg("nothing new to persist")
		return result, nil
	}

	inserted, err := c.store.BulkInsertReviews(ctx, reviews)
	if err != nil {
		return Result{}, fmt.Errorf("persist %s reviews: %w", sourceTag, err)
	}
	result.Inserted = len(inserted)

	metrics.ReviewsInserted.WithLabelValues(sourceTag).Add(float64(result.Inserted))

	reviewIDs := make([]int64, 0, len(inserted))
	for _, review := range inserted {
		reviewIDs = append(reviewIDs, review.ReviewID)
	}
	if c.dispatcher != nil {
		c.dispatcher.Dispatch(reviewIDs)
	}

	c.logger.Info().
		Int64("institution_id", institutionID).
		Str("source", sourceTag).
		Int("fetched", result.TotalFetched).
		Int("inserted", result.Inserted).
		Int("skipped", result.Skipped).
		Bool("partial", result.Partial).
		Msg("ingestion run finished")
	return result, nil
}

// sourceLink picks the institution link column for a source tag.
func sourceLink(institution *db.Institution, sourceTag string) string {
	var link *string
	switch sourceTag {
	case source.TagMaps:
		link = institution.MapsLink
	case source.TagSocial:
		link = institution.SocialLink
	case source.TagScrape:
		link = institution.ScrapeLink
	case source.TagMessaging:
		link = institution.MessagingChannel
	}
	if link == nil {
		return ""
	}
	return *link
}
