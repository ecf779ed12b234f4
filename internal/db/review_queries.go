package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrReviewNotFound = errors.New("review not found")

// ExistingTexts returns the set of review texts already persisted for an
// institution across all sources. Dedup is institution-scoped on
// purpose: identical text arriving from a second source is dropped.
func (p *Pool) ExistingTexts(ctx context.Context, institutionID int64) (map[string]struct{}, error) {
	const q = `
SELECT r.text
FROM opinio.reviews r
WHERE r.institution_id = $1
`

	rows, err := p.Query(ctx, q, institutionID)
	if err != nil {
		return nil, fmt.Errorf("query review texts: %w", err)
	}
	defer rows.Close()

	texts := make(map[string]struct{})
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan review text: %w", err)
		}
		texts[text] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review texts: %w", err)
	}
	return texts, nil
}

// MaxReviewedAt returns the most recent reviewed_at for an
// institution+source pair, or nil when no reviews exist yet.
func (p *Pool) MaxReviewedAt(ctx context.Context, institutionID int64, source string) (*time.Time, error) {
	const q = `
SELECT MAX(r.reviewed_at)
FROM opinio.reviews r
WHERE r.institution_id = $1
  AND r.source = $2
`

	var cursor *time.Time
	if err := p.QueryRow(ctx, q, institutionID, source).Scan(&cursor); err != nil {
		return nil, fmt.Errorf("query max reviewed_at: %w", err)
	}
	return cursor, nil
}

// BulkInsertReviews persists the batch inside one transaction. Either
// every review commits or none does. Returned reviews carry their
// database identifiers for enrichment dispatch.
func (p *Pool) BulkInsertReviews(ctx context.Context, reviews []Review) ([]Review, error) {
	if len(reviews) == 0 {
		return nil, nil
	}

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin review batch: %w", err)
	}

	const q = `
INSERT INTO opinio.reviews (institution_id, text, source, external_id, reviewed_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING review_id, created_at
`

	inserted := make([]Review, 0, len(reviews))
	for _, review := range reviews {
		row := tx.QueryRow(ctx, q,
			review.InstitutionID,
			review.Text,
			review.Source,
			review.ExternalID,
			review.ReviewedAt,
		)
		if err := row.Scan(&review.ReviewID, &review.CreatedAt); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("insert review batch: %w", err)
		}
		inserted = append(inserted, review)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit review batch: %w", err)
	}
	return inserted, nil
}

// GetReview loads one review by identifier. Enrichment jobs always load
// fresh rather than trusting a snapshot taken at dispatch time.
func (p *Pool) GetReview(ctx context.Context, reviewID int64) (*Review, error) {
	const q = `
SELECT
	r.review_id,
	r.institution_id,
	r.event_id,
	r.text,
	r.source,
	r.external_id,
	r.sentiment,
	r.confidence,
	r.keywords,
	r.positive_aspects,
	r.negative_aspects,
	r.flagged,
	r.reviewed_at,
	r.created_at
FROM opinio.reviews r
WHERE r.review_id = $1
`

	var review Review
	err := p.QueryRow(ctx, q, reviewID).Scan(
		&review.ReviewID,
		&review.InstitutionID,
		&review.EventID,
		&review.Text,
		&review.Source,
		&review.ExternalID,
		&review.Sentiment,
		&review.Confidence,
		&review.Keywords,
		&review.PosAspects,
		&review.NegAspects,
		&review.Flagged,
		&review.ReviewedAt,
		&review.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("query review %d: %w", reviewID, err)
	}
	return &review, nil
}

// ListUnmatchedReviewIDs returns reviews without an event link, for the
// match maintenance command.
func (p *Pool) ListUnmatchedReviewIDs(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT r.review_id
FROM opinio.reviews r
WHERE r.event_id IS NULL
ORDER BY r.review_id
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query unmatched reviews: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan review id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review ids: %w", err)
	}
	return ids, nil
}

// SetKeywords stores the keyword list for one review.
func (p *Pool) SetKeywords(ctx context.Context, reviewID int64, keywords []string) error {
	payload, err := json.Marshal(emptyIfNil(keywords))
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}

	const q = `
UPDATE opinio.reviews
SET keywords = $2::jsonb
WHERE review_id = $1
`
	tag, err := p.Exec(ctx, q, reviewID, string(payload))
	if err != nil {
		return fmt.Errorf("update keywords review_id=%d: %w", reviewID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// SetAspects stores the positive/negative aspect term lists for one review.
func (p *Pool) SetAspects(ctx context.Context, reviewID int64, positive, negative []string) error {
	posPayload, err := json.Marshal(emptyIfNil(positive))
	if err != nil {
		return fmt.Errorf("marshal positive aspects: %w", err)
	}
	negPayload, err := json.Marshal(emptyIfNil(negative))
	if err != nil {
		return fmt.Errorf("marshal negative aspects: %w", err)
	}

	const q = `
UPDATE opinio.reviews
SET positive_aspects = $2::jsonb,
    negative_aspects = $3::jsonb
WHERE review_id = $1
`
	tag, err := p.Exec(ctx, q, reviewID, string(posPayload), string(negPayload))
	if err != nil {
		return fmt.Errorf("update aspects review_id=%d: %w", reviewID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// SetSentiment stores the sentiment label and model confidence. A nil
// confidence clears the column, which is how dampened neutral calls are
// stored.
func (p *Pool) SetSentiment(ctx context.Context, reviewID int64, label string, confidence *float64) error {
	const q = `
UPDATE opinio.reviews
SET sentiment = $2,
    confidence = $3
WHERE review_id = $1
`
	tag, err := p.Exec(ctx, q, reviewID, label, confidence)
	if err != nil {
		return fmt.Errorf("update sentiment review_id=%d: %w", reviewID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// SetEventMatch links the review to an event, or clears the link when
// eventID is nil. A non-match is a valid terminal outcome.
func (p *Pool) SetEventMatch(ctx context.Context, reviewID int64, eventID *int64) error {
	const q = `
UPDATE opinio.reviews
SET event_id = $2
WHERE review_id = $1
`
	tag, err := p.Exec(ctx, q, reviewID, eventID)
	if err != nil {
		return fmt.Errorf("update event match review_id=%d: %w", reviewID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// SetModeration stores the moderation verdict. Flagged reviews keep
// their text and enrichment; consumers filter on the flag.
func (p *Pool) SetModeration(ctx context.Context, reviewID int64, flagged bool) error {
	const q = `
UPDATE opinio.reviews
SET flagged = $2
WHERE review_id = $1
`
	tag, err := p.Exec(ctx, q, reviewID, flagged)
	if err != nil {
		return fmt.Errorf("update moderation review_id=%d: %w", reviewID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReviewNotFound
	}
	return nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
