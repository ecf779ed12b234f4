package enrich

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"horse.fit/opinio/internal/db"
	"horse.fit/opinio/internal/nlp"
	"horse.fit/opinio/internal/textnorm"
)

// sentimentDampeningMargin suppresses low-margin polarity calls: when
// the class probabilities are closer than this, the label is forced to
// neutral and the confidence column stays empty.
const sentimentDampeningMargin = 0.15

const maxKeywords = 5

// Store is the slice of the review store the enrichment jobs touch.
// Every job loads its review fresh by identifier and writes its own
// disjoint set of fields.
type Store interface {
	GetReview(ctx context.Context, reviewID int64) (*db.Review, error)
	ListEvents(ctx context.Context) ([]db.Event, error)
	SetKeywords(ctx context.Context, reviewID int64, keywords []string) error
	SetAspects(ctx context.Context, reviewID int64, positive, negative []string) error
	SetSentiment(ctx context.Context, reviewID int64, label string, confidence *float64) error
	SetEventMatch(ctx context.Context, reviewID int64, eventID *int64) error
	SetModeration(ctx context.Context, reviewID int64, flagged bool) error
}

type SentimentModel interface {
	Predict(ctx context.Context, text string) (*nlp.Prediction, error)
}

type AspectModel interface {
	Extract(ctx context.Context, text string) (positive, negative []string, err error)
}

type Moderator interface {
	Flagged(ctx context.Context, text string) (bool, error)
}

type EventMatcher interface {
	Match(ctx context.Context, reviewText string, events []db.Event) (*int64, error)
}

// Service holds the enrichment collaborators, constructed once at
// process start. A nil moderator disables the moderation job.
type Service struct {
	store     Store
	norm      *textnorm.Normalizer
	sentiment SentimentModel
	aspects   AspectModel
	matcher   EventMatcher
	moderator Moderator
	logger    zerolog.Logger
}

func NewService(
	store Store,
	norm *textnorm.Normalizer,
	sentiment SentimentModel,
	aspects AspectModel,
	matcher EventMatcher,
	moderator Moderator,
	logger zerolog.Logger,
) *Service {
	return &Service{
		store:     store,
		norm:      norm,
		sentiment: sentiment,
		aspects:   aspects,
		matcher:   matcher,
		moderator: moderator,
		logger:    logger,
	}
}

// loadReview fetches the review or reports that the job should exit
// quietly because the review no longer exists.
func (s *Service) loadReview(ctx context.Context, reviewID int64) (*db.Review, bool, error) {
	review, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		if errors.Is(err, db.ErrReviewNotFound) {
			s.logger.Info().Int64("review_id", reviewID).Msg("review gone before enrichment, skipping")
			return nil, false, nil
		}
		return nil, false, err
	}
	return review, true, nil
}

// RunKeywords stores the top frequency lemmas of the review text.
func (s *Service) RunKeywords(ctx context.Context, reviewID int64) error {
	review, ok, err := s.loadReview(ctx, reviewID)
	if err != nil || !ok {
		return err
	}
	if review.Text == "" {
		return s.store.SetKeywords(ctx, reviewID, nil)
	}
	return s.store.SetKeywords(ctx, reviewID, topKeywords(s.norm.Lemmas(review.Text), maxKeywords))
}

// RunAspects stores the positively and negatively toned terms.
func (s *Service) RunAspects(ctx context.Context, reviewID int64) error {
	review, ok, err := s.loadReview(ctx, reviewID)
	if err != nil || !ok {
		return err
	}
	if review.Text == "" {
		return s.store.SetAspects(ctx, reviewID, nil, nil)
	}

	positive, negative, err := s.aspects.Extract(ctx, review.Text)
	if err != nil {
		return fmt.Errorf("extract aspects: %w", err)
	}
	return s.store.SetAspects(ctx, reviewID, positive, negative)
}

// RunSentiment classifies the review and applies the dampening rule.
func (s *Service) RunSentiment(ctx context.Context, reviewID int64) error {
	review, ok, err := s.loadReview(ctx, reviewID)
	if err != nil || !ok {
		return err
	}
	if review.Text == "" {
		return s.store.SetSentiment(ctx, reviewID, db.SentimentNeutral, nil)
	}

	prediction, err := s.sentiment.Predict(ctx, review.Text)
	if err != nil {
		return fmt.Errorf("predict sentiment: %w", err)
	}

	label, confidence := dampen(prediction)
	return s.store.SetSentiment(ctx, reviewID, label, confidence)
}

// RunEventMatch links the review to a catalog event when one matches.
func (s *Service) RunEventMatch(ctx context.Context, reviewID int64) error {
	review, ok, err := s.loadReview(ctx, reviewID)
	if err != nil || !ok {
		return err
	}
	if review.Text == "" {
		return s.store.SetEventMatch(ctx, reviewID, nil)
	}

	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("load event catalog: %w", err)
	}

	eventID, err := s.matcher.Match(ctx, review.Text, events)
	if err != nil {
		return fmt.Errorf("match review to event: %w", err)
	}
	return s.store.SetEventMatch(ctx, reviewID, eventID)
}

// RunModeration screens the text and stores the verdict.
func (s *Service) RunModeration(ctx context.Context, reviewID int64) error {
	review, ok, err := s.loadReview(ctx, reviewID)
	if err != nil || !ok {
		return err
	}
	if review.Text == "" {
		return s.store.SetModeration(ctx, reviewID, false)
	}

	flagged, err := s.moderator.Flagged(ctx, review.Text)
	if err != nil {
		return fmt.Errorf("moderate review: %w", err)
	}
	return s.store.SetModeration(ctx, reviewID, flagged)
}

// dampen forces low-margin polarity calls to neutral with no
// confidence; confident calls pass through verbatim.
func dampen(prediction *nlp.Prediction) (string, *float64) {
	margin := prediction.Probabilities.Negative - prediction.Probabilities.Positive
	if margin < 0 {
		margin = -margin
	}
	if margin < sentimentDampeningMargin {
		return db.SentimentNeutral, nil
	}
	confidence := prediction.Confidence
	return prediction.Label, &confidence
}

// topKeywords ranks lemmas by frequency; ties keep first-occurrence
// order, matching how the keyword lists have always been built.
func topKeywords(lemmas []string, limit int) []string {
	if len(lemmas) == 0 {
		return nil
	}

	freq := make(map[string]int, len(lemmas))
	firstSeen := make(map[string]int, len(lemmas))
	order := make([]string, 0, len(lemmas))
	for i, lemma := range lemmas {
		if _, seen := freq[lemma]; !seen {
			firstSeen[lemma] = i
			order = append(order, lemma)
		}
		freq[lemma]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		if freq[order[i]] != freq[order[j]] {
			return freq[order[i]] > freq[order[j]]
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	if len(order) > limit {
		order = order[:limit]
	}
	return order
}
