package enrich

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/opinio/internal/db"
	"horse.fit/opinio/internal/nlp"
	"horse.fit/opinio/internal/textnorm"
)

type fakeStore struct {
	mu sync.Mutex

	reviews map[int64]*db.Review
	events  []db.Event

	keywords   map[int64][]string
	positives  map[int64][]string
	negatives  map[int64][]string
	sentiments map[int64]string
	confidence map[int64]*float64
	eventIDs   map[int64]*int64
	flagged    map[int64]bool
}

func newFakeStore(reviews ...*db.Review) *fakeStore {
	s := &fakeStore{
		reviews:    make(map[int64]*db.Review),
		keywords:   make(map[int64][]string),
		positives:  make(map[int64][]string),
		negatives:  make(map[int64][]string),
		sentiments: make(map[int64]string),
		confidence: make(map[int64]*float64),
		eventIDs:   make(map[int64]*int64),
		flagged:    make(map[int64]bool),
	}
	for _, r := range reviews {
		s.reviews[r.ReviewID] = r
	}
	return s
}

func (s *fakeStore) GetReview(_ context.Context, reviewID int64) (*db.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[reviewID]
	if !ok {
		return nil, db.ErrReviewNotFound
	}
	return r, nil
}

func (s *fakeStore) ListEvents(context.Context) ([]db.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events, nil
}

func (s *fakeStore) SetKeywords(_ context.Context, reviewID int64, keywords []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords[reviewID] = keywords
	return nil
}

func (s *fakeStore) SetAspects(_ context.Context, reviewID int64, positive, negative []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positives[reviewID] = positive
	s.negatives[reviewID] = negative
	return nil
}

func (s *fakeStore) SetSentiment(_ context.Context, reviewID int64, label string, confidence *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentiments[reviewID] = label
	s.confidence[reviewID] = confidence
	return nil
}

func (s *fakeStore) SetEventMatch(_ context.Context, reviewID int64, eventID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventIDs[reviewID] = eventID
	return nil
}

func (s *fakeStore) SetModeration(_ context.Context, reviewID int64, flagged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagged[reviewID] = flagged
	return nil
}

type fakeSentiment struct {
	prediction *nlp.Prediction
	calls      atomic.Int64
}

func (f *fakeSentiment) Predict(context.Context, string) (*nlp.Prediction, error) {
	f.calls.Add(1)
	return f.prediction, nil
}

type fakeAspects struct {
	positive []string
	negative []string
	calls    atomic.Int64
}

func (f *fakeAspects) Extract(context.Context, string) ([]string, []string, error) {
	f.calls.Add(1)
	return f.positive, f.negative, nil
}

type fakeMatcher struct {
	eventID *int64
	calls   atomic.Int64
}

func (f *fakeMatcher) Match(context.Context, string, []db.Event) (*int64, error) {
	f.calls.Add(1)
	return f.eventID, nil
}

type fakeModerator struct {
	verdict bool
	calls   atomic.Int64
}

func (f *fakeModerator) Flagged(context.Context, string) (bool, error) {
	f.calls.Add(1)
	return f.verdict, nil
}

func newTestService(t *testing.T, store *fakeStore, sentiment *fakeSentiment, aspects *fakeAspects, matcher *fakeMatcher, moderator Moderator) *Service {
	t.Helper()
	norm, err := textnorm.NewNormalizer()
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	return NewService(store, norm, sentiment, aspects, matcher, moderator, zerolog.Nop())
}

func TestTopKeywords(t *testing.T) {
	t.Parallel()

	lemmas := []string{"b", "a", "a", "c", "b", "a", "d", "e", "f", "d"}
	got := topKeywords(lemmas, 5)
	want := []string{"a", "b", "d", "c", "e"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("topKeywords = %v, want %v", got, want)
	}
}

func TestTopKeywordsTiesKeepFirstOccurrence(t *testing.T) {
	t.Parallel()

	got := topKeywords([]string{"x", "y", "z"}, 5)
	want := []string{"x", "y", "z"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("topKeywords = %v, want %v", got, want)
	}
}

func TestDampenLowMarginForcesNeutral(t *testing.T) {
	t.Parallel()

	prediction := &nlp.Prediction{
		Label:      db.SentimentNegative,
		Confidence: 0.55,
	}
	prediction.Probabilities.Negative = 0.55
	prediction.Probabilities.Positive = 0.45

	label, confidence := dampen(prediction)
	if label != db.SentimentNeutral {
		t.Fatalf("label = %q, want %q", label, db.SentimentNeutral)
	}
	if confidence != nil {
		t.Fatalf("confidence = %v, want nil", *confidence)
	}
}

func TestDampenClearMarginPassesThrough(t *testing.T) {
	t.Parallel()

	prediction := &nlp.Prediction{
		Label:      db.SentimentPositive,
		Confidence: 0.91,
	}
	prediction.Probabilities.Negative = 0.09
	prediction.Probabilities.Positive = 0.91

	label, confidence := dampen(prediction)
	if label != db.SentimentPositive {
		t.Fatalf("label = %q, want %q", label, db.SentimentPositive)
	}
	if confidence == nil || *confidence != 0.91 {
		t.Fatalf("confidence = %v, want 0.91", confidence)
	}
}

func TestRunSentimentStoresDampenedLabel(t *testing.T) {
	t.Parallel()

	store := newFakeStore(&db.Review{ReviewID: 7, Text: "еда была нормальная"})
	sentiment := &fakeSentiment{prediction: &nlp.Prediction{Label: db.SentimentNegative, Confidence: 0.52}}
	sentiment.prediction.Probabilities.Negative = 0.52
	sentiment.prediction.Probabilities.Positive = 0.48

	svc := newTestService(t, store, sentiment, &fakeAspects{}, &fakeMatcher{}, nil)
	if err := svc.RunSentiment(context.Background(), 7); err != nil {
		t.Fatalf("RunSentiment: %v", err)
	}

	if store.sentiments[7] != db.SentimentNeutral {
		t.Fatalf("sentiment = %q, want %q", store.sentiments[7], db.SentimentNeutral)
	}
	if store.confidence[7] != nil {
		t.Fatalf("confidence = %v, want nil", *store.confidence[7])
	}
}

func TestEmptyTextSkipsModels(t *testing.T) {
	t.Parallel()

	store := newFakeStore(&db.Review{ReviewID: 3, Text: ""})
	sentiment := &fakeSentiment{prediction: &nlp.Prediction{Label: db.SentimentPositive, Confidence: 0.9}}
	aspects := &fakeAspects{positive: []string{"staff"}}
	matcher := &fakeMatcher{}
	moderator := &fakeModerator{verdict: true}

	svc := newTestService(t, store, sentiment, aspects, matcher, moderator)
	ctx := context.Background()

	if err := svc.RunKeywords(ctx, 3); err != nil {
		t.Fatalf("RunKeywords: %v", err)
	}
	if err := svc.RunAspects(ctx, 3); err != nil {
		t.Fatalf("RunAspects: %v", err)
	}
	if err := svc.RunSentiment(ctx, 3); err != nil {
		t.Fatalf("RunSentiment: %v", err)
	}
	if err := svc.RunEventMatch(ctx, 3); err != nil {
		t.Fatalf("RunEventMatch: %v", err)
	}
	if err := svc.RunModeration(ctx, 3); err != nil {
		t.Fatalf("RunModeration: %v", err)
	}

	if sentiment.calls.Load() != 0 || aspects.calls.Load() != 0 || matcher.calls.Load() != 0 || moderator.calls.Load() != 0 {
		t.Fatalf("models called for empty text: sentiment=%d aspects=%d matcher=%d moderator=%d",
			sentiment.calls.Load(), aspects.calls.Load(), matcher.calls.Load(), moderator.calls.Load())
	}
	if store.sentiments[3] != db.SentimentNeutral {
		t.Fatalf("sentiment = %q, want %q", store.sentiments[3], db.SentimentNeutral)
	}
	if got := store.keywords[3]; len(got) != 0 {
		t.Fatalf("keywords = %v, want empty", got)
	}
	if store.flagged[3] {
		t.Fatal("empty text flagged by moderation")
	}
}

func TestMissingReviewIsNotAnError(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sentiment := &fakeSentiment{prediction: &nlp.Prediction{Label: db.SentimentPositive, Confidence: 0.9}}
	svc := newTestService(t, store, sentiment, &fakeAspects{}, &fakeMatcher{}, nil)

	if err := svc.RunKeywords(context.Background(), 99); err != nil {
		t.Fatalf("RunKeywords: %v", err)
	}
	if sentiment.calls.Load() != 0 {
		t.Fatalf("sentiment called %d times for missing review", sentiment.calls.Load())
	}
	if len(store.keywords) != 0 {
		t.Fatalf("keywords written for missing review: %v", store.keywords)
	}
}

func TestRunKeywordsStoresTopLemmas(t *testing.T) {
	t.Parallel()

	store := newFakeStore(&db.Review{
		ReviewID: 5,
		Text:     "spectacular singers, spectacular singers, wonderful orchestra",
	})
	svc := newTestService(t, store, &fakeSentiment{}, &fakeAspects{}, &fakeMatcher{}, nil)

	if err := svc.RunKeywords(context.Background(), 5); err != nil {
		t.Fatalf("RunKeywords: %v", err)
	}

	got := store.keywords[5]
	if len(got) == 0 || len(got) > maxKeywords {
		t.Fatalf("keywords = %v, want between 1 and %d entries", got, maxKeywords)
	}
}

func TestRunEventMatchStoresVerdict(t *testing.T) {
	t.Parallel()

	eventID := int64(42)
	store := newFakeStore(&db.Review{ReviewID: 8, Text: "great premiere"})
	store.events = []db.Event{{EventID: 42, Name: "Premiere"}}
	matcher := &fakeMatcher{eventID: &eventID}

	svc := newTestService(t, store, &fakeSentiment{}, &fakeAspects{}, matcher, nil)
	if err := svc.RunEventMatch(context.Background(), 8); err != nil {
		t.Fatalf("RunEventMatch: %v", err)
	}

	if matcher.calls.Load() != 1 {
		t.Fatalf("matcher called %d times, want 1", matcher.calls.Load())
	}
	got := store.eventIDs[8]
	if got == nil || *got != 42 {
		t.Fatalf("event id = %v, want 42", got)
	}
}

func TestDispatchSchedulesAllJobs(t *testing.T) {
	t.Parallel()

	store := newFakeStore(
		&db.Review{ReviewID: 1, Text: "lovely show"},
		&db.Review{ReviewID: 2, Text: "awful seats"},
	)
	sentiment := &fakeSentiment{prediction: &nlp.Prediction{Label: db.SentimentPositive, Confidence: 0.9}}
	sentiment.prediction.Probabilities.Positive = 0.9
	sentiment.prediction.Probabilities.Negative = 0.1
	aspects := &fakeAspects{}
	matcher := &fakeMatcher{}
	moderator := &fakeModerator{}

	svc := newTestService(t, store, sentiment, aspects, matcher, moderator)
	dispatcher := NewDispatcher(context.Background(), svc, 2, zerolog.Nop())
	dispatcher.Dispatch([]int64{1, 2})
	dispatcher.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, id := range []int64{1, 2} {
		if _, ok := store.keywords[id]; !ok {
			t.Fatalf("keywords missing for review %d", id)
		}
		if _, ok := store.sentiments[id]; !ok {
			t.Fatalf("sentiment missing for review %d", id)
		}
		if _, ok := store.eventIDs[id]; !ok {
			t.Fatalf("event match missing for review %d", id)
		}
		if _, ok := store.flagged[id]; !ok {
			t.Fatalf("moderation missing for review %d", id)
		}
	}
	if sentiment.calls.Load() != 2 || moderator.calls.Load() != 2 {
		t.Fatalf("calls: sentiment=%d moderator=%d, want 2 each", sentiment.calls.Load(), moderator.calls.Load())
	}
}

func TestDispatchAfterCloseDropsJobs(t *testing.T) {
	t.Parallel()

	store := newFakeStore(&db.Review{ReviewID: 6, Text: "arrived too late"})
	sentiment := &fakeSentiment{prediction: &nlp.Prediction{Label: db.SentimentPositive, Confidence: 0.9}}
	sentiment.prediction.Probabilities.Positive = 0.9
	sentiment.prediction.Probabilities.Negative = 0.1

	svc := newTestService(t, store, sentiment, &fakeAspects{}, &fakeMatcher{}, nil)
	dispatcher := NewDispatcher(context.Background(), svc, 1, zerolog.Nop())
	dispatcher.Close()

	dispatcher.Dispatch([]int64{6})
	dispatcher.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.keywords) != 0 || len(store.sentiments) != 0 {
		t.Fatalf("jobs ran after close: keywords=%v sentiments=%v", store.keywords, store.sentiments)
	}
}

func TestDispatchWithoutModeratorSkipsModerationJob(t *testing.T) {
	t.Parallel()

	store := newFakeStore(&db.Review{ReviewID: 4, Text: "fine evening"})
	sentiment := &fakeSentiment{prediction: &nlp.Prediction{Label: db.SentimentPositive, Confidence: 0.9}}
	sentiment.prediction.Probabilities.Positive = 0.9
	sentiment.prediction.Probabilities.Negative = 0.1

	svc := newTestService(t, store, sentiment, &fakeAspects{}, &fakeMatcher{}, nil)
	dispatcher := NewDispatcher(context.Background(), svc, 1, zerolog.Nop())
	dispatcher.Dispatch([]int64{4})
	dispatcher.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.flagged[4]; ok {
		t.Fatal("moderation ran without a moderator configured")
	}
	if _, ok := store.keywords[4]; !ok {
		t.Fatal("keywords missing")
	}
}
