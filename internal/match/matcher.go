package match

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"horse.fit/opinio/internal/db"
	"horse.fit/opinio/internal/textnorm"
)

// similarityThreshold is the floor a best candidate must clear in the
// semantic stage. At or below it the review stays unmatched.
const similarityThreshold = 0.5

// Encoder embeds a batch of texts. Satisfied by nlp.EmbeddingClient.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float64, error)
}

// Matcher links review text to a scheduled event in two stages: a cheap
// lexical pre-filter over lemma overlap, then an embedding rerank only
// when more than one candidate survives.
type Matcher struct {
	norm    *textnorm.Normalizer
	encoder Encoder
	logger  zerolog.Logger
}

type indexEntry struct {
	eventID        int64
	lemmas         map[string]struct{}
	normalizedName string
}

type candidate struct {
	indexEntry
	overlap int
}

func NewMatcher(norm *textnorm.Normalizer, encoder Encoder, logger zerolog.Logger) *Matcher {
	return &Matcher{
		norm:    norm,
		encoder: encoder,
		logger:  logger,
	}
}

// Match returns the matched event identifier, or nil when no event
// clears both stages. A nil result is a terminal outcome, not an error.
// The event index is rebuilt from the full catalog on every call.
func (m *Matcher) Match(ctx context.Context, reviewText string, events []db.Event) (*int64, error) {
	if len(events) == 0 {
		return nil, nil
	}

	index := m.buildIndex(events)
	reviewLemmas := m.norm.LemmaSet(reviewText)

	candidates := lexicalFilter(index, reviewLemmas)
	if len(candidates) == 0 {
		return nil, nil
	}
	if len(candidates) == 1 {
		return &candidates[0].eventID, nil
	}

	best, similarity, err := m.semanticRerank(ctx, reviewText, candidates)
	if err != nil {
		return nil, err
	}
	if best == nil {
		m.logger.Debug().
			Float64("best_similarity", similarity).
			Int("candidates", len(candidates)).
			Msg("event match below similarity threshold")
		return nil, nil
	}
	return best, nil
}

func (m *Matcher) buildIndex(events []db.Event) []indexEntry {
	index := make([]indexEntry, 0, len(events))
	for _, event := range events {
		index = append(index, indexEntry{
			eventID:        event.EventID,
			lemmas:         m.norm.LemmaSet(event.Name),
			normalizedName: m.norm.Joined(event.Name),
		})
	}
	return index
}

// lexicalFilter keeps every event sharing at least one lemma with the
// review, ordered by overlap size descending. Ties keep catalog order.
func lexicalFilter(index []indexEntry, reviewLemmas map[string]struct{}) []candidate {
	var candidates []candidate
	for _, entry := range index {
		overlap := 0
		for lemma := range entry.lemmas {
			if _, ok := reviewLemmas[lemma]; ok {
				overlap++
			}
		}
		if overlap > 0 {
			candidates = append(candidates, candidate{indexEntry: entry, overlap: overlap})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].overlap > candidates[j].overlap
	})
	return candidates
}

// semanticRerank embeds the review and every candidate name in one
// batch and picks the candidate with maximum cosine similarity. Equal
// maxima resolve to the earlier stage-1 candidate.
func (m *Matcher) semanticRerank(ctx context.Context, reviewText string, candidates []candidate) (*int64, float64, error) {
	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, m.norm.Joined(reviewText))
	for _, cand := range candidates {
		texts = append(texts, cand.normalizedName)
	}

	vectors, err := m.encoder.Encode(ctx, texts)
	if err != nil {
		return nil, 0, fmt.Errorf("encode match batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, 0, fmt.Errorf("encode match batch: expected %d vectors, got %d", len(texts), len(vectors))
	}

	reviewVector := vectors[0]
	bestIdx, bestSimilarity := -1, math.Inf(-1)
	for i := range candidates {
		similarity := cosineSimilarity(reviewVector, vectors[i+1])
		if similarity > bestSimilarity {
			bestIdx, bestSimilarity = i, similarity
		}
	}

	if bestIdx < 0 || bestSimilarity <= similarityThreshold {
		return nil, bestSimilarity, nil
	}
	return &candidates[bestIdx].eventID, bestSimilarity, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
