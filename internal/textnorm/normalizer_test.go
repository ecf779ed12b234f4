package textnorm

import (
	"strings"
	"testing"
)

func TestLemmas_StripsStopwordsDigitsAndPunctuation(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer()
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	lemmas := n.Lemmas("The staff123 was ... absolutely wonderful!!! 42")
	if len(lemmas) != 2 {
		t.Fatalf("expected 2 lemmas, got %d: %v", len(lemmas), lemmas)
	}
	for _, lemma := range lemmas {
		if strings.ContainsAny(lemma, "0123456789!.") {
			t.Fatalf("lemma %q still contains punctuation or digits", lemma)
		}
	}
	if !strings.HasPrefix(lemmas[0], "staff") {
		t.Fatalf("expected first lemma to derive from staff, got %q", lemmas[0])
	}
}

func TestLemmas_PreservesOrder(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer()
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	lemmas := n.Lemmas("excellent orchestra beautiful hall")
	if len(lemmas) != 4 {
		t.Fatalf("expected 4 lemmas, got %v", lemmas)
	}
	if !strings.HasPrefix(lemmas[0], "excellent") || !strings.HasPrefix(lemmas[3], "hall") {
		t.Fatalf("lemma order not preserved: %v", lemmas)
	}
}

func TestLemmas_DropsShortTokens(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer()
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	if lemmas := n.Lemmas("ok go xy"); len(lemmas) != 0 {
		t.Fatalf("expected short tokens to be dropped, got %v", lemmas)
	}
}

func TestLemmas_DomainExcludeList(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer()
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	set := n.LemmaSet("отличный концерт")
	if len(set) != 1 {
		t.Fatalf("expected the venue-category noun to be excluded, got %v", set)
	}
}

func TestLemmaSet_CollapsesDuplicates(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer()
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	set := n.LemmaSet("wonderful wonderful wonderful")
	if len(set) != 1 {
		t.Fatalf("expected a single lemma, got %v", set)
	}
}

func TestJoined_EmptyText(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer()
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	if got := n.Joined("   "); got != "" {
		t.Fatalf("expected empty joined text, got %q", got)
	}
}
