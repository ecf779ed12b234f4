package textnorm

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
	"gopkg.in/yaml.v3"

	"horse.fit/opinio/internal/langdetect"
)

//go:embed stopwords.yaml
var stopwordsYAML []byte

const minTokenRunes = 3

type stopwordFile struct {
	Russian []string `yaml:"russian"`
	English []string `yaml:"english"`
	Exclude []string `yaml:"exclude"`
}

// Normalizer turns raw review or event text into an ordered sequence of
// lemmas. It is built once at process start and shared by keyword
// extraction and event matching.
type Normalizer struct {
	stopwords map[string]struct{}
}

func NewNormalizer() (*Normalizer, error) {
	var file stopwordFile
	if err := yaml.Unmarshal(stopwordsYAML, &file); err != nil {
		return nil, fmt.Errorf("parse embedded stopword lists: %w", err)
	}

	stopwords := make(map[string]struct{}, len(file.Russian)+len(file.English)+len(file.Exclude))
	for _, list := range [][]string{file.Russian, file.English, file.Exclude} {
		for _, word := range list {
			word = strings.ToLower(strings.TrimSpace(word))
			if word != "" {
				stopwords[word] = struct{}{}
			}
		}
	}
	if len(stopwords) == 0 {
		return nil, fmt.Errorf("embedded stopword lists are empty")
	}

	return &Normalizer{stopwords: stopwords}, nil
}

// Lemmas runs the full pipeline: lowercase, strip punctuation and
// digits, tokenize, drop stopwords and short tokens, stem each survivor
// to its base form. Input order is preserved.
func (n *Normalizer) Lemmas(text string) []string {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	stemLang := stemLanguage(text)

	lemmas := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, stop := n.stopwords[token]; stop {
			continue
		}
		lemmas = append(lemmas, stemToken(token, stemLang))
	}
	return lemmas
}

// LemmaSet returns the lemmas of text as a set, for overlap comparisons
// where order is irrelevant.
func (n *Normalizer) LemmaSet(text string) map[string]struct{} {
	lemmas := n.Lemmas(text)
	set := make(map[string]struct{}, len(lemmas))
	for _, lemma := range lemmas {
		set[lemma] = struct{}{}
	}
	return set
}

// Joined returns the normalized text as a single space-separated
// string, the shape embedding models are fed.
func (n *Normalizer) Joined(text string) string {
	return strings.Join(n.Lemmas(text), " ")
}

func tokenize(text string) []string {
	lowered := strings.ToLower(text)

	var builder strings.Builder
	builder.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteByte(' ')
		}
	}

	fields := strings.Fields(builder.String())
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len([]rune(field)) < minTokenRunes {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

// stemLanguage picks the snowball stemmer from the detected text
// language. Cyrillic-heavy text short-circuits to Russian so one-line
// reviews do not depend on the statistical detector.
func stemLanguage(text string) string {
	if isMostlyCyrillic(text) {
		return "russian"
	}
	switch langdetect.DetectISO6391(text) {
	case "ru":
		return "russian"
	default:
		return "english"
	}
}

func stemToken(token, language string) string {
	stemmed, err := snowball.Stem(token, language, false)
	if err != nil || stemmed == "" {
		return token
	}
	return stemmed
}

func isMostlyCyrillic(text string) bool {
	letters, cyrillic := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Cyrillic, r) {
			cyrillic++
		}
	}
	return letters > 0 && cyrillic*2 > letters
}
