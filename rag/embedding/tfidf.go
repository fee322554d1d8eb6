package embedding

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// TFIDFConfig configures the lexical vectorizer.
type TFIDFConfig struct {
	// MaxFeatures caps the vocabulary size. Terms with the highest document
	// frequency win; ties break lexicographically for determinism.
	MaxFeatures int `json:"max_features" yaml:"max_features"`
	// NGramMin and NGramMax bound the token n-gram range (inclusive).
	NGramMin int `json:"ngram_min" yaml:"ngram_min"`
	NGramMax int `json:"ngram_max" yaml:"ngram_max"`
}

// DefaultTFIDFConfig returns the production defaults: 5000 features,
// 1-3 token n-grams, English stopword removal.
func DefaultTFIDFConfig() TFIDFConfig {
	return TFIDFConfig{
		MaxFeatures: 5000,
		NGramMin:    1,
		NGramMax:    3,
	}
}

// TFIDF is a corpus-fitted lexical vectorizer. The vocabulary is always
// derived from the entire current corpus: every insertion that changes the
// vocabulary requires a refit and a rebuild of all lexical vectors. Fit and
// Refit are not safe for concurrent use; the engine serializes them behind
// the corpus write lock.
type TFIDF struct {
	config TFIDFConfig

	vocabulary map[string]int
	idf        []float64
	dimension  int
	fitted     bool

	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
	logger       *zap.Logger
}

// NewTFIDF creates an unfitted lexical vectorizer.
func NewTFIDF(config TFIDFConfig, logger *zap.Logger) *TFIDF {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFeatures <= 0 {
		config.MaxFeatures = 5000
	}
	if config.NGramMin <= 0 {
		config.NGramMin = 1
	}
	if config.NGramMax < config.NGramMin {
		config.NGramMax = config.NGramMin
	}
	return &TFIDF{
		config:       config,
		tokenPattern: regexp.MustCompile(`\p{L}[\p{L}\p{N}]*`),
		stopwords:    englishStopwords(),
		logger:       logger,
	}
}

// Name identifies the provider.
func (v *TFIDF) Name() string { return "tfidf" }

// Dimension returns the fitted vocabulary size (0 before fitting).
func (v *TFIDF) Dimension() int { return v.dimension }

// Fitted reports whether the vectorizer has a vocabulary.
func (v *TFIDF) Fitted() bool { return v.fitted }

// Fit builds the vocabulary and IDF table from the full corpus.
// An empty corpus resets the vectorizer to the unfitted state.
func (v *TFIDF) Fit(corpus []string) error {
	if len(corpus) == 0 {
		v.vocabulary = nil
		v.idf = nil
		v.dimension = 0
		v.fitted = false
		return nil
	}

	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, term := range v.terms(text) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	// Highest document frequency first, lexicographic tie-break, then cap.
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > v.config.MaxFeatures {
		terms = terms[:v.config.MaxFeatures]
	}
	sort.Strings(terms)

	v.vocabulary = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		v.vocabulary[term] = i
		// Smoothed IDF, never zero.
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	v.dimension = len(terms)
	v.fitted = true

	v.logger.Debug("tfidf vocabulary fitted",
		zap.Int("documents", len(corpus)),
		zap.Int("vocabulary", v.dimension))
	return nil
}

// Refit returns a new vectorizer with the same configuration fitted on the
// given corpus, leaving the receiver untouched. The engine swaps the fitted
// instance in only after the item is durably stored.
func (v *TFIDF) Refit(corpus []string) (*TFIDF, error) {
	next := NewTFIDF(v.config, v.logger)
	if err := next.Fit(corpus); err != nil {
		return nil, err
	}
	return next, nil
}

// Transform computes the L2-normalized TF-IDF vector for a single text.
func (v *TFIDF) Transform(text string) ([]float64, error) {
	if !v.fitted {
		return nil, ErrNotFitted
	}

	vec := make([]float64, v.dimension)
	for _, term := range v.terms(text) {
		if idx, ok := v.vocabulary[term]; ok {
			vec[idx] += v.idf[idx]
		}
	}

	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// TransformAll computes vectors for every text, one row per input.
func (v *TFIDF) TransformAll(texts []string) ([][]float64, error) {
	rows := make([][]float64, len(texts))
	for i, text := range texts {
		row, err := v.Transform(text)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

// EmbedCorpus fits on the full corpus and returns the full lexical matrix.
func (v *TFIDF) EmbedCorpus(_ context.Context, texts []string) ([][]float64, error) {
	if err := v.Fit(texts); err != nil {
		return nil, err
	}
	return v.TransformAll(texts)
}

// EmbedQuery embeds a query under the currently fitted vocabulary.
func (v *TFIDF) EmbedQuery(_ context.Context, text string) ([]float64, error) {
	return v.Transform(text)
}

// terms tokenizes, drops stopwords, and expands into configured n-grams.
func (v *TFIDF) terms(text string) []string {
	raw := v.tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, t := range raw {
		if _, stop := v.stopwords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}

	if v.config.NGramMax == 1 {
		return tokens
	}

	var out []string
	for n := v.config.NGramMin; n <= v.config.NGramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

func englishStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for",
		"to", "of", "in", "on", "at", "by", "with", "as", "is", "are",
		"was", "were", "be", "been", "being", "it", "its", "this", "that",
		"these", "those", "from", "up", "down", "over", "under", "again",
		"further", "than", "so", "such", "into", "about", "between",
		"through", "during", "before", "after", "above", "below", "out",
		"off", "own", "same", "too", "very", "can", "will", "just", "not",
		"no", "nor", "only", "both", "each", "few", "more", "most",
		"other", "some", "any", "all", "do", "does", "did", "doing",
		"have", "has", "had", "having", "he", "she", "they", "them",
		"their", "we", "our", "you", "your", "i", "me", "my", "what",
		"which", "who", "whom", "how", "when", "where", "why", "there",
		"here", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
