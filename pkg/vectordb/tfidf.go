package vectordb

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
)

// Fitter is implemented by embedders that must see the corpus before they
// can embed text. Fit returns a new embedder and leaves the receiver as is.
type Fitter interface {
	Fit(corpus []string) (embedding.Embedder, error)
}

var (
	_ embedding.Embedder = (*TFIDFEmbedder)(nil)
	_ Fitter             = (*TFIDFEmbedder)(nil)

	ErrNotPrepared = errors.New("tfidf embedder not prepared")
)

// TFIDFEmbedder is a local, deterministic vectorizer: the vocabulary is the
// sorted set of corpus terms and vectors are L2-normalized.
type TFIDFEmbedder struct {
	mu           sync.RWMutex
	vocabulary   map[string]int
	idf          []float64
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func NewTFIDFEmbedder() *TFIDFEmbedder {
	return &TFIDFEmbedder{
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’\-][\p{L}\p{N}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Prepare fits the vocabulary in place.
func (e *TFIDFEmbedder) Prepare(corpus []string) error {
	vocabulary, idf, err := e.fit(corpus)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.vocabulary = vocabulary
	e.idf = idf
	e.mu.Unlock()
	return nil
}

func (e *TFIDFEmbedder) Fit(corpus []string) (embedding.Embedder, error) {
	vocabulary, idf, err := e.fit(corpus)
	if err != nil {
		return nil, err
	}
	return &TFIDFEmbedder{
		vocabulary:   vocabulary,
		idf:          idf,
		tokenPattern: e.tokenPattern,
		stopwords:    e.stopwords,
	}, nil
}

func (e *TFIDFEmbedder) fit(corpus []string) (map[string]int, []float64, error) {
	if len(corpus) == 0 {
		return nil, nil, errors.New("empty corpus for tfidf prepare")
	}

	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return nil, nil, errors.New("no tokens found in corpus")
	}
	sort.Strings(terms)

	vocabulary := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		vocabulary[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	return vocabulary, idf, nil
}

func (e *TFIDFEmbedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.idf)
}

func (e *TFIDFEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.idf) == 0 {
		return nil, ErrNotPrepared
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *TFIDFEmbedder) embed(text string) []float64 {
	vec := make([]float64, len(e.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}
	normalizeL2(vec)
	return vec
}

func (e *TFIDFEmbedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := e.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func normalizeL2(vec []float64) {
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] /= norm
	}
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "for", "to", "of", "in", "on", "at", "by", "with",
		"as", "is", "are", "was", "were", "be", "it", "this", "that", "these", "those", "from",
		"than", "so", "into", "about", "can", "will", "just", "do", "does", "i", "you", "me", "my",
		"any", "have", "has", "what", "which", "following", "system",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
