package vectordb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

const DefaultTopK = 5

var (
	_ retriever.Retriever = (*Index)(nil)
	_ indexer.Indexer     = (*Index)(nil)

	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

type Match struct {
	Document *schema.Document
	Score    float64
}

// Index is an in-memory brute-force cosine index. Search results are ordered
// by score, ties broken by insertion order, so a snapshot always returns the
// same ranking for the same query.
type Index struct {
	mu       sync.RWMutex
	embedder embedding.Embedder
	docs     []*schema.Document
	vectors  [][]float64
	gen      uint64
}

func NewIndex(embedder embedding.Embedder) *Index {
	return &Index{embedder: embedder}
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Replace swaps the whole snapshot. A non-nil embedder is swapped in the same
// critical section so queries are always embedded in the snapshot's space.
func (ix *Index) Replace(embedder embedding.Embedder, docs []*schema.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents and vectors length mismatch: %d != %d", len(docs), len(vectors))
	}
	if err := checkDimensions(vectors); err != nil {
		return err
	}

	ix.mu.Lock()
	if embedder != nil {
		ix.embedder = embedder
	}
	ix.docs = append([]*schema.Document(nil), docs...)
	ix.vectors = append([][]float64(nil), vectors...)
	ix.gen++
	ix.mu.Unlock()
	return nil
}

// Store embeds docs and appends them to the snapshot.
func (ix *Index) Store(ctx context.Context, docs []*schema.Document, _ ...indexer.Option) ([]string, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	ix.mu.RLock()
	embedder, gen := ix.embedder, ix.gen
	ix.mu.RUnlock()

	vectors, err := embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.gen != gen {
		return nil, errors.New("index snapshot replaced while storing documents")
	}
	if err := checkDimensions(append(ix.vectors[:len(ix.vectors):len(ix.vectors)], vectors...)); err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			d.ID = fmt.Sprintf("doc-%d", len(ix.docs)+i)
		}
		ids[i] = d.ID
	}
	ix.docs = append(ix.docs, docs...)
	ix.vectors = append(ix.vectors, vectors...)
	return ids, nil
}

func (ix *Index) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := DefaultTopK
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	k := DefaultTopK
	if options.TopK != nil {
		k = *options.TopK
	}

	matches, err := ix.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	out := make([]*schema.Document, 0, len(matches))
	for _, m := range matches {
		if options.ScoreThreshold != nil && m.Score < *options.ScoreThreshold {
			continue
		}
		out = append(out, m.Document)
	}
	return out, nil
}

// Search returns the k nearest documents to query. Returned documents are
// copies carrying their score.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.docs) == 0 {
		return nil, nil
	}

	qv, err := ix.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qv) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for query", len(qv))
	}

	scores := make([]float64, len(ix.vectors))
	for i, v := range ix.vectors {
		scores[i] = cosine(v, qv[0])
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	k = min(k, len(order))
	out := make([]Match, 0, k)
	for _, i := range order[:k] {
		out = append(out, Match{Document: withScore(ix.docs[i], scores[i]), Score: scores[i]})
	}
	return out, nil
}

func withScore(d *schema.Document, score float64) *schema.Document {
	meta := make(map[string]any, len(d.MetaData)+1)
	for k, v := range d.MetaData {
		meta[k] = v
	}
	cp := &schema.Document{ID: d.ID, Content: d.Content, MetaData: meta}
	return cp.WithScore(score)
}

func cosine(a, b []float64) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(s) {
		return 0
	}
	return s
}

func checkDimensions(vectors [][]float64) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d values, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}
