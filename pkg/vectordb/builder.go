package vectordb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/chative-shop-assistant/pkg/catalog"
)

const BuildSuccessStatus = "Vector DB generated and saved successfully."

var ErrNoSnapshot = errors.New("vector db snapshot not found")

type BuilderConfig struct {
	CatalogPath  string
	StorePath    string
	EmbedderName string
}

// Builder rebuilds the product index from the catalogue CSV and keeps the
// live Index in sync with the persisted snapshot. The configured embedder is
// a template: corpus-fitted embedders are derived from it per snapshot.
type Builder struct {
	cfg      BuilderConfig
	embedder embedding.Embedder
	index    *Index

	mu sync.Mutex
}

func NewBuilder(cfg BuilderConfig, embedder embedding.Embedder, index *Index) (*Builder, error) {
	if cfg.CatalogPath == "" {
		return nil, errors.New("catalog path is required")
	}
	if cfg.StorePath == "" {
		return nil, errors.New("vector store path is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if index == nil {
		index = NewIndex(embedder)
	}
	if cfg.EmbedderName == "" {
		cfg.EmbedderName = "tfidf"
	}
	return &Builder{cfg: cfg, embedder: embedder, index: index}, nil
}

func (b *Builder) Index() *Index { return b.index }

// Build runs the full pipeline: catalogue → chunks → embeddings → SQLite →
// live index swap. The previous snapshot stays live if any step fails.
func (b *Builder) Build(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := catalog.LoadCSV(b.cfg.CatalogPath)
	if err != nil {
		return "", fmt.Errorf("load catalog: %w", err)
	}
	docs := BuildDocuments(c)
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	embedder, err := b.embedderFor(texts)
	if err != nil {
		return "", err
	}
	vectors, err := embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return "", fmt.Errorf("embed chunks: %w", err)
	}

	store, err := OpenSQLiteStore(b.cfg.StorePath)
	if err != nil {
		return "", err
	}
	defer store.Close()

	if err := store.Save(ctx, b.cfg.EmbedderName, docs, vectors); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	if err := b.index.Replace(embedder, docs, vectors); err != nil {
		return "", err
	}

	log.Info().
		Int("chunks", len(docs)).
		Int("products", c.Len()).
		Str("embedder", b.cfg.EmbedderName).
		Str("path", b.cfg.StorePath).
		Msg("vector db built")
	return BuildSuccessStatus, nil
}

// Load restores the persisted snapshot into the live index. It returns
// ErrNoSnapshot when nothing has been built yet.
func (b *Builder) Load(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := os.Stat(b.cfg.StorePath); errors.Is(err, os.ErrNotExist) {
		return ErrNoSnapshot
	}

	store, err := OpenSQLiteStore(b.cfg.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	info, err := store.Info(ctx)
	if err != nil {
		return err
	}
	if info.Count == 0 {
		return ErrNoSnapshot
	}
	if info.Embedder != b.cfg.EmbedderName {
		return fmt.Errorf("snapshot built with %q embedder, configured %q: rebuild the vector db", info.Embedder, b.cfg.EmbedderName)
	}

	docs, vectors, err := store.Load(ctx)
	if err != nil {
		return err
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	embedder, err := b.embedderFor(texts)
	if err != nil {
		return err
	}
	if err := b.index.Replace(embedder, docs, vectors); err != nil {
		return err
	}

	log.Info().Int("chunks", len(docs)).Time("built_at", info.BuiltAt).Msg("vector db loaded")
	return nil
}

func (b *Builder) embedderFor(texts []string) (embedding.Embedder, error) {
	f, ok := b.embedder.(Fitter)
	if !ok {
		return b.embedder, nil
	}
	e, err := f.Fit(texts)
	if err != nil {
		return nil, fmt.Errorf("fit embedder: %w", err)
	}
	return e, nil
}
