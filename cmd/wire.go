package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	llmx "github.com/tanpawarit/chative-shop-assistant/agent/llm"
	"github.com/tanpawarit/chative-shop-assistant/agent/orchestrator"
	promptx "github.com/tanpawarit/chative-shop-assistant/agent/prompt"
	statex "github.com/tanpawarit/chative-shop-assistant/agent/state"
	toolx "github.com/tanpawarit/chative-shop-assistant/agent/tool"
	"github.com/tanpawarit/chative-shop-assistant/pkg/catalog"
	configx "github.com/tanpawarit/chative-shop-assistant/pkg/config"
	"github.com/tanpawarit/chative-shop-assistant/pkg/forecast"
	modelclientx "github.com/tanpawarit/chative-shop-assistant/pkg/modelclient"
	"github.com/tanpawarit/chative-shop-assistant/pkg/vectordb"
)

const (
	embedderTFIDF  = "tfidf"
	embedderOpenAI = "openai"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg     AppConfig
	data    DataConfig
	builder *vectordb.Builder
	orch    *orchestrator.Orchestrator
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close component")
		}
	}
}

func loadConfigs() (*AppConfig, *DataConfig, *modelclientx.Config, *modelclientx.Config, *llmx.Config, error) {
	appCfg, err := configx.New[AppConfig]("APP")
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	dataCfg, err := configx.New[DataConfig]("DATA")
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	openaiCfg, err := configx.New[modelclientx.Config]("OPENAI")
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	groqCfg, err := configx.New[modelclientx.Config]("GROQ")
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	if err := llmCfg.Validate(); err != nil {
		return nil, nil, nil, nil, nil, err
	}

	o := openaiCfg.WithDefaults(modelclientx.DefaultOpenAIBaseURL, modelclientx.DefaultOpenAIModel)
	g := groqCfg.WithDefaults(modelclientx.DefaultGroqBaseURL, modelclientx.DefaultGroqModel)
	return appCfg, dataCfg, &o, &g, llmCfg, nil
}

func newEmbedder(name string, openaiCfg modelclientx.Config) (embedding.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", embedderTFIDF:
		return vectordb.NewTFIDFEmbedder(), nil
	case embedderOpenAI:
		client := modelclientx.NewClient(openaiCfg)
		if client == nil {
			return nil, fmt.Errorf("openai embedder: %w", modelclientx.ErrMissingAPIKey)
		}
		e, err := vectordb.NewOpenAIEmbedder(client, openaiCfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", contractx.ErrValidation, name)
	}
}

func newBuilder(dataCfg DataConfig, openaiCfg modelclientx.Config) (*vectordb.Builder, error) {
	embedder, err := newEmbedder(dataCfg.Embedder, openaiCfg)
	if err != nil {
		return nil, err
	}
	name := strings.ToLower(strings.TrimSpace(dataCfg.Embedder))
	if name == "" {
		name = embedderTFIDF
	}
	return vectordb.NewBuilder(vectordb.BuilderConfig{
		CatalogPath:  dataCfg.CatalogPath,
		StorePath:    dataCfg.VectorDBPath,
		EmbedderName: name,
	}, embedder, nil)
}

func newStore(ctx context.Context, backend statex.Backend) (statex.Store, func() error, error) {
	switch backend {
	case "", statex.BackendMemory:
		return statex.NewMemoryStore(), nil, nil
	case statex.BackendUpstash:
		cfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, nil, err
		}
		store, err := statex.NewUpstashRedisStore(*cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case statex.BackendPostgres:
		cfg, err := configx.New[statex.PostgresConfig]("POSTGRES")
		if err != nil {
			return nil, nil, err
		}
		store, err := statex.NewPostgresStore(ctx, *cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown history backend %q", contractx.ErrValidation, backend)
	}
}

// newBackends registers every provider that has an api key. openai runs on
// the eino chat model, groq on the OpenAI SDK against its compatible api.
func newBackends(ctx context.Context, openaiCfg, groqCfg modelclientx.Config, llmCfg llmx.Config) (map[contractx.Provider]llmx.Backend, error) {
	backends := make(map[contractx.Provider]llmx.Backend, 2)

	if openaiCfg.Configured() {
		m, err := openaiCfg.NewChatModel(ctx, llmCfg.Params())
		if err != nil {
			return nil, err
		}
		b, err := llmx.NewEinoBackend(m)
		if err != nil {
			return nil, err
		}
		backends[contractx.ProviderOpenAI] = b
	}

	if groqCfg.Configured() {
		b, err := llmx.NewOpenAIBackend(modelclientx.NewClient(groqCfg), groqCfg.Model, llmCfg)
		if err != nil {
			return nil, err
		}
		backends[contractx.ProviderGroq] = b
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no model backend configured: set OPENAI_API_KEY or GROQ_API_KEY")
	}
	return backends, nil
}

func loadCatalogue(dataCfg DataConfig) (*catalog.Catalog, *forecast.Service) {
	cat, err := catalog.LoadCSV(dataCfg.CatalogPath)
	if err != nil {
		log.Warn().Err(err).Str("path", dataCfg.CatalogPath).Msg("product catalogue unavailable, availability checks will find no products")
		cat = catalog.New(nil)
	}

	var history *catalog.SalesHistory
	if _, statErr := os.Stat(dataCfg.SalesPath); statErr == nil {
		if history, err = catalog.LoadSalesCSV(dataCfg.SalesPath); err != nil {
			log.Warn().Err(err).Str("path", dataCfg.SalesPath).Msg("sales history unavailable")
			history = nil
		}
	}

	model := forecast.DefaultModel()
	if p := strings.TrimSpace(dataCfg.ModelPath); p != "" {
		if model, err = forecast.LoadModel(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("forecast model unavailable, using built-in weights")
			model = forecast.DefaultModel()
		}
	}
	return cat, forecast.NewService(history, model)
}

// loadIndex restores the persisted snapshot, building it on first start.
func loadIndex(ctx context.Context, b *vectordb.Builder) {
	err := b.Load(ctx)
	switch {
	case err == nil:
		return
	case errors.Is(err, vectordb.ErrNoSnapshot):
		if _, buildErr := b.Build(ctx); buildErr != nil {
			log.Warn().Err(buildErr).Msg("initial vector db build failed, retrieval returns no matches until /create_vectorDB succeeds")
		}
	default:
		log.Warn().Err(err).Msg("vector db snapshot not loaded")
	}
}

func newApp(ctx context.Context) (*app, error) {
	appCfg, dataCfg, openaiCfg, groqCfg, llmCfg, err := loadConfigs()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: *appCfg, data: *dataCfg}

	a.builder, err = newBuilder(*dataCfg, *openaiCfg)
	if err != nil {
		return nil, err
	}
	loadIndex(ctx, a.builder)

	cat, oracle := loadCatalogue(*dataCfg)
	registry, err := toolx.NewShopRegistry(toolx.ShopDeps{
		Catalog:  cat,
		Oracle:   oracle,
		Searcher: a.builder.Index(),
		TopK:     dataCfg.TopK,
	})
	if err != nil {
		return nil, err
	}

	backends, err := newBackends(ctx, *openaiCfg, *groqCfg, *llmCfg)
	if err != nil {
		return nil, err
	}
	gateway, err := llmx.NewGateway(*llmCfg, backends)
	if err != nil {
		return nil, err
	}

	renderer, err := promptx.NewRenderer(promptx.LoadPromptSet())
	if err != nil {
		return nil, err
	}

	store, closeStore, err := newStore(ctx, appCfg.HistoryBackend)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	a.orch, err = orchestrator.New(store, gateway, registry, renderer, orchestrator.Config{
		MaxRounds:       appCfg.MaxRounds,
		DefaultProvider: llmCfg.DefaultProvider,
		DefaultScope:    contractx.Scope(appCfg.DefaultScope),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	log.Info().
		Int("products", cat.Len()).
		Int("indexed_chunks", a.builder.Index().Len()).
		Interface("providers", gateway.Providers()).
		Str("history_backend", string(appCfg.HistoryBackend)).
		Msg("shop assistant ready")
	return a, nil
}
