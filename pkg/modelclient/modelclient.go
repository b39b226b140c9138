package modelclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultGroqBaseURL   = "https://api.groq.com/openai/v1"
	DefaultGroqModel     = "llama-3.3-70b-versatile"
)

var ErrMissingAPIKey = errors.New("model client: api key is required")

type ChatModelBuilder interface {
	NewChatModel(ctx context.Context, params Params) (model.ToolCallingChatModel, error)
}

var _ ChatModelBuilder = (*Config)(nil)

// Config describes one OpenAI-compatible endpoint. The same shape is loaded
// under the OPENAI and GROQ prefixes.
type Config struct {
	BaseURL        string        `envconfig:"BASE_URL" split_words:"true"`
	APIKey         string        `envconfig:"API_KEY" split_words:"true"`
	Model          string        `envconfig:"MODEL" split_words:"true"`
	EmbeddingModel string        `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"text-embedding-3-small"`
	Timeout        time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

type Params struct {
	MaxTokens   int
	Temperature float32
}

// WithDefaults fills an empty base url and model.
func (c Config) WithDefaults(baseURL, modelName string) Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = baseURL
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = modelName
	}
	return c
}

func (c Config) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// NewChatModel builds an eino chat model bound to the endpoint.
func (c *Config) NewChatModel(ctx context.Context, params Params) (model.ToolCallingChatModel, error) {
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}

	conf := &openaimodel.ChatModelConfig{
		BaseURL: strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"),
		APIKey:  strings.TrimSpace(c.APIKey),
		Model:   strings.TrimSpace(c.Model),
		Timeout: c.Timeout,
	}
	if params.MaxTokens > 0 {
		maxTokens := params.MaxTokens
		conf.MaxTokens = &maxTokens
	}
	temperature := params.Temperature
	conf.Temperature = &temperature

	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("model client: create chat model: %w", err)
	}
	return m, nil
}

// NewClient creates an OpenAI SDK client for the endpoint, or nil when no
// api key is configured.
func NewClient(cfg Config) *openaisdk.Client {
	if !cfg.Configured() {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := openaisdk.NewClient(opts...)
	return &client
}
