package llm

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	modelclientx "github.com/tanpawarit/chative-shop-assistant/pkg/modelclient"
)

type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

type Config struct {
	DefaultProvider contractx.Provider `envconfig:"DEFAULT_PROVIDER" split_words:"true" default:"openai"`
	MaxTokens       int                `envconfig:"MAX_TOKENS" split_words:"true" default:"1024"`
	Temperature     float32            `envconfig:"TEMPERATURE" split_words:"true" default:"0.7"`
	ToolChoice      ToolChoice         `envconfig:"TOOL_CHOICE" split_words:"true" default:"auto"`
	ToolRetryLimit  int                `envconfig:"TOOL_RETRY_LIMIT" split_words:"true" default:"2"`
}

var DefaultConfig = Config{
	DefaultProvider: contractx.ProviderOpenAI,
	MaxTokens:       1024,
	Temperature:     0.7,
	ToolChoice:      ToolChoiceAuto,
	ToolRetryLimit:  2,
}

func (c Config) Validate() error {
	switch c.DefaultProvider {
	case contractx.ProviderOpenAI, contractx.ProviderGroq:
	default:
		return fmt.Errorf("%w: default provider %q", contractx.ErrUnknownProvider, c.DefaultProvider)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive", contractx.ErrValidation)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be within 0.0 and 2.0", contractx.ErrValidation)
	}
	if _, err := ParseToolChoice(string(c.ToolChoice)); err != nil {
		return err
	}
	if c.ToolRetryLimit < 0 {
		return fmt.Errorf("%w: tool retry limit must not be negative", contractx.ErrValidation)
	}
	return nil
}

func (c Config) Params() modelclientx.Params {
	return modelclientx.Params{MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}

func ParseToolChoice(s string) (ToolChoice, error) {
	switch ToolChoice(strings.ToLower(strings.TrimSpace(s))) {
	case "", ToolChoiceAuto:
		return ToolChoiceAuto, nil
	case ToolChoiceNone:
		return ToolChoiceNone, nil
	case ToolChoiceRequired:
		return ToolChoiceRequired, nil
	default:
		return "", fmt.Errorf("%w: tool choice %q", contractx.ErrValidation, s)
	}
}
