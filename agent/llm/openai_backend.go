package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
)

var _ Backend = (*OpenAIBackend)(nil)

// OpenAIBackend talks to any OpenAI-compatible chat completions endpoint
// through the openai-go SDK. It backs the groq provider.
type OpenAIBackend struct {
	client      *openaisdk.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewOpenAIBackend(client *openaisdk.Client, model string, cfg Config) (*OpenAIBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openai client is nil", contractx.ErrValidation)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%w: model name is required", contractx.ErrValidation)
	}
	return &OpenAIBackend{
		client:      client,
		model:       strings.TrimSpace(model),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (b *OpenAIBackend) Generate(ctx context.Context, messages []*schema.Message, tools []contractx.ToolSpec, choice ToolChoice) (*schema.Message, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:       shared.ChatModel(b.model),
		Messages:    toOpenAIMessages(messages),
		Temperature: openaisdk.Float(float64(b.temperature)),
	}
	if b.maxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(b.maxTokens))
	}
	if len(tools) > 0 {
		params.Tools = toOpenAITools(tools)
		params.ToolChoice = openaisdk.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openaisdk.String(string(choice)),
		}
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in completion response")
	}
	return fromOpenAIMessage(resp.Choices[0].Message), nil
}

func toOpenAIMessages(messages []*schema.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			out = append(out, openaisdk.SystemMessage(m.Content))
		case schema.User:
			out = append(out, openaisdk.UserMessage(m.Content))
		case schema.Tool:
			out = append(out, openaisdk.ToolMessage(m.Content, m.ToolCallID))
		case schema.Assistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openaisdk.AssistantMessage(m.Content))
				continue
			}
			assistant := openaisdk.ChatCompletionAssistantMessageParam{
				ToolCalls: make([]openaisdk.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls)),
			}
			if m.Content != "" {
				assistant.Content.OfString = openaisdk.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openaisdk.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			out = append(out, openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return out
}

func toOpenAITools(specs []contractx.ToolSpec) []openaisdk.ChatCompletionToolParam {
	out := make([]openaisdk.ChatCompletionToolParam, 0, len(specs))
	for _, s := range specs {
		out = append(out, openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        s.Name,
				Description: openaisdk.String(s.Description),
				Parameters:  shared.FunctionParameters(s.JSONSchema()),
			},
		})
	}
	return out
}

func fromOpenAIMessage(m openaisdk.ChatCompletionMessage) *schema.Message {
	msg := &schema.Message{Role: schema.Assistant, Content: m.Content}
	for i, tc := range m.ToolCalls {
		idx := i
		msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
			Index: &idx,
			ID:    tc.ID,
			Type:  "function",
			Function: schema.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return msg
}
