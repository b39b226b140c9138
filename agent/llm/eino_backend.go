package llm

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
)

var _ Backend = (*EinoBackend)(nil)

// EinoBackend drives an eino tool-calling chat model. Tools are bound per call
// since the set depends on the request scope.
type EinoBackend struct {
	model einomodel.ToolCallingChatModel
}

func NewEinoBackend(m einomodel.ToolCallingChatModel) (*EinoBackend, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: chat model is nil", contractx.ErrValidation)
	}
	return &EinoBackend{model: m}, nil
}

// SupportsToolChoice reports false for required since the eino model exposes
// no forcing option.
func (b *EinoBackend) SupportsToolChoice(choice ToolChoice) bool {
	return choice != ToolChoiceRequired
}

// Generate binds tools unless choice is none. Required is sent as auto, the
// eino model exposes no forcing option.
func (b *EinoBackend) Generate(ctx context.Context, messages []*schema.Message, tools []contractx.ToolSpec, choice ToolChoice) (*schema.Message, error) {
	m := b.model
	if choice != ToolChoiceNone && len(tools) > 0 {
		bound, err := b.model.WithTools(contractx.ToolInfos(tools))
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrToolFormatting, err)
		}
		m = bound
	}

	msg, err := m.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}
	return msg, nil
}
