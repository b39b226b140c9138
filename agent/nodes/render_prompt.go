package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	promptx "github.com/tanpawarit/chative-shop-assistant/agent/prompt"
)

func RenderPrompt(ctx context.Context, in *GraphState, renderer *promptx.Renderer) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	in.History = promptx.FormatHistory(in.Session.Turns)
	msgs, err := renderer.Render(ctx, in.Text, in.History)
	if err != nil {
		return nil, err
	}
	in.Messages = msgs
	return in, nil
}
