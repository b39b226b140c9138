package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	statex "github.com/tanpawarit/chative-shop-assistant/agent/state"
)

// SaveHistory persists the user and assistant turns of a successful request.
// Failed requests leave the stored session untouched.
func SaveHistory(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if !in.Success {
		return in, nil
	}

	in.Session.Append(contractx.Turn{Role: contractx.RoleAssistant, Content: in.Reply})
	in.Session.Touch(in.Now)
	if err := store.Save(ctx, in.Session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return in, nil
}
