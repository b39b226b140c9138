package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	statex "github.com/tanpawarit/chative-shop-assistant/agent/state"
)

// LoadHistory loads the session, or starts a new one, and appends the user
// turn in memory.
func LoadHistory(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	sess, err := store.Load(ctx, in.SessionID)
	switch {
	case errors.Is(err, statex.ErrStateNotFound):
		sess = statex.NewSession(in.SessionID, in.Now)
	case err != nil:
		return nil, fmt.Errorf("load session: %w", err)
	}

	sess.Append(contractx.Turn{Role: contractx.RoleUser, Content: in.Text})
	in.Session = sess
	return in, nil
}
