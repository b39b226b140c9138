package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: empty reply", contractx.ErrValidation)
	}
	return GraphOutput{
		Reply:    reply,
		Success:  in.Success,
		Degraded: in.Degraded,
		Rounds:   in.Rounds,
	}, nil
}
