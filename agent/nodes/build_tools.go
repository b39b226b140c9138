package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	toolx "github.com/tanpawarit/chative-shop-assistant/agent/tool"
)

// BuildTools attaches the schemas of capabilities visible to the request
// scope.
func BuildTools(in *GraphState, reg *toolx.Registry) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	in.Tools = toolx.BuildForScope(reg, in.Scope)
	return in, nil
}
