package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// CompletionRequest is the input of one gateway call. RetriesUsed counts the
// self-correction retries already spent by earlier calls of the same chat
// request; the gateway only retries within what remains of its budget.
type CompletionRequest struct {
	Provider    Provider
	Messages    []*schema.Message
	Tools       []ToolSpec
	RetriesUsed int
}

// Completion is either a final Answer or a set of Calls carried by Message.
// Notes holds self-correction messages appended while retrying and Retries
// how many retries this call spent.
type Completion struct {
	Answer  string
	Calls   []CallRequest
	Message *schema.Message
	Notes   []*schema.Message
	Retries int
}

func (c Completion) HasCalls() bool {
	return len(c.Calls) > 0
}

type ModelGateway interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

type CapabilityInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]string) (string, error)
}
