package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	toolx "github.com/tanpawarit/chative-shop-assistant/agent/tool"
)

const (
	DefaultMaxRounds = 8

	DegradedReply = "I'm sorry, I couldn't finish looking that up within the allowed number of steps. Please try rephrasing or narrowing your question."
	EmptyReply    = "I'm sorry, I don't have an answer for that right now."
)

// RunToolLoop alternates gateway calls and capability dispatch until the
// model answers in plain text. The self-correction retry budget is shared by
// every gateway call of the request. maxRounds caps gateway calls; when the model
// still asks for capabilities on the last allowed call, no further dispatch
// happens and the degraded reply is returned. Backend failures end the loop
// with an "Error: ..." reply and Success false.
func RunToolLoop(
	ctx context.Context,
	in *GraphState,
	gateway contractx.ModelGateway,
	invoker contractx.CapabilityInvoker,
	maxRounds int,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	logger := log.With().Str("session_id", in.SessionID).Str("provider", string(in.Provider)).Logger()
	messages := append([]*schema.Message(nil), in.Messages...)

	for round := 1; round <= maxRounds; round++ {
		in.Rounds = round

		completion, err := gateway.Complete(ctx, contractx.CompletionRequest{
			Provider:    in.Provider,
			Messages:    messages,
			Tools:       in.Tools,
			RetriesUsed: in.Retries,
		})
		in.Retries += completion.Retries
		if err != nil {
			logger.Error().Err(err).Int("round", round).Msg("model gateway failed")
			in.Reply = "Error: " + err.Error()
			in.Success = false
			in.Messages = messages
			return in, nil
		}
		messages = append(messages, completion.Notes...)

		if !completion.HasCalls() {
			in.Reply = completion.Answer
			if in.Reply == "" {
				in.Reply = EmptyReply
			}
			in.Success = true
			in.Messages = messages
			return in, nil
		}

		if round == maxRounds {
			logger.Warn().Int("round", round).Int("calls", len(completion.Calls)).Msg("round cap reached with pending capability calls")
			break
		}

		messages = append(messages, completion.Message)
		for _, call := range completion.Calls {
			payload := dispatch(ctx, invoker, call)
			logger.Debug().Int("round", round).Str("capability", call.Name).Str("call_id", call.CallID).Msg("capability dispatched")
			messages = append(messages, schema.ToolMessage(payload, call.CallID))
		}
	}

	in.Reply = DegradedReply
	in.Degraded = true
	in.Success = true
	in.Messages = messages
	return in, nil
}

// dispatch always yields a payload for the model; dispatcher errors are
// reported back as tool output so the model can recover.
func dispatch(ctx context.Context, invoker contractx.CapabilityInvoker, call contractx.CallRequest) string {
	args, err := toolx.DecodeArguments(call.Arguments)
	if err != nil {
		return toolx.ErrorPayload{
			Status:     "error",
			Message:    fmt.Sprintf("Could not parse arguments for %s: %v", call.Name, err),
			Suggestion: "Send the arguments as a JSON object of strings.",
		}.String()
	}

	payload, err := invoker.Invoke(ctx, call.Name, args)
	switch {
	case err == nil:
		return payload
	case errors.Is(err, contractx.ErrUnknownCapability), errors.Is(err, contractx.ErrMissingArguments):
		return err.Error()
	default:
		return toolx.ErrorPayload{Status: "error", Message: err.Error()}.String()
	}
}
