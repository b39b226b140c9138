package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
)

// SelfCorrectionNote is appended as an assistant message before a backend
// call is retried after a tool formatting failure.
const SelfCorrectionNote = "I attempted to call a function but encountered a formatting issue. Let me try a different approach without using the tool."

// Backend produces one assistant message from a provider.
type Backend interface {
	Generate(ctx context.Context, messages []*schema.Message, tools []contractx.ToolSpec, choice ToolChoice) (*schema.Message, error)
}

// choiceSupporter is implemented by backends that cannot honour every tool
// choice.
type choiceSupporter interface {
	SupportsToolChoice(choice ToolChoice) bool
}

var _ contractx.ModelGateway = (*Gateway)(nil)

type Gateway struct {
	backends   map[contractx.Provider]Backend
	choice     ToolChoice
	retryLimit int
}

func NewGateway(cfg Config, backends map[contractx.Provider]Backend) (*Gateway, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: at least one model backend is required", contractx.ErrValidation)
	}
	choice, err := ParseToolChoice(string(cfg.ToolChoice))
	if err != nil {
		return nil, err
	}
	registered := make(map[contractx.Provider]Backend, len(backends))
	for p, b := range backends {
		if b != nil {
			registered[p] = b
		}
	}
	g := &Gateway{
		backends:   registered,
		choice:     choice,
		retryLimit: max(cfg.ToolRetryLimit, 0),
	}
	for _, p := range g.UnforcedProviders() {
		log.Warn().
			Str("provider", string(p)).
			Str("tool_choice", string(choice)).
			Msg("backend cannot force tool choice, sending auto")
	}
	return g, nil
}

// UnforcedProviders lists the providers whose backend silently downgrades the
// configured tool choice.
func (g *Gateway) UnforcedProviders() []contractx.Provider {
	var out []contractx.Provider
	for _, p := range g.Providers() {
		if cs, ok := g.backends[p].(choiceSupporter); ok && !cs.SupportsToolChoice(g.choice) {
			out = append(out, p)
		}
	}
	return out
}

func (g *Gateway) Providers() []contractx.Provider {
	out := make([]contractx.Provider, 0, len(g.backends))
	for _, p := range []contractx.Provider{contractx.ProviderOpenAI, contractx.ProviderGroq} {
		if _, ok := g.backends[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (g *Gateway) Complete(ctx context.Context, req contractx.CompletionRequest) (contractx.Completion, error) {
	backend, ok := g.backends[req.Provider]
	if !ok {
		return contractx.Completion{}, fmt.Errorf("%w: %q", contractx.ErrUnknownProvider, req.Provider)
	}

	messages := append([]*schema.Message(nil), req.Messages...)
	used := max(req.RetriesUsed, 0)
	choice := g.choice
	if used > 0 {
		choice = ToolChoiceAuto
	}
	var notes []*schema.Message

	for attempt := 0; ; attempt++ {
		msg, err := backend.Generate(ctx, messages, req.Tools, choice)
		if err == nil {
			err = checkMarkupLeak(msg)
		}
		if err == nil {
			c := toCompletion(msg, notes)
			c.Retries = attempt
			return c, nil
		}

		failed := contractx.Completion{Notes: notes, Retries: attempt}
		if ctx.Err() != nil {
			return failed, fmt.Errorf("%w: %v", contractx.ErrBackendTransport, ctx.Err())
		}
		if !isToolFormattingError(err) {
			return failed, fmt.Errorf("%w: %s: %v", contractx.ErrBackendTransport, req.Provider, err)
		}
		if used+attempt >= g.retryLimit {
			return failed, fmt.Errorf("%w: %w: %s: %v", contractx.ErrBackendTransport, contractx.ErrToolFormatting, req.Provider, err)
		}

		log.Warn().Err(err).
			Str("provider", string(req.Provider)).
			Int("retry", used+attempt+1).
			Int("retry_limit", g.retryLimit).
			Msg("tool formatting failure, retrying")

		note := schema.AssistantMessage(SelfCorrectionNote, nil)
		messages = append(messages, note)
		notes = append(notes, note)
		choice = ToolChoiceAuto
	}
}

func isToolFormattingError(err error) bool {
	if errors.Is(err, contractx.ErrToolFormatting) {
		return true
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "tool") || strings.Contains(text, "function")
}

// checkMarkupLeak flags answers where the model wrote its call as text
// instead of emitting a structured tool call.
func checkMarkupLeak(msg *schema.Message) error {
	if msg == nil {
		return fmt.Errorf("empty response from model")
	}
	if len(msg.ToolCalls) == 0 && strings.Contains(msg.Content, "<function") {
		return fmt.Errorf("%w: raw function markup in content", contractx.ErrToolFormatting)
	}
	return nil
}

func toCompletion(msg *schema.Message, notes []*schema.Message) contractx.Completion {
	if len(msg.ToolCalls) == 0 {
		return contractx.Completion{Answer: strings.TrimSpace(msg.Content), Message: msg, Notes: notes}
	}

	out := &schema.Message{
		Role:      schema.Assistant,
		Content:   msg.Content,
		ToolCalls: make([]schema.ToolCall, len(msg.ToolCalls)),
	}
	calls := make([]contractx.CallRequest, 0, len(msg.ToolCalls))
	seen := make(map[string]struct{}, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		id := strings.TrimSpace(tc.ID)
		if _, dup := seen[id]; id == "" || dup {
			id = newCallID()
		}
		seen[id] = struct{}{}

		tc.ID = id
		if tc.Type == "" {
			tc.Type = "function"
		}
		out.ToolCalls[i] = tc
		calls = append(calls, contractx.CallRequest{
			CallID:    id,
			Name:      strings.TrimSpace(tc.Function.Name),
			Arguments: tc.Function.Arguments,
		})
	}
	return contractx.Completion{Calls: calls, Message: out, Notes: notes}
}

func newCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
