package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	nodex "github.com/tanpawarit/chative-shop-assistant/agent/nodes"
	statex "github.com/tanpawarit/chative-shop-assistant/agent/state"
	toolx "github.com/tanpawarit/chative-shop-assistant/agent/tool"
)

// scriptedGateway answers through respond, recording every request.
type scriptedGateway struct {
	mu       sync.Mutex
	respond  func(call int, req contractx.CompletionRequest) (contractx.Completion, error)
	requests []contractx.CompletionRequest
}

func (g *scriptedGateway) Complete(ctx context.Context, req contractx.CompletionRequest) (contractx.Completion, error) {
	g.mu.Lock()
	call := len(g.requests)
	g.requests = append(g.requests, contractx.CompletionRequest{
		Provider: req.Provider,
		Messages: append([]*schema.Message(nil), req.Messages...),
		Tools:    req.Tools,
	})
	g.mu.Unlock()
	return g.respond(call, req)
}

func (g *scriptedGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func answer(text string) contractx.Completion {
	return contractx.Completion{Answer: text, Message: schema.AssistantMessage(text, nil)}
}

func callCompletion(callID, name, args string) contractx.Completion {
	msg := schema.AssistantMessage("", []schema.ToolCall{{
		ID:       callID,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
	return contractx.Completion{
		Calls:   []contractx.CallRequest{{CallID: callID, Name: name, Arguments: args}},
		Message: msg,
	}
}

func newTestRegistry(t *testing.T) *toolx.Registry {
	t.Helper()

	reg := toolx.NewRegistry()
	reg.MustRegister(
		toolx.New(toolx.Descriptor{
			Name:        "check_availability",
			Description: "Check stock for a product.",
			Scope:       contractx.ScopeGeneral,
			Params: []toolx.Param{
				{Name: "product_name", Description: "Product name."},
				{Name: "quantity", Description: "Units wanted."},
			},
		}, func(ctx context.Context, args toolx.Args) (string, error) {
			return fmt.Sprintf(`{"product":%q,"can_fulfill":true}`, args.Get("product_name")), nil
		}),
		toolx.New(toolx.Descriptor{
			Name:        "restock_report",
			Description: "Staff restock report.",
			Scope:       contractx.ScopeStaff,
			Params:      []toolx.Param{{Name: "threshold_days", Description: "Days of cover."}},
		}, func(ctx context.Context, args toolx.Args) (string, error) {
			return `{"items":[]}`, nil
		}),
	)
	return reg
}

func newTestOrchestrator(t *testing.T, store statex.Store, gw contractx.ModelGateway, cfg Config) *Orchestrator {
	t.Helper()

	o, err := New(store, gw, newTestRegistry(t), nil, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func toolNames(specs []contractx.ToolSpec) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Name)
	}
	return out
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{}
	reg := toolx.NewRegistry()
	store := statex.NewMemoryStore()

	if _, err := New(nil, gw, reg, nil, Config{}); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := New(store, nil, reg, nil, Config{}); err == nil {
		t.Fatalf("expected error for nil gateway")
	}
	if _, err := New(store, gw, nil, nil, Config{}); err == nil {
		t.Fatalf("expected error for nil registry")
	}
}

func TestHandleMessageRejectsInvalidRequests(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{respond: func(int, contractx.CompletionRequest) (contractx.Completion, error) {
		return answer("unused"), nil
	}}
	o := newTestOrchestrator(t, statex.NewMemoryStore(), gw, Config{})

	if _, err := o.HandleMessage(context.Background(), contractx.ChatRequest{Text: "hi"}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if _, err := o.HandleMessage(context.Background(), contractx.ChatRequest{SessionID: "s1", Text: "  "}); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
	if _, err := o.HandleMessage(context.Background(), contractx.ChatRequest{SessionID: "s1", Text: "hi", Scope: "admin"}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown scope, got %v", err)
	}
	if gw.calls() != 0 {
		t.Fatalf("gateway should not be called for invalid requests, got %d", gw.calls())
	}
}

func TestHandleMessageSingleCapabilityRound(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{respond: func(call int, req contractx.CompletionRequest) (contractx.Completion, error) {
		if call == 0 {
			return callCompletion("call_1", "check_availability", `{"product_name":"Wireless Mouse","quantity":"3"}`), nil
		}
		return answer("Yes, we have 3 Wireless Mouse units ready."), nil
	}}
	store := statex.NewMemoryStore()
	o := newTestOrchestrator(t, store, gw, Config{})

	reply, err := o.HandleMessage(context.Background(), contractx.ChatRequest{SessionID: "s1", Text: "Do you have 3 mice?"})
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if !reply.Success || reply.Degraded {
		t.Fatalf("unexpected flags: %+v", reply)
	}
	if reply.Text != "Yes, we have 3 Wireless Mouse units ready." {
		t.Fatalf("unexpected reply text: %q", reply.Text)
	}
	if reply.Rounds != 2 || gw.calls() != 2 {
		t.Fatalf("expected 2 rounds, got rounds=%d calls=%d", reply.Rounds, gw.calls())
	}

	second := gw.requests[1].Messages
	toolMsgs := 0
	for _, m := range second {
		if m.Role == schema.Tool {
			toolMsgs++
			if m.ToolCallID != "call_1" {
				t.Fatalf("tool message correlated with %q", m.ToolCallID)
			}
			if !strings.Contains(m.Content, "Wireless Mouse") {
				t.Fatalf("unexpected tool payload: %s", m.Content)
			}
		}
	}
	if toolMsgs != 1 {
		t.Fatalf("expected exactly one tool message, got %d", toolMsgs)
	}

	sess, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(sess.Turns) != 2 {
		t.Fatalf("expected user and assistant turns, got %+v", sess.Turns)
	}
	if sess.Turns[0].Role != contractx.RoleUser || sess.Turns[1].Role != contractx.RoleAssistant {
		t.Fatalf("unexpected turn roles: %+v", sess.Turns)
	}
}

func TestHandleMessageScopesTools(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{respond: func(call int, req contractx.CompletionRequest) (contractx.Completion, error) {
		if call == 0 {
			return callCompletion("call_1", "restock_report", `{"threshold_days":"30"}`), nil
		}
		return answer("I can only help with product questions."), nil
	}}
	o := newTestOrchestrator(t, statex.NewMemoryStore(), gw, Config{})

	reply, err := o.HandleMessage(context.Background(), contractx.ChatRequest{SessionID: "s1", Text: "restock please"})
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if !reply.Success {
		t.Fatalf("expected success, got %+v", reply)
	}

	names := toolNames(gw.requests[0].Tools)
	if len(names) != 1 || names[0] != "check_availability" {
		t.Fatalf("general scope offered %v", names)
	}

	var payload string
	for _, m := range gw.requests[1].Messages {
		if m.Role == schema.Tool {
			payload = m.Content
		}
	}
	if !strings.Contains(payload, "restock_report") {
		t.Fatalf("staff capability should be unknown in general scope, payload=%q", payload)
	}

	staff := &scriptedGateway{respond: func(int, contractx.CompletionRequest) (contractx.Completion, error) {
		return answer("ok"), nil
	}}
	so := newTestOrchestrator(t, statex.NewMemoryStore(), staff, Config{DefaultScope: contractx.ScopeStaff})
	if _, err := so.HandleMessage(context.Background(), contractx.ChatRequest{SessionID: "s2", Text: "report"}); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	names = toolNames(staff.requests[0].Tools)
	if len(names) != 1 || names[0] != "restock_report" {
		t.Fatalf("staff scope offered %v", names)
	}
}

func TestHandleMessageCarriesHistoryAcrossRequests(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{respond: func(call int, req contractx.CompletionRequest) (contractx.Completion, error) {
		if call == 0 {
			return answer("The keyboard costs 59.90."), nil
		}
		return answer("It ships in two days."), nil
	}}
	o := newTestOrchestrator(t, statex.NewMemoryStore(), gw, Config{})

	ctx := context.Background()
	if _, err := o.HandleMessage(ctx, contractx.ChatRequest{SessionID: "s1", Text: "How much is the keyboard?"}); err != nil {
		t.Fatalf("first HandleMessage() error = %v", err)
	}
	if _, err := o.HandleMessage(ctx, contractx.ChatRequest{SessionID: "s1", Text: "How fast is shipping?"}); err != nil {
		t.Fatalf("second HandleMessage() error = %v", err)
	}

	var prompt strings.Builder
	for _, m := range gw.requests[1].Messages {
		prompt.WriteString(m.Content)
		prompt.WriteString("\n")
	}
	got := prompt.String()
	for _, want := range []string{
		"user: How much is the keyboard?",
		"assistant: The keyboard costs 59.90.",
		"How fast is shipping?",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("second prompt missing %q:\n%s", want, got)
		}
	}
}

func TestHandleMessageBackendFailureKeepsHistory(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{respond: func(call int, req contractx.CompletionRequest) (contractx.Completion, error) {
		if call == 0 {
			return answer("Hello!"), nil
		}
		return contractx.Completion{}, fmt.Errorf("%w: status 503", contractx.ErrBackendTransport)
	}}
	store := statex.NewMemoryStore()
	o := newTestOrchestrator(t, store, gw, Config{})

	ctx := context.Background()
	if _, err := o.HandleMessage(ctx, contractx.ChatRequest{SessionID: "s1", Text: "hi"}); err != nil {
		t.Fatalf("first HandleMessage() error = %v", err)
	}

	reply, err := o.HandleMessage(ctx, contractx.ChatRequest{SessionID: "s1", Text: "are you there?"})
	if err != nil {
		t.Fatalf("backend failure should not surface as error, got %v", err)
	}
	if reply.Success {
		t.Fatalf("expected success=false, got %+v", reply)
	}
	if !strings.HasPrefix(reply.Text, "Error: ") {
		t.Fatalf("expected Error: prefix, got %q", reply.Text)
	}

	sess, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(sess.Turns) != 2 {
		t.Fatalf("failed request must not persist turns, got %+v", sess.Turns)
	}
}

func TestHandleMessageUnknownProvider(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{respond: func(call int, req contractx.CompletionRequest) (contractx.Completion, error) {
		if req.Provider != contractx.ProviderOpenAI {
			return contractx.Completion{}, fmt.Errorf("%w: %s", contractx.ErrUnknownProvider, req.Provider)
		}
		return answer("ok"), nil
	}}
	store := statex.NewMemoryStore()
	o := newTestOrchestrator(t, store, gw, Config{})

	reply, err := o.HandleMessage(context.Background(), contractx.ChatRequest{SessionID: "s1", Text: "hi", Provider: "Claude"})
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if reply.Success || !strings.Contains(reply.Text, "claude") {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if _, err := store.Load(context.Background(), "s1"); !errors.Is(err, statex.ErrStateNotFound) {
		t.Fatalf("expected no stored session, got %v", err)
	}
}

func TestHandleMessageRoundCap(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{respond: func(call int, req contractx.CompletionRequest) (contractx.Completion, error) {
		return callCompletion(fmt.Sprintf("call_%d", call), "check_availability", `{"product_name":"Mouse","quantity":"1"}`), nil
	}}
	o := newTestOrchestrator(t, statex.NewMemoryStore(), gw, Config{MaxRounds: 3})

	reply, err := o.HandleMessage(context.Background(), contractx.ChatRequest{SessionID: "s1", Text: "loop forever"})
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if !reply.Degraded || reply.Text != nodex.DegradedReply {
		t.Fatalf("expected degraded reply, got %+v", reply)
	}
	if gw.calls() != 3 {
		t.Fatalf("expected 3 gateway calls, got %d", gw.calls())
	}
}

func TestHandleMessageIsolatesConcurrentSessions(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{respond: func(call int, req contractx.CompletionRequest) (contractx.Completion, error) {
		last := req.Messages[len(req.Messages)-1].Content
		return answer("echo " + last[strings.LastIndex(last, "#"):]), nil
	}}
	store := statex.NewMemoryStore()
	o := newTestOrchestrator(t, store, gw, Config{})

	const sessions = 8
	const perSession = 5

	var wg sync.WaitGroup
	errCh := make(chan error, sessions*perSession)
	for s := 0; s < sessions; s++ {
		for i := 0; i < perSession; i++ {
			wg.Add(1)
			go func(s, i int) {
				defer wg.Done()
				sessionID := fmt.Sprintf("s%d", s)
				reply, err := o.HandleMessage(context.Background(), contractx.ChatRequest{
					SessionID: sessionID,
					Text:      fmt.Sprintf("message #%s-%d", sessionID, i),
				})
				if err != nil {
					errCh <- err
					return
				}
				if !strings.Contains(reply.Text, "#"+sessionID+"-") {
					errCh <- fmt.Errorf("session %s got reply %q", sessionID, reply.Text)
				}
			}(s, i)
		}
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent request failed: %v", err)
	}

	for s := 0; s < sessions; s++ {
		sessionID := fmt.Sprintf("s%d", s)
		sess, err := store.Load(context.Background(), sessionID)
		if err != nil {
			t.Fatalf("Load(%s) error = %v", sessionID, err)
		}
		if len(sess.Turns) != 2*perSession {
			t.Fatalf("session %s has %d turns, want %d", sessionID, len(sess.Turns), 2*perSession)
		}
		for _, turn := range sess.Turns {
			if !strings.Contains(turn.Content, "#"+sessionID+"-") {
				t.Fatalf("session %s contains foreign turn %q", sessionID, turn.Content)
			}
		}
	}
	if n := o.locks.size(); n != 0 {
		t.Fatalf("session locks leaked: %d", n)
	}
}
