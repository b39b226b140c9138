package orchestratornode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	statex "github.com/tanpawarit/chative-shop-assistant/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
)

type GraphInput struct {
	SessionID string
	Text      string
	Provider  contractx.Provider
	Scope     contractx.Scope
}

type GraphOutput struct {
	Reply    string
	Success  bool
	Degraded bool
	Rounds   int
}

// GraphState is the per-request orchestration state. Only Session is
// persisted, and only when the request succeeds.
type GraphState struct {
	SessionID string
	Text      string
	Provider  contractx.Provider
	Scope     contractx.Scope
	Now       time.Time

	Session  *statex.Session
	History  string
	Messages []*schema.Message
	Tools    []contractx.ToolSpec

	Reply    string
	Success  bool
	Degraded bool
	Rounds   int
	Retries  int
}

type Defaults struct {
	Provider contractx.Provider
	Scope    contractx.Scope
}

func ValidateRequest(in GraphInput, defaults Defaults, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	provider := contractx.Provider(strings.ToLower(strings.TrimSpace(string(in.Provider))))
	if provider == "" {
		provider = defaults.Provider
	}

	scope := contractx.Scope(strings.ToLower(strings.TrimSpace(string(in.Scope))))
	if scope == "" {
		scope = defaults.Scope
	}
	switch scope {
	case contractx.ScopeGeneral, contractx.ScopeStaff:
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", contractx.ErrValidation, in.Scope)
	}

	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Provider:  provider,
		Scope:     scope,
		Now:       nowFn().UTC(),
	}, nil
}
