package state

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
)

// Session is the persisted conversation of one session id. Turns keep
// insertion order; nothing else orders them.
type Session struct {
	SessionID string           `json:"session_id"`
	Turns     []contractx.Turn `json:"turns"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func NewSession(sessionID string, now time.Time) *Session {
	return &Session{
		SessionID: sessionID,
		Turns:     make([]contractx.Turn, 0, 8),
		UpdatedAt: now.UTC(),
	}
}

func (s *Session) Append(turns ...contractx.Turn) {
	s.Turns = append(s.Turns, turns...)
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Turns = append([]contractx.Turn(nil), s.Turns...)
	return &cp
}

func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	for i, t := range s.Turns {
		switch t.Role {
		case contractx.RoleUser, contractx.RoleAssistant, contractx.RoleTool:
		default:
			return fmt.Errorf("%w: turn %d has role %q", contractx.ErrValidation, i, t.Role)
		}
	}
	return nil
}
