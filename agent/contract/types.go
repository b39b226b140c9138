package contract

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Scope string

const (
	ScopeGeneral Scope = "general"
	ScopeStaff   Scope = "staff"
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
)

// Turn is one entry of a session's conversation history.
type Turn struct {
	Role           Role   `json:"role"`
	Content        string `json:"content"`
	CallID         string `json:"capability_call_id,omitempty"`
	CapabilityName string `json:"capability_name,omitempty"`
}

// CallRequest is a capability invocation requested by the model. Arguments is
// the raw JSON object emitted by the backend.
type CallRequest struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type CallResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Payload string `json:"payload"`
}

type ChatRequest struct {
	SessionID string   `json:"session_id"`
	Text      string   `json:"user_query"`
	Provider  Provider `json:"provider,omitempty"`
	Scope     Scope    `json:"scope,omitempty"`
}

type ChatReply struct {
	SessionID string `json:"session_id"`
	Text      string `json:"response"`
	Success   bool   `json:"success"`
	Degraded  bool   `json:"degraded,omitempty"`
	Rounds    int    `json:"-"`
}
