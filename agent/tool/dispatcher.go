package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
)

type UnknownCapabilityError struct {
	Name  string
	Scope contractx.Scope
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("Error: Function '%s' not found in available functions.", e.Name)
}

func (e *UnknownCapabilityError) Unwrap() error {
	return contractx.ErrUnknownCapability
}

type MissingArgumentsError struct {
	Capability string
	Missing    []string
}

func (e *MissingArgumentsError) Error() string {
	return fmt.Sprintf("Missing required parameter(s): %s. Please provide the value(s) to continue.", strings.Join(e.Missing, ", "))
}

func (e *MissingArgumentsError) Unwrap() error {
	return contractx.ErrMissingArguments
}

// ErrorPayload is the structured result returned to the model when a
// capability body fails.
type ErrorPayload struct {
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Available  []string `json:"available_products,omitempty"`
}

func (p ErrorPayload) String() string {
	if p.Status == "" {
		p.Status = "error"
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf(`{"status":"error","message":%q}`, p.Message)
	}
	return string(raw)
}

var _ contractx.CapabilityInvoker = (*Dispatcher)(nil)

// Dispatcher invokes capabilities visible to a single scope.
type Dispatcher struct {
	registry *Registry
	scope    contractx.Scope
}

func NewDispatcher(reg *Registry, scope contractx.Scope) *Dispatcher {
	return &Dispatcher{registry: reg, scope: scope}
}

func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]string) (string, error) {
	if d == nil || d.registry == nil {
		return "", &UnknownCapabilityError{Name: name}
	}
	capability, ok := d.registry.Lookup(d.scope, name)
	if !ok {
		return "", &UnknownCapabilityError{Name: name, Scope: d.scope}
	}

	desc := capability.Descriptor()
	if missing := missingParams(desc, args); len(missing) > 0 {
		return "", &MissingArgumentsError{Capability: desc.Name, Missing: missing}
	}

	return d.call(ctx, capability, Args(args)), nil
}

func (d *Dispatcher) call(ctx context.Context, c Capability, args Args) (payload string) {
	name := c.Descriptor().Name
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("capability", name).Interface("panic", r).Msg("capability panicked")
			payload = ErrorPayload{
				Status:     "error",
				Message:    fmt.Sprintf("%s: %v", contractx.ErrCapabilityExecution, r),
				Suggestion: "Try again later or rephrase the request.",
			}.String()
		}
	}()

	out, err := c.Invoke(ctx, args)
	if err != nil {
		log.Warn().Err(err).Str("capability", name).Dur("elapsed", time.Since(start)).Msg("capability failed")
		return ErrorPayload{
			Status:     "error",
			Message:    err.Error(),
			Suggestion: "Check the provided values and try again.",
		}.String()
	}

	log.Debug().Str("capability", name).Dur("elapsed", time.Since(start)).Msg("capability invoked")
	return out
}

func missingParams(desc Descriptor, args map[string]string) []string {
	var missing []string
	for _, p := range desc.Params {
		v, ok := args[p.Name]
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

// DecodeArguments converts the JSON object emitted by the model into string
// arguments. Scalars are stringified, null becomes empty and nested values are
// kept as JSON text.
func DecodeArguments(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]string{}, nil
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("%w: arguments are not a JSON object: %v", contractx.ErrValidation, err)
	}

	out := make(map[string]string, len(decoded))
	for k, v := range decoded {
		out[k] = stringifyJSON(v)
	}
	return out, nil
}

func stringifyJSON(v json.RawMessage) string {
	trimmed := strings.TrimSpace(string(v))
	switch {
	case trimmed == "" || trimmed == "null":
		return ""
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
		return trimmed
	default:
		return trimmed
	}
}
