package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"

	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
)

// Param declares one capability parameter. Every parameter is exposed to the
// model as a required string.
type Param struct {
	Name        string
	Description string
}

type Descriptor struct {
	Name        string
	Description string
	Scope       contractx.Scope
	Params      []Param
}

// Args is the decoded argument bag of a capability call.
type Args map[string]string

func (a Args) Get(name string) string {
	return strings.TrimSpace(a[name])
}

type Capability interface {
	Descriptor() Descriptor
	Invoke(ctx context.Context, args Args) (string, error)
}

type funcCapability struct {
	desc Descriptor
	fn   func(ctx context.Context, args Args) (string, error)
}

func (f *funcCapability) Descriptor() Descriptor {
	return f.desc
}

func (f *funcCapability) Invoke(ctx context.Context, args Args) (string, error) {
	return f.fn(ctx, args)
}

// New wraps fn as a Capability described by desc.
func New(desc Descriptor, fn func(ctx context.Context, args Args) (string, error)) Capability {
	return &funcCapability{desc: desc, fn: fn}
}

// Registry is the dispatch table of capabilities keyed by name. Registration
// order is preserved for listing.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]Capability
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Capability, 4)}
}

func (r *Registry) Register(c Capability) error {
	if c == nil {
		return fmt.Errorf("%w: capability is nil", contractx.ErrValidation)
	}
	name := strings.TrimSpace(c.Descriptor().Name)
	if name == "" {
		return fmt.Errorf("%w: capability name is empty", contractx.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: name=%s", contractx.ErrDuplicateCapability, name)
	}
	r.byName[name] = c
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) MustRegister(caps ...Capability) *Registry {
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// ListForScope returns descriptors registered with exactly scope, in
// registration order.
func (r *Registry) ListForScope(scope contractx.Scope) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		desc := r.byName[name].Descriptor()
		if desc.Scope == scope {
			out = append(out, desc)
		}
	}
	return out
}

// Lookup returns the capability only when it is visible in scope.
func (r *Registry) Lookup(scope contractx.Scope, name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byName[strings.TrimSpace(name)]
	if !ok || c.Descriptor().Scope != scope {
		return nil, false
	}
	return c, true
}
