package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Manager is the registry of available tools. It dispatches model-issued
// calls to the matching tool and tracks the most recent invocation's
// sources until the orchestrator reads and resets them.
//
// The tracked slot is a single mailbox: at most one unconsumed source set
// exists at a time, so concurrent top-level queries sharing one Manager
// must treat read-then-reset as a critical section. Dispatch also returns
// the Invocation directly, which is the leak-free path the orchestrator
// prefers; the slot remains for the read-then-reset contract.
//
// Safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	tools       map[string]Tool
	order       []string // registration order, for stable Definitions()
	lastSources []Source
}

// NewManager creates an empty tool registry.
func NewManager() *Manager {
	return &Manager{tools: make(map[string]Tool)}
}

// Register adds a tool under its name. A duplicate name fails with
// ErrDuplicateTool.
func (m *Manager) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is required")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tools[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, name)
	}
	m.tools[name] = t
	m.order = append(m.order, name)
	return nil
}

// Definitions returns the schema set for the language-model request, in
// registration order.
func (m *Manager) Definitions() []Definition {
	m.mu.Lock()
	defer m.mu.Unlock()

	defs := make([]Definition, 0, len(m.order))
	for _, name := range m.order {
		defs = append(defs, m.tools[name].Definition())
	}
	return defs
}

// Refs resolves the registered names against the Genkit registry so they
// can be offered via ai.WithTools. Tools must have been defined on g
// before the first model call.
func (m *Manager) Refs(g *genkit.Genkit) []ai.ToolRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	refs := make([]ai.ToolRef, 0, len(m.order))
	for _, name := range m.order {
		if t := genkit.LookupTool(g, name); t != nil {
			refs = append(refs, t)
		}
	}
	return refs
}

// Dispatch invokes the named tool. The invocation's sources are also
// recorded in the tracked slot for LastSources. An unregistered name
// fails with ErrUnknownTool.
func (m *Manager) Dispatch(ctx context.Context, name string, args map[string]any) (*Invocation, error) {
	m.mu.Lock()
	t, ok := m.tools[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	inv, err := t.Execute(ctx, args)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.lastSources = append([]Source(nil), inv.Sources...)
	m.mu.Unlock()
	return inv, nil
}

// LastSources returns a copy of the most recently tracked source list.
func (m *Manager) LastSources() []Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Source(nil), m.lastSources...)
}

// Reset clears the tracked slot. The orchestrator calls this exactly once
// per top-level query after reading sources, so nothing leaks into a
// subsequent unrelated query.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSources = nil
}
