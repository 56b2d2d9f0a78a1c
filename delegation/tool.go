package delegation

import (
	"context"
	"sync"

	"github.com/vinayprograms/handoff/session"
)

// Tool is the caller-facing surface bound to one parent session. An
// agent holding a Tool can fan work out to background sessions and
// collect the results later, identifying each task only by its key.
type Tool struct {
	reg             *Registry
	parentSessionID string
	parentAgent     string

	mu    sync.Mutex
	scope string // resolved lazily, then cached
}

// Ack is the immediate response to starting a delegation. It echoes
// identity only; results arrive later via Read.
type Ack struct {
	Key   string
	Agent string
}

// NewTool creates a tool bound to the given parent session.
func NewTool(reg *Registry, parentSessionID, parentAgent string) *Tool {
	return &Tool{
		reg:             reg,
		parentSessionID: parentSessionID,
		parentAgent:     parentAgent,
	}
}

// Start launches a delegated task and returns immediately with an
// acknowledgment. The description doubles as the session title.
func (t *Tool) Start(ctx context.Context, description, prompt, agent, key string) (Ack, error) {
	d, err := t.reg.Start(ctx, StartInput{
		ParentSessionID: t.parentSessionID,
		ParentAgent:     t.parentAgent,
		Description:     description,
		Prompt:          prompt,
		Agent:           agent,
		Key:             key,
	})
	if err != nil {
		return Ack{}, err
	}
	return Ack{Key: d.Key, Agent: d.Agent}, nil
}

// Read returns the result entry for a key, blocking while the
// delegation still runs.
func (t *Tool) Read(ctx context.Context, key string) (string, error) {
	scope, err := t.resolveScope(ctx)
	if err != nil {
		return "", err
	}
	return t.reg.Read(ctx, scope, key)
}

// List returns every delegation visible in the tool's scope.
func (t *Tool) List(ctx context.Context) ([]Item, error) {
	scope, err := t.resolveScope(ctx)
	if err != nil {
		return nil, err
	}
	return t.reg.List(ctx, scope)
}

// Delete removes a delegation and its persisted result, cancelling it
// first if it still runs. Reports whether anything existed under the
// key — a running delegation counts, since cancelling it persists an
// entry before the removal.
func (t *Tool) Delete(ctx context.Context, key string) (bool, error) {
	scope, err := t.resolveScope(ctx)
	if err != nil {
		return false, err
	}
	return t.reg.Delete(ctx, scope, key)
}

// resolveScope resolves the parent session's scope once and caches it.
func (t *Tool) resolveScope(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.scope != "" {
		return t.scope, nil
	}
	scope, res := session.ResolveScope(ctx, t.reg.sessions, t.parentSessionID)
	if scope == "" {
		return "", ErrInvalidInput
	}
	if res == session.Resolved || res == session.Truncated {
		t.scope = scope
	}
	return scope, nil
}
