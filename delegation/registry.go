package delegation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/handoff/logging"
	"github.com/vinayprograms/handoff/session"
	"github.com/vinayprograms/handoff/store"
)

// Registry tracks the lifecycle of delegated tasks. It keeps running
// and recently finished delegations in memory, arms a watchdog per
// delegation, and funnels every terminal transition through Complete.
//
// In-memory state is lost on restart; the result store holds the
// durable record.
type Registry struct {
	sessions session.Client
	results  store.ResultStore
	log      *logging.Logger
	cfg      Config

	mu        sync.RWMutex
	byID      map[string]*Delegation
	byKey     map[string]string // scope/key → id
	watchdogs map[string]*time.Timer

	closed atomic.Bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithConfig sets the timing configuration.
func WithConfig(cfg Config) Option {
	return func(r *Registry) {
		r.cfg = cfg.withDefaults()
	}
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// NewRegistry creates a registry backed by the given session client and
// result store.
func NewRegistry(sessions session.Client, results store.ResultStore, opts ...Option) *Registry {
	r := &Registry{
		sessions:  sessions,
		results:   results,
		log:       logging.New().WithComponent("delegation"),
		cfg:       DefaultConfig(),
		byID:      make(map[string]*Delegation),
		byKey:     make(map[string]string),
		watchdogs: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// indexKey builds the composite key index entry.
func indexKey(scope, key string) string {
	return scope + "/" + key
}

// Start registers a delegation, creates its isolated session, arms the
// watchdog, and dispatches the prompt asynchronously. It returns as
// soon as the delegation is registered and dispatch has been handed
// off; it never waits for the task itself.
//
// The (scope, key) slot is reserved under the lock before the session
// is created, so a concurrent Start with the same key fails with
// ErrKeyCollision before any second session exists.
func (r *Registry) Start(ctx context.Context, in StartInput) (*Delegation, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if err := store.ValidateKey(in.Key); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, in.Key)
	}
	if in.ParentSessionID == "" {
		return nil, fmt.Errorf("%w: parent session is required", ErrInvalidInput)
	}
	if in.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}

	scope, res := session.ResolveScope(ctx, r.sessions, in.ParentSessionID)
	if scope == "" {
		return nil, fmt.Errorf("%w: cannot resolve scope for session %q", ErrInvalidInput, in.ParentSessionID)
	}
	if res != session.Resolved {
		r.log.ScopeFallback(in.ParentSessionID, scope, res.String())
	}

	d := &Delegation{
		ID:              uuid.NewString(),
		Key:             in.Key,
		Scope:           scope,
		ParentSessionID: in.ParentSessionID,
		ParentMessageID: in.ParentMessageID,
		ParentAgent:     in.ParentAgent,
		Description:     in.Description,
		Prompt:          in.Prompt,
		Agent:           in.Agent,
		Status:          StatusRunning,
		StartedAt:       time.Now(),
	}

	ik := indexKey(scope, in.Key)

	r.mu.Lock()
	if r.closed.Load() {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if prevID, ok := r.byKey[ik]; ok {
		prev := r.byID[prevID]
		if prev != nil && prev.Status == StatusRunning {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %q", ErrKeyCollision, in.Key)
		}
		// Finished record being superseded; its result lives in the
		// store, so drop the stale in-memory copy.
		delete(r.byID, prevID)
	}
	r.byID[d.ID] = d
	r.byKey[ik] = d.ID
	r.mu.Unlock()

	title := in.Description
	if title == "" {
		title = in.Key
	}
	sessionID, err := r.sessions.Create(ctx, in.ParentSessionID, title)
	if err != nil {
		r.mu.Lock()
		delete(r.byID, d.ID)
		if r.byKey[ik] == d.ID {
			delete(r.byKey, ik)
		}
		r.mu.Unlock()
		return nil, fmt.Errorf("create delegation session: %w", err)
	}

	r.mu.Lock()
	d.SessionID = sessionID
	r.armWatchdogLocked(d.ID)
	snapshot := d.Clone()
	r.mu.Unlock()

	go r.dispatch(d.ID, sessionID, in)

	r.log.DelegationStarted(in.Key, in.Agent, sessionID)
	return snapshot, nil
}

// dispatch sends the prompt into the delegation's session. A rejected
// dispatch is a terminal outcome, funneled through Complete like every
// other one.
func (r *Registry) dispatch(id, sessionID string, in StartInput) {
	err := r.sessions.Dispatch(context.Background(), sessionID, session.Prompt{
		Agent: in.Agent,
		Text:  in.Prompt,
	})
	if err != nil {
		r.log.DispatchFailed(in.Key, err)
		r.Complete(id, DispatchFailure(err.Error()))
	}
}

// Get returns a copy of the delegation with the given id.
func (r *Registry) Get(id string) (*Delegation, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

// FindByKey returns a copy of the delegation registered under
// (scope, key), or nil if none is in memory.
func (r *Registry) FindByKey(scope, key string) *Delegation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[indexKey(scope, key)]
	if !ok {
		return nil
	}
	return r.byID[id].Clone()
}

// FindBySession returns a copy of the delegation running in the given
// session, or nil if the session is not a tracked delegation.
func (r *Registry) FindBySession(sessionID string) *Delegation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.byID {
		if d.SessionID == sessionID {
			return d.Clone()
		}
	}
	return nil
}

// RecordActivity updates progress bookkeeping for the delegation
// running in the given session. Activity with message text records the
// message; activity without text counts as a tool call. It never
// affects timeouts.
func (r *Registry) RecordActivity(sessionID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.byID {
		if d.SessionID != sessionID || d.Status != StatusRunning {
			continue
		}
		now := time.Now()
		d.Progress.LastUpdate = now
		if text != "" {
			d.Progress.LastMessage = text
			d.Progress.LastMessageAt = now
		} else {
			d.Progress.ToolCalls++
		}
		return
	}
}

// List returns every delegation visible in a scope: in-memory records
// plus persisted results from earlier runs. For a key present in both,
// the in-memory record wins because it may be fresher than the file.
func (r *Registry) List(ctx context.Context, scope string) ([]Item, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	seen := make(map[string]bool)
	var items []Item

	r.mu.RLock()
	for _, d := range r.byID {
		if d.Scope != scope {
			continue
		}
		items = append(items, Item{Key: d.Key, Status: d.Status, Description: d.Description})
		seen[d.Key] = true
	}
	r.mu.RUnlock()

	keys, err := r.results.Keys(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list persisted results: %w", err)
	}
	for _, key := range keys {
		if seen[key] {
			continue
		}
		item := Item{Key: key, Status: StatusComplete}
		if content, err := r.results.Read(ctx, scope, key); err == nil {
			h, _ := store.ParseEntry(content)
			if h.Status != "" {
				item.Status = Status(h.Status)
			}
			item.Description = h.Description
		}
		items = append(items, item)
	}
	return items, nil
}

// Delete removes the delegation and its persisted result. A running
// delegation is cancelled first: its session is deleted and the
// cancellation funnels through Complete, which persists a cancelled
// entry before it is removed again here. The returned bool reports
// whether anything existed under (scope, key).
func (r *Registry) Delete(ctx context.Context, scope, key string) (bool, error) {
	if r.closed.Load() {
		return false, ErrClosed
	}

	ik := indexKey(scope, key)

	r.mu.RLock()
	id, tracked := r.byKey[ik]
	var d *Delegation
	if tracked {
		d = r.byID[id].Clone()
	}
	r.mu.RUnlock()

	if d != nil && d.Status == StatusRunning {
		if err := r.sessions.Delete(ctx, d.SessionID); err != nil {
			r.log.Warn("delete_session_failed", map[string]interface{}{
				"session": d.SessionID,
				"error":   err.Error(),
			})
		}
		r.Complete(d.ID, Cancelled())
	}

	if tracked {
		r.mu.Lock()
		delete(r.byID, id)
		if r.byKey[ik] == id {
			delete(r.byKey, ik)
		}
		if t := r.watchdogs[id]; t != nil {
			t.Stop()
			delete(r.watchdogs, id)
		}
		r.mu.Unlock()
	}

	existed, err := r.results.Delete(ctx, scope, key)
	if err != nil {
		r.log.PersistFailed(scope, key, err)
		return tracked, nil
	}
	return existed || tracked, nil
}

// Close stops all watchdogs and rejects further operations. Sessions of
// still-running delegations are left alone; their results simply never
// land.
func (r *Registry) Close() error {
	if r.closed.Swap(true) {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.watchdogs {
		t.Stop()
		delete(r.watchdogs, id)
	}
	return nil
}
