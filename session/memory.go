package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// MemoryClient implements Client using in-memory storage.
// Useful for testing and single-process scenarios.
type MemoryClient struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	closed   atomic.Bool

	creates atomic.Int64

	// Failure injection for tests.
	createErr   error
	dispatchErr error
	parentErr   error

	// DispatchFunc, when set, is invoked for every accepted dispatch
	// instead of recording the prompt as a user message.
	DispatchFunc func(sessionID string, p Prompt)
}

type memorySession struct {
	id       string
	parentID string
	title    string
	messages []Message
	notices  []Notice
	deleted  bool
}

// NewMemoryClient creates a new in-memory session client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		sessions: make(map[string]*memorySession),
	}
}

// Create makes a new session under parentID.
func (c *MemoryClient) Create(ctx context.Context, parentID, title string) (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.createErr != nil {
		return "", c.createErr
	}
	if parentID != "" {
		if _, ok := c.sessions[parentID]; !ok {
			return "", ErrNotFound
		}
	}

	id := uuid.NewString()
	c.sessions[id] = &memorySession{
		id:       id,
		parentID: parentID,
		title:    title,
	}
	c.creates.Add(1)
	return id, nil
}

// ParentID returns the parent of a session, or "" for a root.
func (c *MemoryClient) ParentID(ctx context.Context, sessionID string) (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.parentErr != nil {
		return "", c.parentErr
	}
	s, ok := c.sessions[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	return s.parentID, nil
}

// Dispatch submits a prompt to a session.
func (c *MemoryClient) Dispatch(ctx context.Context, sessionID string, p Prompt) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	if c.dispatchErr != nil {
		err := c.dispatchErr
		c.mu.Unlock()
		return err
	}
	s, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	fn := c.DispatchFunc
	if fn == nil {
		s.messages = append(s.messages, Message{
			Role:  RoleUser,
			Parts: []Part{{Type: PartText, Text: p.Text}},
		})
	}
	c.mu.Unlock()

	if fn != nil {
		fn(sessionID, p)
	}
	return nil
}

// Messages returns the session transcript, oldest first.
func (c *MemoryClient) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

// Notify posts a notice into a session.
func (c *MemoryClient) Notify(ctx context.Context, sessionID string, n Notice) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.notices = append(s.notices, n)
	return nil
}

// Delete removes a session.
func (c *MemoryClient) Delete(ctx context.Context, sessionID string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.deleted = true
	delete(c.sessions, sessionID)
	return nil
}

// Close shuts down the client.
func (c *MemoryClient) Close() error {
	c.closed.Store(true)
	return nil
}

var _ Client = (*MemoryClient)(nil)

// --- Test helpers ---

// AddRoot inserts a root session with a fixed ID. Useful for seeding
// a known parent chain in tests.
func (c *MemoryClient) AddRoot(id, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[id] = &memorySession{id: id, title: title}
}

// AddChild inserts a session with a fixed ID under parentID without
// validating that the parent exists, so tests can build malformed
// (cyclic) chains.
func (c *MemoryClient) AddChild(id, parentID, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[id] = &memorySession{id: id, parentID: parentID, title: title}
}

// AppendAssistant appends an assistant text message to a transcript.
func (c *MemoryClient) AppendAssistant(sessionID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[sessionID]; ok {
		s.messages = append(s.messages, Message{
			Role:  RoleAssistant,
			Parts: []Part{{Type: PartText, Text: text}},
		})
	}
}

// AppendMessage appends an arbitrary message to a transcript.
func (c *MemoryClient) AppendMessage(sessionID string, m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[sessionID]; ok {
		s.messages = append(s.messages, m)
	}
}

// FailCreate makes subsequent Create calls return err. Pass nil to clear.
func (c *MemoryClient) FailCreate(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createErr = err
}

// FailDispatch makes subsequent Dispatch calls return err. Pass nil to clear.
func (c *MemoryClient) FailDispatch(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatchErr = err
}

// FailParentID makes subsequent ParentID calls return err. Pass nil to clear.
func (c *MemoryClient) FailParentID(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parentErr = err
}

// CreateCount returns how many sessions have been created.
func (c *MemoryClient) CreateCount() int64 {
	return c.creates.Load()
}

// Exists reports whether a session is present (not deleted).
func (c *MemoryClient) Exists(sessionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sessions[sessionID]
	return ok
}

// Notices returns the notices posted to a session.
func (c *MemoryClient) Notices(sessionID string) []Notice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]Notice, len(s.notices))
	copy(out, s.notices)
	return out
}
