package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/vinayprograms/handoff/events"
)

// AnthropicClient implements Client as an in-process session service
// backed by the Anthropic Messages API. Each session is a local
// conversation record; Dispatch runs the turn asynchronously and
// publishes a session.idle event when the reply lands.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	stream    events.Stream

	mu       sync.RWMutex
	sessions map[string]*apiSession
	closed   atomic.Bool
}

type apiSession struct {
	id       string
	parentID string
	title    string
	messages []Message
	busy     bool
}

// AnthropicConfig holds configuration for the Anthropic-backed client.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string // Optional custom endpoint
	Model     string
	MaxTokens int
}

// NewAnthropicClient creates a session client backed by the Anthropic
// API. Completed turns are announced on stream; pass nil to disable
// event emission.
func NewAnthropicClient(cfg AnthropicConfig, stream events.Stream) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for anthropic")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required for anthropic")
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicClient{
		client:    &client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		stream:    stream,
		sessions:  make(map[string]*apiSession),
	}, nil
}

// Create makes a new session under parentID.
func (c *AnthropicClient) Create(ctx context.Context, parentID, title string) (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	c.sessions[id] = &apiSession{
		id:       id,
		parentID: parentID,
		title:    title,
	}
	return id, nil
}

// ParentID returns the parent of a session, or "" for a root.
func (c *AnthropicClient) ParentID(ctx context.Context, sessionID string) (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	return s.parentID, nil
}

// Dispatch submits a prompt and runs the turn in the background.
// Returns once the prompt is accepted; rejects if the session is
// unknown or already mid-turn.
func (c *AnthropicClient) Dispatch(ctx context.Context, sessionID string, p Prompt) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if p.Text == "" {
		return fmt.Errorf("%w: empty prompt", ErrDispatch)
	}

	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	if s.busy {
		c.mu.Unlock()
		return fmt.Errorf("%w: session is mid-turn", ErrDispatch)
	}
	s.busy = true
	s.messages = append(s.messages, Message{
		Role:  RoleUser,
		Parts: []Part{{Type: PartText, Text: p.Text}},
	})
	history := make([]Message, len(s.messages))
	copy(history, s.messages)
	c.mu.Unlock()

	go c.runTurn(sessionID, p, history)
	return nil
}

// runTurn executes one model turn and records the reply. Failures are
// recorded as empty turns; the idle event still fires so the
// coordinator observes completion either way.
func (c *AnthropicClient) runTurn(sessionID string, p Prompt, history []Message) {
	model := c.model
	if p.Model != "" {
		model = p.Model
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(c.maxTokens),
		Messages:  toAnthropicMessages(history),
	}
	if p.Agent != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: fmt.Sprintf("You are the %s agent.", p.Agent)},
		}
	}

	resp, err := c.client.Messages.New(context.Background(), params)

	var reply Message
	if err == nil {
		reply.Role = RoleAssistant
		for _, block := range resp.Content {
			if block.Type == "text" {
				reply.Parts = append(reply.Parts, Part{Type: PartText, Text: block.Text})
			}
		}
	}

	c.mu.Lock()
	if s, ok := c.sessions[sessionID]; ok {
		s.busy = false
		if err == nil {
			s.messages = append(s.messages, reply)
		}
	}
	c.mu.Unlock()

	if c.stream != nil {
		_ = c.stream.Publish(events.Event{
			Type:      events.TypeSessionIdle,
			SessionID: sessionID,
		})
	}
}

// toAnthropicMessages converts a transcript to API message params.
func toAnthropicMessages(history []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history))
	for _, m := range history {
		text := m.Text()
		if text == "" {
			continue
		}
		switch m.Role {
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
		}
	}
	return out
}

// Messages returns the session transcript, oldest first.
func (c *AnthropicClient) Messages(ctx context.Context, sessionID string) ([]Message, error) {
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

// Notify posts a notice into a session. NoReply notices are appended
// to the transcript without starting a turn.
func (c *AnthropicClient) Notify(ctx context.Context, sessionID string, n Notice) error {
	if c.closed.Load() {
		return ErrClosed
	}

	if !n.NoReply {
		return c.Dispatch(ctx, sessionID, Prompt{Agent: n.Agent, Text: n.Text})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.messages = append(s.messages, Message{
		Role:  RoleUser,
		Parts: []Part{{Type: PartText, Text: n.Text}},
	})
	return nil
}

// Delete removes a session.
func (c *AnthropicClient) Delete(ctx context.Context, sessionID string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(c.sessions, sessionID)
	return nil
}

// Close shuts down the client.
func (c *AnthropicClient) Close() error {
	c.closed.Store(true)
	return nil
}

var _ Client = (*AnthropicClient)(nil)
