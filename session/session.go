package session

import (
	"context"
	"errors"
)

// Common errors.
var (
	ErrNotFound       = errors.New("session not found")
	ErrClosed         = errors.New("session client closed")
	ErrInvalidSession = errors.New("invalid session ID")
	ErrDispatch       = errors.New("dispatch rejected")
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartType identifies the kind of content a message part carries.
type PartType string

const (
	PartText    PartType = "text"
	PartToolUse PartType = "tool_use"
)

// Part is a single piece of message content. Text is set only for
// PartText parts.
type Part struct {
	Type PartType
	Text string
}

// Message is one entry in a session transcript, ordered oldest first.
type Message struct {
	Role  Role
	Parts []Part
}

// Text returns the concatenated text content of the message, or ""
// if the message has no text parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// Prompt is the input dispatched into a session to start a turn.
type Prompt struct {
	// Agent selects which agent persona handles the turn.
	Agent string

	// Model optionally overrides the default model.
	Model string

	// Text is the prompt body.
	Text string

	// DisabledTools lists tool names the turn may not use.
	DisabledTools []string
}

// Notice is a message posted into a session without expecting a reply.
type Notice struct {
	// Agent the notice is addressed to.
	Agent string

	// Text is the notice body.
	Text string

	// NoReply indicates the session should not start a new turn
	// in response.
	NoReply bool
}

// Client is the capability interface onto the external session service.
// Sessions form a tree via parent IDs; each delegation runs in its own
// child session.
type Client interface {
	// Create makes a new session under parentID and returns its ID.
	// An empty parentID creates a root session.
	Create(ctx context.Context, parentID, title string) (string, error)

	// ParentID returns the parent of a session, or "" for a root.
	ParentID(ctx context.Context, sessionID string) (string, error)

	// Dispatch submits a prompt to a session. The service runs the
	// turn asynchronously; Dispatch returns once the prompt is
	// accepted, and may reject with an error.
	Dispatch(ctx context.Context, sessionID string, p Prompt) error

	// Messages returns the session transcript, oldest first.
	Messages(ctx context.Context, sessionID string) ([]Message, error)

	// Notify posts a notice into a session.
	Notify(ctx context.Context, sessionID string, n Notice) error

	// Delete removes a session. Best-effort for callers; an error
	// does not imply the session still runs.
	Delete(ctx context.Context, sessionID string) error
}
