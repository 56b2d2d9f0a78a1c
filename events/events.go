package events

import (
	"errors"
	"time"
)

// Common errors.
var (
	ErrClosed      = errors.New("stream closed")
	ErrInvalidType = errors.New("invalid event type")
)

// Type identifies a session lifecycle event.
type Type string

const (
	// TypeSessionIdle signals that a session has stopped producing
	// activity. This is the success-completion trigger.
	TypeSessionIdle Type = "session.idle"

	// TypeMessageUpdated signals new or updated message content in a
	// session. Consumed as passive activity bookkeeping.
	TypeMessageUpdated Type = "session.message"
)

// Valid returns true if the type is a known value.
func (t Type) Valid() bool {
	switch t {
	case TypeSessionIdle, TypeMessageUpdated:
		return true
	default:
		return false
	}
}

// Event is a session lifecycle notification.
type Event struct {
	// Type of the event.
	Type Type `json:"type"`

	// SessionID the event refers to.
	SessionID string `json:"session_id"`

	// Text carries message content for TypeMessageUpdated.
	// Empty otherwise.
	Text string `json:"text,omitempty"`

	// Time the event was emitted.
	Time time.Time `json:"time"`
}

// Stream carries session events from producers to consumers.
type Stream interface {
	// Publish emits an event to all subscribers.
	Publish(ev Event) error

	// Subscribe creates a subscription receiving all events.
	Subscribe() (Subscription, error)

	// Close shuts down the stream.
	Close() error
}

// Subscription represents an active event subscription.
type Subscription interface {
	// Events returns the channel for incoming events.
	// Closed when the subscription ends.
	Events() <-chan Event

	// Cancel cancels the subscription.
	Cancel() error
}

// Config holds common stream configuration.
type Config struct {
	// BufferSize for subscription channels.
	// Default: 64
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 64,
	}
}

// Validate checks an event before publishing.
func Validate(ev Event) error {
	if !ev.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}
