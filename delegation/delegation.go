package delegation

import (
	"errors"
	"time"
)

// Common errors.
var (
	// ErrKeyCollision indicates a delegation with the same key is
	// already running in the same scope.
	ErrKeyCollision = errors.New("delegation key already running")

	// ErrNotFound indicates no delegation or persisted result exists
	// for the requested key.
	ErrNotFound = errors.New("delegation not found")

	// ErrInvalidKey indicates the key is empty or unusable as a
	// result file name.
	ErrInvalidKey = errors.New("invalid delegation key")

	// ErrInvalidInput indicates a required start field is missing.
	ErrInvalidInput = errors.New("invalid delegation input")

	// ErrClosed indicates the registry has been closed.
	ErrClosed = errors.New("registry closed")
)

// Status represents the current state of a delegation.
type Status string

const (
	// StatusRunning indicates the delegated task has been dispatched
	// and has not reached a terminal state.
	StatusRunning Status = "running"

	// StatusComplete indicates the task finished and produced a result.
	StatusComplete Status = "complete"

	// StatusError indicates the prompt dispatch was rejected.
	StatusError Status = "error"

	// StatusCancelled indicates the delegation was deleted while running.
	StatusCancelled Status = "cancelled"

	// StatusTimeout indicates the watchdog fired before completion.
	StatusTimeout Status = "timeout"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status is a terminal state.
// Transitions are monotonic: running moves to exactly one terminal
// state and never leaves it.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusError, StatusCancelled, StatusTimeout:
		return true
	default:
		return false
	}
}

// Progress tracks observed activity for a running delegation.
// Bookkeeping only: nothing in the lifecycle reads it to extend
// timeouts or detect staleness.
type Progress struct {
	// ToolCalls counts activity updates without message text.
	ToolCalls int

	// LastUpdate is when any activity was last observed.
	LastUpdate time.Time

	// LastMessage is the most recent message text, if any.
	LastMessage string

	// LastMessageAt is when LastMessage was observed.
	LastMessageAt time.Time
}

// Delegation is a tracked unit of background work running in its own
// isolated session. The registry owns the record exclusively while it
// is in memory; callers only ever see clones.
type Delegation struct {
	// ID is the unique identifier, generated at creation, never reused.
	ID string

	// Key is the caller-supplied result key, unique among running
	// delegations within one scope.
	Key string

	// Scope is the persistence boundary the delegation belongs to
	// (root ancestor of the parent session's chain).
	Scope string

	// SessionID is the isolated session the task runs in.
	SessionID string

	// ParentSessionID is the session the delegation was started from.
	ParentSessionID string

	// ParentMessageID is the message that triggered the delegation,
	// if known.
	ParentMessageID string

	// ParentAgent is the agent to address completion notices to.
	ParentAgent string

	// Description is a short human-readable summary of the task.
	Description string

	// Prompt is the full prompt dispatched into the session.
	Prompt string

	// Agent selects the agent persona handling the task.
	Agent string

	// Status is the current lifecycle state.
	Status Status

	// StartedAt is when the delegation was registered.
	StartedAt time.Time

	// CompletedAt is set if and only if Status is terminal.
	CompletedAt *time.Time

	// Progress is passive activity bookkeeping.
	Progress Progress

	// Error holds failure detail, set only for error and timeout.
	Error string
}

// Clone creates a deep copy of the delegation.
func (d *Delegation) Clone() *Delegation {
	if d == nil {
		return nil
	}
	clone := *d
	if d.CompletedAt != nil {
		completed := *d.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}

// StartInput carries the parameters for starting a delegation.
type StartInput struct {
	// ParentSessionID is the session the work is delegated from.
	// Required; also determines the scope.
	ParentSessionID string

	// ParentMessageID optionally records the triggering message.
	ParentMessageID string

	// ParentAgent is the agent addressed by the completion notice.
	ParentAgent string

	// Description is a short summary, used as the session title and
	// in the persisted header.
	Description string

	// Prompt is the task prompt. Required.
	Prompt string

	// Agent selects the agent persona for the delegated task.
	Agent string

	// Key is the caller-chosen result key. Required.
	Key string
}

// Item is one entry in a scope listing.
type Item struct {
	Key         string
	Status      Status
	Description string
}

// Outcome is the reason a delegation reached a terminal state.
// Every terminal transition path (success, dispatch failure, timeout,
// cancellation) funnels through Registry.Complete with one of these.
type Outcome struct {
	status  Status
	message string
}

// Success is the outcome for a session that went idle after producing
// output.
func Success() Outcome {
	return Outcome{status: StatusComplete}
}

// DispatchFailure is the outcome for a rejected asynchronous prompt
// dispatch.
func DispatchFailure(msg string) Outcome {
	return Outcome{status: StatusError, message: msg}
}

// TimedOut is the outcome applied by the watchdog.
func TimedOut(limit time.Duration) Outcome {
	return Outcome{
		status:  StatusTimeout,
		message: "exceeded maximum runtime of " + limit.String(),
	}
}

// Cancelled is the outcome for an explicit delete of a running
// delegation.
func Cancelled() Outcome {
	return Outcome{status: StatusCancelled, message: "cancelled by delete request"}
}

// Config holds registry timing configuration.
type Config struct {
	// MaxRuntime is the global maximum runtime per delegation.
	// Not caller-configurable per call. Default: 10m
	MaxRuntime time.Duration

	// Grace is the buffer added to MaxRuntime before the watchdog
	// fires. Default: 30s
	Grace time.Duration

	// PollInterval is how often a blocking read re-checks a running
	// delegation. Default: 250ms
	PollInterval time.Duration

	// ReadMargin extends the blocking-read deadline past the
	// watchdog deadline so the timeout result can land first.
	// Default: 1m
	ReadMargin time.Duration
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRuntime:   10 * time.Minute,
		Grace:        30 * time.Second,
		PollInterval: 250 * time.Millisecond,
		ReadMargin:   time.Minute,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxRuntime <= 0 {
		c.MaxRuntime = def.MaxRuntime
	}
	if c.Grace <= 0 {
		c.Grace = def.Grace
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.ReadMargin <= 0 {
		c.ReadMargin = def.ReadMargin
	}
	return c
}
