package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound     = errors.New("result not found")
	ErrClosed       = errors.New("store closed")
	ErrInvalidScope = errors.New("invalid scope")
	ErrInvalidKey   = errors.New("invalid key")
)

// Header is the metadata block written ahead of a result body.
type Header struct {
	Description string
	Agent       string
	Status      string
	StartedAt   time.Time
	CompletedAt time.Time
}

// Marshal renders the header block. The on-disk entry is this block,
// a blank line, then the body.
func (h Header) Marshal() string {
	var b strings.Builder
	fmt.Fprintf(&b, "description: %s\n", sanitizeLine(h.Description))
	fmt.Fprintf(&b, "agent: %s\n", sanitizeLine(h.Agent))
	fmt.Fprintf(&b, "status: %s\n", h.Status)
	if !h.StartedAt.IsZero() {
		fmt.Fprintf(&b, "started: %s\n", h.StartedAt.UTC().Format(time.RFC3339))
	}
	if !h.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "completed: %s\n", h.CompletedAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// ParseEntry splits a serialized entry into its header and body.
// Unknown header lines are ignored so the format can grow.
func ParseEntry(content string) (Header, string) {
	var h Header
	head, body, found := strings.Cut(content, "\n\n")
	if !found {
		head = content
		body = ""
	}

	for _, line := range strings.Split(head, "\n") {
		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch name {
		case "description":
			h.Description = value
		case "agent":
			h.Agent = value
		case "status":
			h.Status = value
		case "started":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				h.StartedAt = t
			}
		case "completed":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				h.CompletedAt = t
			}
		}
	}
	return h, body
}

// sanitizeLine keeps header values to a single line.
func sanitizeLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// ResultStore is a durable, scope-partitioned key→text store.
// One entry exists per (scope, key); writes are last-write-wins.
type ResultStore interface {
	// Write creates or overwrites the entry at (scope, key).
	Write(ctx context.Context, scope, key string, h Header, body string) error

	// Read returns the serialized entry (header block, blank line,
	// body). Returns ErrNotFound if no entry exists.
	Read(ctx context.Context, scope, key string) (string, error)

	// Delete removes the entry. Reports whether one existed.
	Delete(ctx context.Context, scope, key string) (bool, error)

	// Keys returns all keys present under a scope.
	Keys(ctx context.Context, scope string) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// ValidateScope checks a scope identifier. Scopes become directory
// names, so path traversal is rejected.
func ValidateScope(scope string) error {
	if scope == "" || !pathSafe(scope) {
		return ErrInvalidScope
	}
	return nil
}

// ValidateKey checks a result key. Keys become file names.
func ValidateKey(key string) error {
	if key == "" || !pathSafe(key) {
		return ErrInvalidKey
	}
	return nil
}

// pathSafe rejects separators and relative path components.
func pathSafe(s string) bool {
	if s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\")
}
