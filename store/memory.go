package store

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryStore implements ResultStore using in-memory storage.
// Useful for testing and single-process scenarios.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]string // scope → key → content
	closed  atomic.Bool

	// Failure injection for tests.
	writeErr error
	readErr  error
}

// NewMemoryStore creates a new in-memory result store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]map[string]string),
	}
}

// Write creates or overwrites the entry at (scope, key).
func (s *MemoryStore) Write(ctx context.Context, scope, key string, h Header, body string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ValidateScope(scope); err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}
	if s.entries[scope] == nil {
		s.entries[scope] = make(map[string]string)
	}
	s.entries[scope][key] = h.Marshal() + "\n" + body
	return nil
}

// Read returns the serialized entry at (scope, key).
func (s *MemoryStore) Read(ctx context.Context, scope, key string) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	if err := ValidateScope(scope); err != nil {
		return "", err
	}
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.readErr != nil {
		return "", s.readErr
	}
	content, ok := s.entries[scope][key]
	if !ok {
		return "", ErrNotFound
	}
	return content, nil
}

// Delete removes the entry and reports whether one existed.
func (s *MemoryStore) Delete(ctx context.Context, scope, key string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	if err := ValidateScope(scope); err != nil {
		return false, err
	}
	if err := ValidateKey(key); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[scope][key]; !ok {
		return false, nil
	}
	delete(s.entries[scope], key)
	return true, nil
}

// Keys returns all keys present under a scope.
func (s *MemoryStore) Keys(ctx context.Context, scope string) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ValidateScope(scope); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.entries[scope] {
		keys = append(keys, key)
	}
	return keys, nil
}

// Close shuts down the store.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

// FailWrite makes subsequent Write calls return err. Pass nil to clear.
func (s *MemoryStore) FailWrite(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// FailRead makes subsequent Read calls return err. Pass nil to clear.
func (s *MemoryStore) FailRead(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

var _ ResultStore = (*MemoryStore)(nil)
