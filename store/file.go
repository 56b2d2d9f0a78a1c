package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

// FileStore implements ResultStore on the local filesystem. Entries
// live at <base>/<scope>/<key>; the scope directory is created on
// first write. Suitable for a single coordinating process, or several
// sharing a scope — writes are last-write-wins with no cross-process
// locking.
type FileStore struct {
	baseDir string
	closed  atomic.Bool
}

// NewFileStore creates a file-backed result store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create result store directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Write creates or overwrites the entry at (scope, key).
// The content lands via a temp file and rename so a crash mid-write
// cannot corrupt a previously good entry.
func (s *FileStore) Write(ctx context.Context, scope, key string, h Header, body string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ValidateScope(scope); err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return err
	}

	dir := filepath.Join(s.baseDir, scope)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create scope directory: %w", err)
	}

	path := filepath.Join(dir, key)
	tmp := path + ".tmp"
	content := h.Marshal() + "\n" + body

	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// Read returns the serialized entry at (scope, key).
func (s *FileStore) Read(ctx context.Context, scope, key string) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	if err := ValidateScope(scope); err != nil {
		return "", err
	}
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(s.baseDir, scope, key))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read result: %w", err)
	}
	return string(data), nil
}

// Delete removes the entry and reports whether one existed.
func (s *FileStore) Delete(ctx context.Context, scope, key string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	if err := ValidateScope(scope); err != nil {
		return false, err
	}
	if err := ValidateKey(key); err != nil {
		return false, err
	}

	err := os.Remove(filepath.Join(s.baseDir, scope, key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete result: %w", err)
	}
	return true, nil
}

// Keys returns all keys present under a scope. A scope that has never
// been written to yields an empty set.
func (s *FileStore) Keys(ctx context.Context, scope string) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ValidateScope(scope); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.baseDir, scope))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) == ".tmp" {
			continue
		}
		keys = append(keys, name)
	}
	return keys, nil
}

// Close shuts down the store.
func (s *FileStore) Close() error {
	s.closed.Store(true)
	return nil
}

var _ ResultStore = (*FileStore)(nil)
