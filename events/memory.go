package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStream implements Stream using in-process fan-out channels.
// Useful for testing and single-process scenarios.
type MemoryStream struct {
	mu     sync.RWMutex
	subs   []*memorySub
	config Config
	closed atomic.Bool
}

type memorySub struct {
	ch     chan Event
	stream *MemoryStream
	closed atomic.Bool
}

// NewMemoryStream creates a new in-memory event stream.
func NewMemoryStream(cfg Config) *MemoryStream {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &MemoryStream{config: cfg}
}

// Publish emits an event to all subscribers. Sends happen under the
// stream lock so a concurrent Cancel or Close cannot close a channel
// mid-send; the buffered drop-on-full sends keep the critical section
// non-blocking.
func (s *MemoryStream) Publish(ev Event) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := Validate(ev); err != nil {
		return err
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if sub.closed.Load() {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Buffer full, drop
		}
	}
	return nil
}

// Subscribe creates a subscription receiving all events.
func (s *MemoryStream) Subscribe() (Subscription, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	sub := &memorySub{
		ch:     make(chan Event, s.config.BufferSize),
		stream: s,
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	return sub, nil
}

// Close shuts down the stream and all subscriptions.
func (s *MemoryStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if !sub.closed.Swap(true) {
			close(sub.ch)
		}
	}
	s.subs = nil
	return nil
}

// Events returns the subscription channel.
func (s *memorySub) Events() <-chan Event {
	return s.ch
}

// Cancel cancels the subscription. The closed flag flips and the
// channel closes under the stream lock, mutually exclusive with any
// in-flight Publish.
func (s *memorySub) Cancel() error {
	s.stream.mu.Lock()
	defer s.stream.mu.Unlock()

	if s.closed.Swap(true) {
		return nil
	}

	for i, sub := range s.stream.subs {
		if sub == s {
			s.stream.subs = append(s.stream.subs[:i], s.stream.subs[i+1:]...)
			break
		}
	}

	close(s.ch)
	return nil
}
