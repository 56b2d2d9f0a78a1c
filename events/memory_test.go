package events

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStreamPublishSubscribe(t *testing.T) {
	s := NewMemoryStream(Config{})
	defer s.Close()

	sub, err := s.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	err = s.Publish(Event{Type: TypeSessionIdle, SessionID: "s1"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case ev := <-sub.Events():
		if ev.Type != TypeSessionIdle || ev.SessionID != "s1" {
			t.Errorf("unexpected event %+v", ev)
		}
		if ev.Time.IsZero() {
			t.Error("expected publish to stamp the time")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestMemoryStreamFanOut(t *testing.T) {
	s := NewMemoryStream(Config{})
	defer s.Close()

	sub1, _ := s.Subscribe()
	sub2, _ := s.Subscribe()

	if err := s.Publish(Event{Type: TypeMessageUpdated, SessionID: "s", Text: "hi"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	for i, sub := range []Subscription{sub1, sub2} {
		select {
		case ev := <-sub.Events():
			if ev.Text != "hi" {
				t.Errorf("subscriber %d: unexpected event %+v", i, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestMemoryStreamRejectsInvalidType(t *testing.T) {
	s := NewMemoryStream(Config{})
	defer s.Close()

	if err := s.Publish(Event{Type: "bogus"}); !errors.Is(err, ErrInvalidType) {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
}

func TestMemoryStreamDropsWhenBufferFull(t *testing.T) {
	s := NewMemoryStream(Config{BufferSize: 1})
	defer s.Close()

	sub, _ := s.Subscribe()
	for i := 0; i < 5; i++ {
		if err := s.Publish(Event{Type: TypeSessionIdle, SessionID: "s"}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	// One buffered event survives; the rest were dropped, and Publish
	// never blocked.
	select {
	case <-sub.Events():
	case <-time.After(time.Second):
		t.Fatal("expected one buffered event")
	}
	select {
	case ev := <-sub.Events():
		t.Fatalf("expected overflow dropped, got %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMemoryStreamCancel(t *testing.T) {
	s := NewMemoryStream(Config{})
	defer s.Close()

	sub, _ := s.Subscribe()
	if err := sub.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if err := sub.Cancel(); err != nil {
		t.Fatalf("double Cancel must be a no-op: %v", err)
	}

	if _, ok := <-sub.Events(); ok {
		t.Error("expected channel closed after cancel")
	}
	if err := s.Publish(Event{Type: TypeSessionIdle, SessionID: "s"}); err != nil {
		t.Errorf("Publish after cancel failed: %v", err)
	}
}

func TestMemoryStreamPublishDuringCancel(t *testing.T) {
	// A cancel landing between a publisher's closed-check and its send
	// must not close the channel mid-send.
	for round := 0; round < 50; round++ {
		s := NewMemoryStream(Config{BufferSize: 1})

		subs := make([]Subscription, 4)
		for i := range subs {
			sub, err := s.Subscribe()
			if err != nil {
				t.Fatalf("Subscribe failed: %v", err)
			}
			subs[i] = sub
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Publish(Event{Type: TypeSessionIdle, SessionID: "s"})
			}
		}()
		for _, sub := range subs {
			wg.Add(1)
			go func(sub Subscription) {
				defer wg.Done()
				sub.Cancel()
			}(sub)
		}
		wg.Wait()
		s.Close()
	}
}

func TestMemoryStreamPublishDuringClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		s := NewMemoryStream(Config{BufferSize: 1})
		for i := 0; i < 4; i++ {
			if _, err := s.Subscribe(); err != nil {
				t.Fatalf("Subscribe failed: %v", err)
			}
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Publish(Event{Type: TypeSessionIdle, SessionID: "s"})
			}
		}()
		go func() {
			defer wg.Done()
			s.Close()
		}()
		wg.Wait()
	}
}

func TestMemoryStreamClose(t *testing.T) {
	s := NewMemoryStream(Config{})
	sub, _ := s.Subscribe()

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("expected subscription closed with the stream")
	}
	if err := s.Publish(Event{Type: TypeSessionIdle}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := s.Subscribe(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
