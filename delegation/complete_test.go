package delegation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/vinayprograms/handoff/session"
	"github.com/vinayprograms/handoff/store"
)

// ============================================================
// Success path
// ============================================================

func TestCompleteSuccessPersistsLastAssistantReply(t *testing.T) {
	reg, sessions, results := newTestRegistry(t)

	d, err := reg.Start(context.Background(), startInput("report"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sessions.AppendAssistant(d.SessionID, "intermediate thoughts")
	sessions.AppendAssistant(d.SessionID, "final answer: 42")

	reg.Complete(d.ID, Success())

	got, err := reg.Get(d.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusComplete {
		t.Fatalf("expected complete, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("terminal delegation must have CompletedAt")
	}
	if got.Error != "" {
		t.Errorf("success must not set Error, got %q", got.Error)
	}

	content, err := results.Read(context.Background(), "root", "report")
	if err != nil {
		t.Fatalf("expected persisted entry: %v", err)
	}
	h, body := store.ParseEntry(content)
	if h.Status != string(StatusComplete) {
		t.Errorf("expected header status complete, got %s", h.Status)
	}
	if h.Description != "research task" {
		t.Errorf("expected description in header, got %q", h.Description)
	}
	if h.Agent != "researcher" {
		t.Errorf("expected agent in header, got %q", h.Agent)
	}
	if body != "final answer: 42" {
		t.Errorf("expected last assistant reply as body, got %q", body)
	}
}

func TestCompleteSuccessWithoutOutput(t *testing.T) {
	tests := []struct {
		name string
		seed func(c *session.MemoryClient, sessionID string)
		want string
	}{
		{
			name: "no assistant message",
			seed: func(*session.MemoryClient, string) {},
			want: "produced no output",
		},
		{
			name: "assistant reply without text",
			seed: func(c *session.MemoryClient, sessionID string) {
				c.AppendMessage(sessionID, session.Message{
					Role:  session.RoleAssistant,
					Parts: []session.Part{{Type: session.PartToolUse}},
				})
			},
			want: "no text content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, sessions, results := newTestRegistry(t)
			d, err := reg.Start(context.Background(), startInput("empty"))
			if err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			tt.seed(sessions, d.SessionID)

			reg.Complete(d.ID, Success())

			content, err := results.Read(context.Background(), "root", "empty")
			if err != nil {
				t.Fatalf("expected persisted entry: %v", err)
			}
			_, body := store.ParseEntry(content)
			if !strings.Contains(body, tt.want) {
				t.Errorf("expected substitute body containing %q, got %q", tt.want, body)
			}
		})
	}
}

// ============================================================
// Funnel semantics
// ============================================================

func TestCompleteIsIdempotent(t *testing.T) {
	reg, sessions, _ := newTestRegistry(t)

	d, err := reg.Start(context.Background(), startInput("once"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sessions.AppendAssistant(d.SessionID, "done")

	reg.Complete(d.ID, Success())
	reg.Complete(d.ID, DispatchFailure("should lose"))
	reg.Complete(d.ID, Cancelled())

	got, _ := reg.Get(d.ID)
	if got.Status != StatusComplete {
		t.Errorf("first outcome must win, got %s", got.Status)
	}
	if notices := sessions.Notices("root"); len(notices) != 1 {
		t.Errorf("expected exactly 1 parent notice, got %d", len(notices))
	}
}

func TestCompleteConcurrentOutcomesOneWinner(t *testing.T) {
	reg, sessions, results := newTestRegistry(t)

	d, err := reg.Start(context.Background(), startInput("race"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sessions.AppendAssistant(d.SessionID, "done")

	outcomes := []Outcome{
		Success(),
		TimedOut(testConfig().MaxRuntime),
		DispatchFailure("lost dispatch"),
		Cancelled(),
	}
	var wg sync.WaitGroup
	for _, o := range outcomes {
		wg.Add(1)
		go func(o Outcome) {
			defer wg.Done()
			reg.Complete(d.ID, o)
		}(o)
	}
	wg.Wait()

	got, _ := reg.Get(d.ID)
	if !got.Status.IsTerminal() {
		t.Fatalf("expected a terminal status, got %s", got.Status)
	}
	if notices := sessions.Notices("root"); len(notices) != 1 {
		t.Errorf("expected exactly 1 parent notice, got %d", len(notices))
	}

	content, err := results.Read(context.Background(), "root", "race")
	if err != nil {
		t.Fatalf("expected persisted entry: %v", err)
	}
	h, _ := store.ParseEntry(content)
	if h.Status != string(got.Status) {
		t.Errorf("persisted status %s disagrees with in-memory status %s", h.Status, got.Status)
	}
}

func TestCompleteUnknownIDIsNoOp(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	reg.Complete("no-such-id", Success())
}

// ============================================================
// Notification and persistence failures
// ============================================================

func TestCompleteNotifiesParentNoReply(t *testing.T) {
	reg, sessions, _ := newTestRegistry(t)

	d, err := reg.Start(context.Background(), startInput("notify"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sessions.AppendAssistant(d.SessionID, "done")
	reg.Complete(d.ID, Success())

	notices := sessions.Notices("root")
	if len(notices) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(notices))
	}
	n := notices[0]
	if !n.NoReply {
		t.Error("completion notice must not trigger a new parent turn")
	}
	if n.Agent != "main" {
		t.Errorf("notice must address the parent agent, got %q", n.Agent)
	}
	if !strings.Contains(n.Text, "notify") || !strings.Contains(n.Text, string(StatusComplete)) {
		t.Errorf("notice must name key and status, got %q", n.Text)
	}
}

func TestCompleteSurvivesPersistFailure(t *testing.T) {
	reg, sessions, results := newTestRegistry(t)

	d, err := reg.Start(context.Background(), startInput("unsaved"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sessions.AppendAssistant(d.SessionID, "done")
	results.FailWrite(errors.New("disk full"))

	reg.Complete(d.ID, Success())

	got, _ := reg.Get(d.ID)
	if got.Status != StatusComplete {
		t.Errorf("persist failure must not roll back completion, got %s", got.Status)
	}
	if notices := sessions.Notices("root"); len(notices) != 1 {
		t.Error("parent must still be notified after persist failure")
	}
}

func TestCompleteSurvivesNotifyFailure(t *testing.T) {
	reg, sessions, results := newTestRegistry(t)

	d, err := reg.Start(context.Background(), startInput("orphaned"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sessions.AppendAssistant(d.SessionID, "done")

	// Parent session gone; Notify will fail with ErrNotFound.
	if err := sessions.Delete(context.Background(), "root"); err != nil {
		t.Fatalf("delete parent failed: %v", err)
	}
	reg.Complete(d.ID, Success())

	got, _ := reg.Get(d.ID)
	if got.Status != StatusComplete {
		t.Errorf("notify failure must not roll back completion, got %s", got.Status)
	}
	if _, err := results.Read(context.Background(), "root", "orphaned"); err != nil {
		t.Errorf("result must still be persisted: %v", err)
	}
}
