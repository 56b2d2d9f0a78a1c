package delegation

import (
	"context"
	"errors"
	"testing"

	"github.com/vinayprograms/handoff/session"
	"github.com/vinayprograms/handoff/store"
)

func newTestTool(t *testing.T) (*Tool, *Registry, *session.MemoryClient) {
	t.Helper()
	reg, sessions, _ := newTestRegistry(t)
	sessions.AddChild("workbench", "root", "working session")
	return NewTool(reg, "workbench", "main"), reg, sessions
}

func TestToolStartReturnsAck(t *testing.T) {
	tool, reg, _ := newTestTool(t)

	ack, err := tool.Start(context.Background(), "dig into logs", "find the error", "researcher", "log-dig")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if ack.Key != "log-dig" {
		t.Errorf("expected ack key log-dig, got %s", ack.Key)
	}
	if ack.Agent != "researcher" {
		t.Errorf("expected ack agent researcher, got %s", ack.Agent)
	}

	// Scope resolved through the parent chain to the root.
	d := reg.FindByKey("root", "log-dig")
	if d == nil {
		t.Fatal("expected delegation registered under the root scope")
	}
	if d.ParentSessionID != "workbench" {
		t.Errorf("expected parent session workbench, got %s", d.ParentSessionID)
	}
}

func TestToolRoundTrip(t *testing.T) {
	tool, reg, sessions := newTestTool(t)

	if _, err := tool.Start(context.Background(), "summarize", "summarize it", "writer", "summary"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	d := reg.FindByKey("root", "summary")
	sessions.AppendAssistant(d.SessionID, "the summary text")
	reg.Complete(d.ID, Success())

	content, err := tool.Read(context.Background(), "summary")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if _, body := store.ParseEntry(content); body != "the summary text" {
		t.Errorf("expected completed body, got %q", body)
	}

	items, err := tool.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 || items[0].Key != "summary" {
		t.Fatalf("expected the summary item, got %v", items)
	}

	existed, err := tool.Delete(context.Background(), "summary")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !existed {
		t.Error("expected Delete to report the delegation existed")
	}
	if _, err := tool.Read(context.Background(), "summary"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestToolDeleteMissing(t *testing.T) {
	tool, _, _ := newTestTool(t)

	existed, err := tool.Delete(context.Background(), "never-was")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if existed {
		t.Error("expected Delete to report nothing existed")
	}
}

func TestToolCollisionSurfaces(t *testing.T) {
	tool, _, _ := newTestTool(t)

	if _, err := tool.Start(context.Background(), "a", "prompt", "researcher", "same"); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if _, err := tool.Start(context.Background(), "b", "prompt", "researcher", "same"); !errors.Is(err, ErrKeyCollision) {
		t.Errorf("expected ErrKeyCollision, got %v", err)
	}
}
