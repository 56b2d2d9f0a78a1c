package delegation

import (
	"context"
	"fmt"
	"time"

	"github.com/vinayprograms/handoff/session"
	"github.com/vinayprograms/handoff/store"
)

// timeoutMarker terminates the body of a timed-out result so readers
// can distinguish it from a normal transcript.
const timeoutMarker = "[delegation timed out]"

// Complete moves a delegation to a terminal state. It is the single
// funnel for every terminal transition: success, dispatch failure,
// watchdog timeout, and cancellation all land here, possibly
// concurrently. The first caller to observe the record still running
// wins; every later call for the same delegation is a no-op, so the
// persisted result and the parent notice are produced exactly once.
func (r *Registry) Complete(id string, outcome Outcome) {
	r.mu.Lock()
	d, ok := r.byID[id]
	if !ok || d.Status != StatusRunning {
		r.mu.Unlock()
		return
	}

	now := time.Now()
	d.Status = outcome.status
	d.CompletedAt = &now
	if outcome.status == StatusError || outcome.status == StatusTimeout {
		d.Error = outcome.message
	}
	if t := r.watchdogs[id]; t != nil {
		t.Stop()
		delete(r.watchdogs, id)
	}
	snapshot := d.Clone()
	r.mu.Unlock()

	ctx := context.Background()
	body := r.composeBody(ctx, snapshot, outcome)

	// Persistence and notification are best-effort: the in-memory
	// transition above already happened and must not be rolled back.
	err := r.results.Write(ctx, snapshot.Scope, snapshot.Key, store.Header{
		Description: snapshot.Description,
		Agent:       snapshot.Agent,
		Status:      string(snapshot.Status),
		StartedAt:   snapshot.StartedAt,
		CompletedAt: now,
	}, body)
	if err != nil {
		r.log.PersistFailed(snapshot.Scope, snapshot.Key, err)
	}

	r.notifyParent(ctx, snapshot)
	r.log.DelegationCompleted(snapshot.Key, string(snapshot.Status), now.Sub(snapshot.StartedAt))
}

// composeBody builds the result body persisted for an outcome.
func (r *Registry) composeBody(ctx context.Context, d *Delegation, outcome Outcome) string {
	switch outcome.status {
	case StatusComplete:
		return r.extractTranscript(ctx, d.SessionID)
	case StatusTimeout:
		return outcome.message + "\n\n" + timeoutMarker
	default:
		return outcome.message
	}
}

// extractTranscript pulls the last assistant reply out of the
// delegation's session. Missing output is substituted, never an error:
// a completed delegation always has a readable result.
func (r *Registry) extractTranscript(ctx context.Context, sessionID string) string {
	msgs, err := r.sessions.Messages(ctx, sessionID)
	if err != nil {
		return fmt.Sprintf("(transcript unavailable: %v)", err)
	}

	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != session.RoleAssistant {
			continue
		}
		if text := msgs[i].Text(); text != "" {
			return text
		}
		return "(the assistant reply contained no text content)"
	}
	return "(the delegated task produced no output)"
}

// notifyParent posts a completion notice into the parent session.
// NoReply keeps the notice from triggering a new turn there.
func (r *Registry) notifyParent(ctx context.Context, d *Delegation) {
	text := fmt.Sprintf("Delegated task %q finished with status %s.", d.Key, d.Status)
	if d.Description != "" {
		text = fmt.Sprintf("Delegated task %q (%s) finished with status %s.", d.Key, d.Description, d.Status)
	}
	err := r.sessions.Notify(ctx, d.ParentSessionID, session.Notice{
		Agent:   d.ParentAgent,
		Text:    text,
		NoReply: true,
	})
	if err != nil {
		r.log.NotifyFailed(d.ParentSessionID, err)
	}
}
