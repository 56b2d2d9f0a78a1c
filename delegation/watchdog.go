package delegation

import (
	"context"
	"time"
)

// armWatchdogLocked schedules the runtime watchdog for a delegation.
// Caller must hold r.mu. The timer is armed before the prompt is
// dispatched, so even a dispatch that hangs forever cannot leave the
// delegation running unbounded.
func (r *Registry) armWatchdogLocked(id string) {
	deadline := r.cfg.MaxRuntime + r.cfg.Grace
	r.watchdogs[id] = time.AfterFunc(deadline, func() {
		r.watchdogFired(id)
	})
}

// watchdogFired handles a watchdog expiry. It races against the
// success path; Complete arbitrates, so a delegation that finished
// just before the timer fired keeps its success outcome.
func (r *Registry) watchdogFired(id string) {
	if r.closed.Load() {
		return
	}

	r.mu.RLock()
	d, ok := r.byID[id]
	running := ok && d.Status == StatusRunning
	var key, sessionID string
	if ok {
		key = d.Key
		sessionID = d.SessionID
	}
	r.mu.RUnlock()

	if !running {
		return
	}

	r.log.WatchdogFired(key, r.cfg.MaxRuntime+r.cfg.Grace)

	// Tear the session down first so the task stops consuming
	// resources, then record the terminal state. Session deletion is
	// best-effort.
	if sessionID != "" {
		if err := r.sessions.Delete(context.Background(), sessionID); err != nil {
			r.log.Warn("delete_session_failed", map[string]interface{}{
				"session": sessionID,
				"error":   err.Error(),
			})
		}
	}
	r.Complete(id, TimedOut(r.cfg.MaxRuntime))
}
