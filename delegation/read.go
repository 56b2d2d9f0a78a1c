package delegation

import (
	"context"
	"errors"
	"time"

	"github.com/vinayprograms/handoff/store"
)

// errWaitElapsed signals that a blocking read's bounded wait ran out
// with the delegation still running.
var errWaitElapsed = errors.New("wait elapsed")

// Read returns the serialized result entry for (scope, key). If the
// delegation is still running, Read blocks until it finishes, the
// caller's context is cancelled, or the read deadline passes. The
// deadline extends past the watchdog deadline so the timeout result
// can land and be returned instead of an error.
//
// A persisted entry always wins. When persistence failed, the result
// is synthesized from the in-memory record so a finished delegation is
// always readable while the process lives.
func (r *Registry) Read(ctx context.Context, scope, key string) (string, error) {
	if r.closed.Load() {
		return "", ErrClosed
	}
	if err := store.ValidateKey(key); err != nil {
		return "", ErrInvalidKey
	}

	if content, err := r.results.Read(ctx, scope, key); err == nil {
		return content, nil
	}

	d := r.FindByKey(scope, key)
	if d == nil {
		return "", ErrNotFound
	}

	if d.Status == StatusRunning {
		var err error
		d, err = r.waitForTerminal(ctx, scope, key)
		if errors.Is(err, errWaitElapsed) {
			// The record never went terminal within the bounded wait.
			// One last store check in case another writer landed an
			// entry, then give up.
			if content, serr := r.results.Read(ctx, scope, key); serr == nil {
				return content, nil
			}
			return "", ErrNotFound
		}
		if err != nil {
			return "", err
		}
	}

	// The status flips before the completion funnel persists, so give
	// the write a short window to land before falling back to a
	// synthesized entry.
	for i := 0; i < persistRetries; i++ {
		if content, err := r.results.Read(ctx, scope, key); err == nil {
			return content, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
	return synthesize(d), nil
}

// persistRetries bounds the wait for a just-completed delegation's
// entry to appear in the store.
const persistRetries = 10

// waitForTerminal polls the in-memory record until it leaves the
// running state. Polling rather than a per-delegation condition keeps
// the registry free of reader bookkeeping that would have to survive
// deletes.
func (r *Registry) waitForTerminal(ctx context.Context, scope, key string) (*Delegation, error) {
	deadline := time.NewTimer(r.cfg.MaxRuntime + r.cfg.Grace + r.cfg.ReadMargin)
	defer deadline.Stop()
	tick := time.NewTicker(r.cfg.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			// Watchdog should have fired long before this.
			return nil, errWaitElapsed
		case <-tick.C:
			d := r.FindByKey(scope, key)
			if d == nil {
				// Deleted while we waited.
				return nil, ErrNotFound
			}
			if d.Status.IsTerminal() {
				return d, nil
			}
		}
	}
}

// synthesize renders a readable entry from the in-memory record when
// no persisted entry exists. The header matches what a persisted
// entry would have carried.
func synthesize(d *Delegation) string {
	h := store.Header{
		Description: d.Description,
		Agent:       d.Agent,
		Status:      string(d.Status),
	}
	h.StartedAt = d.StartedAt
	if d.CompletedAt != nil {
		h.CompletedAt = *d.CompletedAt
	}

	body := "(result was not persisted; delegation finished with status " + string(d.Status) + ")"
	if d.Error != "" {
		body += "\n" + d.Error
	}
	return h.Marshal() + "\n" + body
}
