package delegation

import (
	"sync"

	"github.com/vinayprograms/handoff/events"
)

// Listen wires the registry to a session event stream. Idle events
// complete the delegation running in the idle session; message events
// update its progress bookkeeping. Events for sessions that are not
// tracked delegations are ignored.
//
// The returned stop function cancels the subscription; it is safe to
// call more than once.
func (r *Registry) Listen(stream events.Stream) (func(), error) {
	sub, err := stream.Subscribe()
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				r.handleEvent(ev)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			sub.Cancel()
		})
	}
	return stop, nil
}

// handleEvent routes one session event into the lifecycle.
func (r *Registry) handleEvent(ev events.Event) {
	switch ev.Type {
	case events.TypeSessionIdle:
		d := r.FindBySession(ev.SessionID)
		if d == nil || d.Status != StatusRunning {
			return
		}
		r.Complete(d.ID, Success())
	case events.TypeMessageUpdated:
		r.RecordActivity(ev.SessionID, ev.Text)
	}
}
