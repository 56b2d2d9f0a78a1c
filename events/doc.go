// Package events carries session lifecycle notifications from the
// session service to the delegation coordinator.
//
// Two event types exist: session.idle (a session stopped producing
// activity, the success-completion trigger) and session.message
// (message content changed, recorded as passive progress bookkeeping).
//
// The Stream interface has two implementations: MemoryStream for
// in-process fan-out and NATSStream for cross-process delivery over
// NATS. Both use channel-based subscriptions that drop events when a
// subscriber's buffer is full; delivery is best-effort by design, since
// the watchdog bounds the damage of a lost idle event.
package events
