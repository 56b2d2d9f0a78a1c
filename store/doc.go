// Package store persists delegation results durably across coordinator
// restarts.
//
// The store is partitioned by scope (the root ancestor of the session
// tree a delegation was started from) and keyed by the caller-chosen
// delegation key. Each entry is a small text header (description,
// agent, final status, start/end timestamps), a blank line, then the
// captured result body. The in-memory delegation registry is lost on
// restart; entries written here are the only durable handoff.
//
// FileStore keeps one file per entry under <base>/<scope>/<key> and
// writes through a temp file plus rename. MemoryStore backs tests.
package store
