// Package delegation orchestrates the lifecycle of conversational
// tasks handed off to background sessions.
//
// A Registry tracks each delegation from Start to exactly one terminal
// state. Callers name a task with a key of their choosing; the key is
// the only handle they need to read, list, or delete it later. Every
// delegation runs in its own isolated child session, under a watchdog
// that bounds its runtime.
//
// Completion is a race with one winner: the session going idle, a
// dispatch rejection, the watchdog, and an explicit delete all funnel
// through Registry.Complete, which applies the first outcome and drops
// the rest. The winning outcome is persisted to the result store and
// announced to the parent session.
//
// Tool binds the registry to one parent session for use as an agent
// tool surface.
package delegation
