// Package session is the capability interface onto the external
// session service that hosts delegated work.
//
// Sessions form a tree via parent IDs. The coordinator creates one
// child session per delegation, dispatches a prompt into it, and later
// reads the transcript back. Scope resolution (ResolveScope) walks a
// session's parent chain to its root ancestor, which identifies the
// persistence boundary shared by all delegations started from the same
// tree; the walk is bounded so cyclic or broken chains cannot hang the
// coordinator.
//
// Two implementations ship with the package: MemoryClient, an
// in-memory service for tests and single-process use, and
// AnthropicClient, an in-process service that runs each turn against
// the Anthropic Messages API and announces completion on an event
// stream.
package session
