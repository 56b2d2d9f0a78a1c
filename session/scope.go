package session

import "context"

// MaxScopeHops bounds the parent-chain walk during scope resolution.
// Malformed session data can contain cycles; the bound guarantees
// termination.
const MaxScopeHops = 10

// Resolution describes how a scope was determined.
type Resolution int

const (
	// Resolved means the walk reached a root session normally.
	Resolved Resolution = iota

	// Truncated means the walk hit MaxScopeHops and fell back to
	// the last reachable ID.
	Truncated

	// Errored means a parent lookup failed mid-walk (or the input
	// was empty) and the last reachable ID was used as fallback.
	Errored
)

// String returns the resolution name.
func (r Resolution) String() string {
	switch r {
	case Resolved:
		return "resolved"
	case Truncated:
		return "truncated"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// ResolveScope walks the parent chain of sessionID to its root ancestor
// and returns the root ID as the scope. The walk is bounded by
// MaxScopeHops; if the bound is hit or a lookup fails, the last
// reachable ID is returned with the corresponding Resolution so the
// caller still gets a usable scope.
func ResolveScope(ctx context.Context, c Client, sessionID string) (string, Resolution) {
	if sessionID == "" {
		return "", Errored
	}

	current := sessionID
	for hop := 0; hop < MaxScopeHops; hop++ {
		parent, err := c.ParentID(ctx, current)
		if err != nil {
			return current, Errored
		}
		if parent == "" {
			return current, Resolved
		}
		current = parent
	}

	return current, Truncated
}
