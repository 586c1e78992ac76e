package endpoint

import "sync"

// TransitionTracker reduces log noise by only reporting a health change the
// first time it's observed, adapted from the teacher's status-transition
// tracker: a router logging "endpoint unhealthy" on every single failed
// call during an outage is far less useful than one log line per actual
// transition.
type TransitionTracker struct {
	mu   sync.Mutex
	last map[string]bool // key -> last reported healthy state
}

func NewTransitionTracker() *TransitionTracker {
	return &TransitionTracker{last: make(map[string]bool)}
}

// ShouldLog reports whether healthy differs from the last reported state
// for ep, and records the new state.
func (t *TransitionTracker) ShouldLog(ep Endpoint, healthy bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := ep.Key()
	prev, seen := t.last[key]
	t.last[key] = healthy
	if !seen {
		return true
	}
	return prev != healthy
}
