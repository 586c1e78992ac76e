// Package session implements the Session data model and the Session Table
// (pinning) of spec.md §3: a mutable "current session object" that every
// response replaces wholesale, kept separate from the stable identifier
// that keys the pin map.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/openjp-go/ojp/internal/endpoint"
)

// DatabaseFamily is the closed set of downstream database families whose
// LOB streaming quirks the engine must honor, per spec.md §3.
type DatabaseFamily string

const (
	FamilyGeneric DatabaseFamily = "generic"
	FamilyH2      DatabaseFamily = "h2"
)

// Info is the replaceable server-side session object carried on every
// response. The identifier is the stable key used for pinning; every other
// field may change from response to response ("last response wins").
type Info struct {
	Identifier     string
	ConnectionHash string
	Family         DatabaseFamily
	ServerState    []byte
}

// Session is a single logical database connection as seen by one caller. Its
// Info cell is guarded by "last response wins": every successful call
// replaces it in full, per spec.md §9's "refresh session on every response".
type Session struct {
	mu   sync.RWMutex
	info Info
}

func New() *Session {
	return &Session{}
}

// ID returns the current identifier, or "" before the first response.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Identifier
}

func (s *Session) Family() DatabaseFamily {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info.Family == "" {
		return FamilyGeneric
	}
	return s.info.Family
}

// Current returns a copy of the session's current Info.
func (s *Session) Current() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Merge installs info as the session's new current value. Per spec.md §3's
// invariant, a non-empty identifier on any response MUST be adopted for
// subsequent calls.
func (s *Session) Merge(info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}

// Table is the Session Table of spec.md §2: a concurrent map from session
// identifier to the Endpoint currently holding its server-side state.
type Table struct {
	pins sync.Map // string -> endpoint.Endpoint
	size atomic.Int64
}

func NewTable() *Table {
	return &Table{}
}

// Pin records that sessionID is (now) owned by ep. Concurrent Pin calls for
// the same identifier race per spec.md §5's "last writer wins" policy;
// correctness only depends on eventual consistency since a stale pin to an
// unhealthy endpoint is re-checked at next dispatch.
func (t *Table) Pin(sessionID string, ep endpoint.Endpoint) {
	if sessionID == "" {
		return
	}
	if _, loaded := t.pins.Swap(sessionID, ep); !loaded {
		t.size.Add(1)
	}
}

// Lookup returns the pinned endpoint for sessionID, if any.
func (t *Table) Lookup(sessionID string) (endpoint.Endpoint, bool) {
	if sessionID == "" {
		return endpoint.Endpoint{}, false
	}
	v, ok := t.pins.Load(sessionID)
	if !ok {
		return endpoint.Endpoint{}, false
	}
	return v.(endpoint.Endpoint), true
}

// Unpin removes sessionID's pin, e.g. on explicit termination or when the
// pinned endpoint is found unhealthy at dispatch time.
func (t *Table) Unpin(sessionID string) {
	if sessionID == "" {
		return
	}
	if _, loaded := t.pins.LoadAndDelete(sessionID); loaded {
		t.size.Add(-1)
	}
}

// Len reports the number of currently pinned sessions.
func (t *Table) Len() int64 {
	return t.size.Load()
}
