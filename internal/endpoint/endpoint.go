// Package endpoint implements the Endpoint/EndpointSet data model and the
// Endpoint Registry of spec.md §3 and §4.2.
package endpoint

import (
	"strconv"
	"sync/atomic"
)

// Endpoint is a (host, port) address of a remote OJP proxy server. Two
// endpoints are equal iff their host and port match; Endpoint itself is an
// immutable value - mutable health state lives in Registry, keyed by Key().
type Endpoint struct {
	Host string
	Port int
}

func NewEndpoint(host string, port int) Endpoint {
	return Endpoint{Host: host, Port: port}
}

// Key is the canonical "host:port" identity used to index mutable state and
// channel handles.
func (e Endpoint) Key() string {
	return e.Host + ":" + strconv.Itoa(e.Port)
}

func (e Endpoint) String() string { return e.Key() }

func (e Endpoint) Equal(other Endpoint) bool {
	return e.Host == other.Host && e.Port == other.Port
}

// EndpointSet is the ordered, immutable sequence of Endpoints parsed from a
// locator, plus the single shared round-robin cursor described in spec.md
// §3 and §9 ("round-robin over a filtered subset"). It is never empty once
// constructed via NewEndpointSet with a non-empty slice.
type EndpointSet struct {
	endpoints []Endpoint
	cursor    atomic.Uint64
}

// NewEndpointSet builds an EndpointSet preserving insertion order. Panics
// if eps is empty - callers (internal/locator) are expected to have already
// rejected an empty endpoint list as errs.KindInvalidLocator.
func NewEndpointSet(eps []Endpoint) *EndpointSet {
	if len(eps) == 0 {
		panic("endpoint: NewEndpointSet requires at least one endpoint")
	}
	cp := make([]Endpoint, len(eps))
	copy(cp, eps)
	return &EndpointSet{endpoints: cp}
}

// All returns the endpoints in original locator order. The returned slice
// must not be mutated by callers.
func (s *EndpointSet) All() []Endpoint {
	return s.endpoints
}

func (s *EndpointSet) Len() int { return len(s.endpoints) }

// Advance atomically increments the shared cursor and returns its
// pre-increment value. The router reduces it modulo the full endpoint
// count and skips forward past unhealthy endpoints.
func (s *EndpointSet) Advance() uint64 {
	return s.cursor.Add(1) - 1
}
