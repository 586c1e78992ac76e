package endpoint

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/openjp-go/ojp/pkg/eventbus"
)

// healthState holds the mutable per-endpoint fields from spec.md §3:
// "healthy flag (initially true), last-failure timestamp (initially zero)".
// Fields are atomic so reads never block a concurrent MarkUnhealthy from a
// different caller goroutine, satisfying spec.md §5's single-writer,
// multi-reader requirement.
type healthState struct {
	healthy     atomic.Bool
	lastFailure atomic.Int64 // unix nano; 0 == never failed
}

// Registry holds an EndpointSet plus the mutable health bookkeeping for
// each of its members. The set of keys in status is fixed at construction
// (one entry per endpoint), so the map itself needs no further locking -
// only the atomics inside each healthState mutate after that.
type Registry struct {
	set    *EndpointSet
	status map[string]*healthState

	eventsOnce sync.Once
	events     *eventbus.EventBus[HealthEvent]
}

func NewRegistry(set *EndpointSet) *Registry {
	r := &Registry{
		set:    set,
		status: make(map[string]*healthState, set.Len()),
	}
	for _, ep := range set.All() {
		hs := &healthState{}
		hs.healthy.Store(true)
		r.status[ep.Key()] = hs
	}
	return r
}

func (r *Registry) Set() *EndpointSet { return r.set }

// Healthy reports the current health flag for ep. An endpoint not present
// in the registry (shouldn't happen in practice) is reported unhealthy.
func (r *Registry) Healthy(ep Endpoint) bool {
	hs, ok := r.status[ep.Key()]
	if !ok {
		return false
	}
	return hs.healthy.Load()
}

// LastFailure returns the last-failure timestamp, or the zero Time if the
// endpoint has never failed.
func (r *Registry) LastFailure(ep Endpoint) time.Time {
	hs, ok := r.status[ep.Key()]
	if !ok {
		return time.Time{}
	}
	nano := hs.lastFailure.Load()
	if nano == 0 {
		return time.Time{}
	}
	return time.Unix(0, nano)
}

// MarkUnhealthy flips the health flag false and records now as the
// last-failure timestamp. It does not touch any ChannelHandle - that's the
// Channel Cache's job (internal/channel), which wraps this call with
// handle teardown per spec.md §4.2.
func (r *Registry) MarkUnhealthy(ep Endpoint) {
	hs, ok := r.status[ep.Key()]
	if !ok {
		return
	}
	hs.healthy.Store(false)
	hs.lastFailure.Store(time.Now().UnixNano())
	r.publish(ep, false)
}

// MarkHealthy flips the health flag true and clears the last-failure
// timestamp, per spec.md §3: "flips back to true only when either the
// recovery sweep successfully re-creates a channel or a call through a
// newly (re)created channel succeeds."
func (r *Registry) MarkHealthy(ep Endpoint) {
	hs, ok := r.status[ep.Key()]
	if !ok {
		return
	}
	hs.healthy.Store(true)
	hs.lastFailure.Store(0)
	r.publish(ep, true)
}

// HealthySubset returns the healthy subset of the EndpointSet, in original order.
func (r *Registry) HealthySubset() []Endpoint {
	all := r.set.All()
	out := make([]Endpoint, 0, len(all))
	for _, ep := range all {
		if r.Healthy(ep) {
			out = append(out, ep)
		}
	}
	return out
}

// UnhealthyDue returns the unhealthy endpoints whose last failure is older
// than delay - the candidates a recovery sweep should attempt, per
// spec.md §4.2: "iterates unhealthy endpoints whose now - lastFailure
// exceeds the configured retry delay".
func (r *Registry) UnhealthyDue(delay time.Duration) []Endpoint {
	now := time.Now()
	all := r.set.All()
	out := make([]Endpoint, 0, len(all))
	for _, ep := range all {
		if r.Healthy(ep) {
			continue
		}
		lastFailure := r.LastFailure(ep)
		if lastFailure.IsZero() || now.Sub(lastFailure) > delay {
			out = append(out, ep)
		}
	}
	return out
}
