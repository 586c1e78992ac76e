// Package router implements endpoint selection of spec.md §4.3: round-robin
// over healthy endpoints for new sessions, sticky routing for established
// ones, and a recovery sweep when no endpoint is currently healthy.
package router

import (
	"context"
	"time"

	"github.com/openjp-go/ojp/internal/channel"
	"github.com/openjp-go/ojp/internal/endpoint"
	"github.com/openjp-go/ojp/internal/session"
)

// Router selects the Endpoint a call should be dispatched to.
type Router struct {
	registry      *endpoint.Registry
	cache         *channel.Cache
	sessions      *session.Table
	recoveryDelay time.Duration
}

func New(registry *endpoint.Registry, cache *channel.Cache, sessions *session.Table, recoveryDelay time.Duration) *Router {
	return &Router{registry: registry, cache: cache, sessions: sessions, recoveryDelay: recoveryDelay}
}

// SelectForNewSession implements spec.md §4.3's selectForNewSession over the
// full, fixed-order endpoint array rather than a freshly filtered slice:
// each call advances the shared cursor at least once, landing on the first
// healthy endpoint found scanning forward from the previous position. This
// keeps the round-robin order stable across transient unhealth (an endpoint
// skipped this round is the very next candidate once it recovers) while
// still satisfying "index mod healthy-count" when every endpoint is up.
func (r *Router) SelectForNewSession(ctx context.Context) (endpoint.Endpoint, bool) {
	if ep, ok := r.scanForHealthy(); ok {
		return ep, true
	}

	_ = r.cache.RecoverySweep(ctx, r.recoveryDelay)
	return r.scanForHealthy()
}

// scanForHealthy advances the cursor up to n times (n = endpoint count),
// returning the first healthy endpoint it lands on, or false if none of the
// n candidates in this sweep are healthy.
func (r *Router) scanForHealthy() (endpoint.Endpoint, bool) {
	set := r.registry.Set()
	all := set.All()
	n := len(all)

	for attempt := 0; attempt < n; attempt++ {
		idx := int(set.Advance() % uint64(n))
		ep := all[idx]
		if r.registry.Healthy(ep) {
			return ep, true
		}
	}
	return endpoint.Endpoint{}, false
}

// SelectForSession implements spec.md §4.3's selectForSession: delegate to
// SelectForNewSession when sessionID is empty or unpinned; otherwise use the
// pin if its endpoint is healthy, or unpin and delegate if not.
func (r *Router) SelectForSession(ctx context.Context, sessionID string) (endpoint.Endpoint, bool) {
	if sessionID == "" {
		return r.SelectForNewSession(ctx)
	}

	ep, ok := r.sessions.Lookup(sessionID)
	if !ok {
		return r.SelectForNewSession(ctx)
	}
	if r.registry.Healthy(ep) {
		return ep, true
	}

	r.sessions.Unpin(sessionID)
	return r.SelectForNewSession(ctx)
}
