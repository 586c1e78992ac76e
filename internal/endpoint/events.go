package endpoint

import (
	"time"

	"github.com/openjp-go/ojp/pkg/eventbus"
)

// HealthEvent is published whenever a Registry flips an endpoint's health
// flag, letting diagnostics (logging, metrics, admin UIs) observe the
// transitions spec.md §3/§9 describe without polling the registry.
type HealthEvent struct {
	Endpoint  Endpoint
	Healthy   bool
	Timestamp time.Time
}

// Events returns the registry's health-transition bus, creating it lazily
// on first use. Until then no bus is allocated and health transitions are
// not published.
func (r *Registry) Events() *eventbus.EventBus[HealthEvent] {
	r.eventsOnce.Do(func() {
		r.events = eventbus.New[HealthEvent]()
	})
	return r.events
}

func (r *Registry) publish(ep Endpoint, healthy bool) {
	if r.events == nil {
		return
	}
	r.events.Publish(HealthEvent{Endpoint: ep, Healthy: healthy, Timestamp: time.Now()})
}
