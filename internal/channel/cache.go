package channel

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"

	"github.com/openjp-go/ojp/internal/endpoint"
	"github.com/openjp-go/ojp/internal/wire"
)

// Cache is the Channel Cache of spec.md §4.2: it lazily creates a Handle per
// endpoint, guarantees at most one Handle per endpoint, and shuts down a
// Handle whenever its endpoint is marked unhealthy.
type Cache struct {
	registry *endpoint.Registry
	dial     Dialer
	dialOpts []grpc.DialOption

	mu      sync.Mutex
	handles map[string]*Handle
	group   singleflight.Group
}

func NewCache(registry *endpoint.Registry, dial Dialer, dialOpts ...grpc.DialOption) *Cache {
	if dial == nil {
		dial = DefaultDialer
	}
	return &Cache{
		registry: registry,
		dial:     dial,
		dialOpts: dialOpts,
		handles:  make(map[string]*Handle),
	}
}

// Get returns the cached Handle for ep, lazily dialing one if absent.
// Concurrent Get calls for the same endpoint are collapsed onto a single
// dial via singleflight, satisfying spec.md §4.2's "lookup-with-create is
// atomic with respect to other lookups on the same endpoint".
func (c *Cache) Get(ctx context.Context, ep endpoint.Endpoint) (*Handle, error) {
	c.mu.Lock()
	if h, ok := c.handles[ep.Key()]; ok {
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(ep.Key(), func() (any, error) {
		c.mu.Lock()
		if h, ok := c.handles[ep.Key()]; ok {
			c.mu.Unlock()
			return h, nil
		}
		c.mu.Unlock()

		h, err := c.dialHandle(ctx, ep)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.handles[ep.Key()] = h
		c.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

func (c *Cache) dialHandle(ctx context.Context, ep endpoint.Endpoint) (*Handle, error) {
	cc, err := c.dial(ctx, ep, c.dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Handle{
		Endpoint: ep,
		Conn:     cc,
		Unary:    wire.NewUnaryClient(cc),
		Stream:   wire.NewStreamClient(cc),
	}, nil
}

// MarkUnhealthy flips ep's health flag false in the registry, records the
// failure time, and evicts + shuts down its Handle if one exists. Teardown
// is serialized per endpoint by the cache's mutex, per spec.md §5.
func (c *Cache) MarkUnhealthy(ep endpoint.Endpoint) {
	c.registry.MarkUnhealthy(ep)

	c.mu.Lock()
	h, ok := c.handles[ep.Key()]
	if ok {
		delete(c.handles, ep.Key())
	}
	c.mu.Unlock()

	if ok {
		_ = h.close()
	}
}

// MarkHealthy flips ep's health flag true and clears its last-failure
// timestamp in the registry, per spec.md §4.4's reaffirmation step on a
// successful call.
func (c *Cache) MarkHealthy(ep endpoint.Endpoint) {
	c.registry.MarkHealthy(ep)
}

// RecoverySweep attempts to re-create a Handle for every unhealthy endpoint
// whose last failure is older than delay, per spec.md §4.2. Endpoints that
// dial successfully flip back to healthy; failures are aggregated and
// returned (not fatal to the sweep itself).
func (c *Cache) RecoverySweep(ctx context.Context, delay time.Duration) error {
	due := c.registry.UnhealthyDue(delay)
	if len(due) == 0 {
		return nil
	}

	var errs error
	for _, ep := range due {
		if _, err := c.Get(ctx, ep); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		c.registry.MarkHealthy(ep)
	}
	return errs
}

// Handle returns the currently cached Handle for ep without dialing.
func (c *Cache) Handle(ep endpoint.Endpoint) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[ep.Key()]
	return h, ok
}

// Close shuts down every cached Handle. Intended for driver teardown.
func (c *Cache) Close() error {
	c.mu.Lock()
	handles := c.handles
	c.handles = make(map[string]*Handle)
	c.mu.Unlock()

	var errs error
	for _, h := range handles {
		if err := h.close(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
