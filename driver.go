// Package ojp is the public entry point to the multi-node OJP client
// driver: it wires the URL Parser, Endpoint Registry, Channel Cache,
// Session Table, Router, Call Dispatcher, and LOB Stream Engine described
// in spec.md into a single handle a database-client layer can open a
// Conn against.
package ojp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openjp-go/ojp/internal/channel"
	"github.com/openjp-go/ojp/internal/config"
	"github.com/openjp-go/ojp/internal/dispatch"
	"github.com/openjp-go/ojp/internal/endpoint"
	"github.com/openjp-go/ojp/internal/errs"
	"github.com/openjp-go/ojp/internal/lob"
	"github.com/openjp-go/ojp/internal/locator"
	"github.com/openjp-go/ojp/internal/logger"
	"github.com/openjp-go/ojp/internal/router"
	"github.com/openjp-go/ojp/internal/session"
	"github.com/openjp-go/ojp/internal/wire"
	"github.com/openjp-go/ojp/pkg/eventbus"
)

// Driver owns the shared, endpoint-scoped state for one locator: the
// registry, channel cache, router, and dispatcher. A single Driver is
// meant to be built once per distinct locator and reused across many
// Conns, matching spec.md §1's "one client per logical multi-node
// deployment" framing.
type Driver struct {
	profile    string
	downstream string

	registry   *endpoint.Registry
	channels   *channel.Cache
	sessions   *session.Table
	router     *router.Router
	dispatcher *dispatch.Dispatcher
	log        logger.StyledLogger
}

// Open parses locatorStr and builds a Driver ready to accept Conns. dial,
// when nil, uses channel.DefaultDialer (plaintext gRPC).
func Open(locatorStr string, cfg *config.Config, log logger.StyledLogger, dial channel.Dialer) (*Driver, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		_, styled, _, err := logger.New(nil)
		if err != nil {
			return nil, err
		}
		log = styled
	}

	set, err := locator.ParseEndpoints(locatorStr)
	if err != nil {
		return nil, err
	}
	downstream, err := locator.ExtractDownstreamURL(locatorStr)
	if err != nil {
		return nil, err
	}
	profileName, err := locator.ExtractPoolProfile(locatorStr)
	if err != nil {
		return nil, err
	}

	registry := endpoint.NewRegistry(set)
	channels := channel.NewCache(registry, dial)
	sessions := session.NewTable()
	r := router.New(registry, channels, sessions, cfg.Dispatch.RecoveryDelay)

	profile := cfg.ResolveProfile(profileName)
	dispatcher := dispatch.New(r, channels, dispatch.Policy{
		RetryDelay:       cfg.Dispatch.RetryDelay,
		RetryAttempts:    cfg.Dispatch.RetryAttempts,
		MaxOutboundBytes: profile.MaxOutboundMessageBytes,
	}, log)

	return &Driver{
		profile:    profileName,
		downstream: downstream,
		registry:   registry,
		channels:   channels,
		sessions:   sessions,
		router:     r,
		dispatcher: dispatcher,
		log:        log,
	}, nil
}

// Downstream returns the downstream-locator portion stripped of the OJP
// bracketed endpoint list, e.g. "jdbc:h2:mem:test".
func (d *Driver) Downstream() string { return d.downstream }

// Profile returns the pool-profile name taken from this locator (the
// literal "default" when the locator names none). A name with no matching
// config profile is still returned as written; only its settings fall back
// to the "default" profile.
func (d *Driver) Profile() string { return d.profile }

// Events exposes the endpoint health-transition bus for diagnostics, e.g.
// logging or a metrics exporter subscribing to MarkHealthy/MarkUnhealthy
// transitions without polling the registry.
func (d *Driver) Events() *eventbus.EventBus[endpoint.HealthEvent] { return d.registry.Events() }

// Close shuts down every channel this Driver has opened.
func (d *Driver) Close() error { return d.channels.Close() }

// Conn is one logical database connection opened through a Driver. It owns
// a single Session - the mutable, replaceable server-side state spec.md §3
// describes - and issues calls through the Driver's shared Dispatcher.
type Conn struct {
	driver *Driver
	sess   *session.Session
}

// Connect opens a new session against the next healthy endpoint in
// round-robin order, per spec.md §4.3's selectForNewSession.
func (d *Driver) Connect(ctx context.Context, user, password string, props []byte) (*Conn, error) {
	sess := session.New()
	c := &Conn{driver: d, sess: sess}

	_, err := d.dispatcher.Connect(ctx, sess, d.sessions, &wire.ConnectionDetails{
		URL:                  d.downstream,
		User:                 user,
		Password:             password,
		ClientIdentifier:     uuid.NewString(),
		SerializedProperties: props,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ExecuteUpdate runs a data-modifying statement against c's session.
func (c *Conn) ExecuteUpdate(ctx context.Context, statementIdentifier, sql string, params, props []byte) (*wire.OpResult, error) {
	return c.driver.dispatcher.ExecuteUpdate(ctx, c.sess, c.driver.sessions, statementIdentifier, sql, params, props)
}

// ExecuteQuery runs a query statement against c's session.
func (c *Conn) ExecuteQuery(ctx context.Context, statementIdentifier, sql string, params, props []byte) (*wire.OpResult, error) {
	return c.driver.dispatcher.ExecuteQuery(ctx, c.sess, c.driver.sessions, statementIdentifier, sql, params, props)
}

// FetchNextRows pages through an open result set. pageSize of 0 uses
// wire.DefaultPageSize (100 rows); the config's Dispatch.DefaultPageSize is
// not consulted.
func (c *Conn) FetchNextRows(ctx context.Context, resultSetIdentifier string, pageSize int) (*wire.OpResult, error) {
	return c.driver.dispatcher.FetchNextRows(ctx, c.sess, c.driver.sessions, resultSetIdentifier, pageSize)
}

func (c *Conn) StartTransaction(ctx context.Context, props []byte) (*wire.OpResult, error) {
	return c.driver.dispatcher.StartTransaction(ctx, c.sess, c.driver.sessions, props)
}

func (c *Conn) CommitTransaction(ctx context.Context) (*wire.OpResult, error) {
	return c.driver.dispatcher.CommitTransaction(ctx, c.sess, c.driver.sessions)
}

func (c *Conn) RollbackTransaction(ctx context.Context) (*wire.OpResult, error) {
	return c.driver.dispatcher.RollbackTransaction(ctx, c.sess, c.driver.sessions)
}

// CallResource invokes an operation on an opaque server-side resource, per
// spec.md §4.6.
func (c *Conn) CallResource(ctx context.Context, kind wire.ResourceKind, resourceIdentifier string, call wire.TargetCall) (*wire.CallResourceResponse, error) {
	return c.driver.dispatcher.CallResource(ctx, c.sess, c.driver.sessions, &wire.CallResourceRequest{
		ResourceKind:       kind,
		ResourceIdentifier: resourceIdentifier,
		TargetCall:         call,
	})
}

// Close terminates c's session, per spec.md §4.4's terminateSession.
func (c *Conn) Close(ctx context.Context) error {
	_, err := c.driver.dispatcher.TerminateSession(ctx, c.sess, c.driver.sessions)
	return err
}

// WriteLob opens a byte-sink for streaming a new large object to the
// endpoint currently owning c's session, per spec.md §4.5.1. The caller
// must Close the returned Writer to obtain the server-issued LobReference.
func (c *Conn) WriteLob(ctx context.Context, opts lob.WriteOptions) (*lob.Writer, error) {
	ep, ok := c.driver.router.SelectForSession(ctx, c.sess.ID())
	if !ok {
		return nil, errs.Sentinel(errs.KindNoHealthyEndpoints)
	}
	h, err := c.driver.channels.Get(ctx, ep)
	if err != nil {
		return nil, errs.MapTransportError(ep.Key(), err)
	}

	stream, err := h.Stream.WriteLob(ctx)
	if err != nil {
		return nil, errs.MapTransportError(ep.Key(), err)
	}

	currentRef := func() wire.SessionRef {
		info := c.sess.Current()
		return wire.SessionRef{
			Identifier:     info.Identifier,
			ConnectionHash: info.ConnectionHash,
			Family:         wire.DatabaseFamily(info.Family),
			ServerState:    info.ServerState,
		}
	}
	mergeSession := func(ref wire.SessionRef) {
		if ref.Identifier == "" {
			return
		}
		c.sess.Merge(session.Info{
			Identifier:     ref.Identifier,
			ConnectionHash: ref.ConnectionHash,
			Family:         session.DatabaseFamily(ref.Family),
			ServerState:    ref.ServerState,
		})
	}

	if opts.Family == "" {
		opts.Family = wire.DatabaseFamily(c.sess.Family())
	}
	return lob.NewWriter(ctx, stream, currentRef, mergeSession, opts), nil
}

// ReadLob opens a byte-source for streaming an existing large object back
// from the server, per spec.md §4.5.2.
func (c *Conn) ReadLob(ctx context.Context, ref wire.LobReference, position, length int64) (*lob.Source, error) {
	ep, ok := c.driver.router.SelectForSession(ctx, c.sess.ID())
	if !ok {
		return nil, errs.Sentinel(errs.KindNoHealthyEndpoints)
	}
	h, err := c.driver.channels.Get(ctx, ep)
	if err != nil {
		return nil, errs.MapTransportError(ep.Key(), err)
	}
	return lob.NewSource(h.Stream, ref, position, length), nil
}

// StartRecoverySweep runs one recovery-sweep pass immediately, outside the
// dispatcher's own lazy per-call sweep. Intended for callers that want a
// periodic background sweep rather than relying purely on call-triggered
// recovery.
func (d *Driver) StartRecoverySweep(ctx context.Context, delay time.Duration) error {
	return d.channels.RecoverySweep(ctx, delay)
}
