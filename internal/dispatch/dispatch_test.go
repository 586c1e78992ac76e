package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/openjp-go/ojp/internal/channel"
	"github.com/openjp-go/ojp/internal/endpoint"
	"github.com/openjp-go/ojp/internal/errs"
	"github.com/openjp-go/ojp/internal/session"
	"github.com/openjp-go/ojp/internal/wire"
)

// fakeSelector hands out endpoints from a fixed list in order, ignoring
// session stickiness, and records how many times it was asked.
type fakeSelector struct {
	eps   []endpoint.Endpoint
	calls int
}

func (f *fakeSelector) SelectForSession(context.Context, string) (endpoint.Endpoint, bool) {
	if f.calls >= len(f.eps) {
		return endpoint.Endpoint{}, false
	}
	ep := f.eps[f.calls]
	f.calls++
	return ep, true
}

// fakeChannelSource hands back pre-built handles and records evictions.
type fakeChannelSource struct {
	handles    map[string]*channel.Handle
	evicted    []endpoint.Endpoint
	reaffirmed []endpoint.Endpoint
}

func (f *fakeChannelSource) Get(_ context.Context, ep endpoint.Endpoint) (*channel.Handle, error) {
	h, ok := f.handles[ep.Key()]
	if !ok {
		return nil, errors.New("no handle configured for " + ep.Key())
	}
	return h, nil
}

func (f *fakeChannelSource) MarkUnhealthy(ep endpoint.Endpoint) {
	f.evicted = append(f.evicted, ep)
}

func (f *fakeChannelSource) MarkHealthy(ep endpoint.Endpoint) {
	f.reaffirmed = append(f.reaffirmed, ep)
}

// fakeUnary implements wire.UnaryClient with scripted responses/errors per
// method, enough for the dispatcher tests below.
type fakeUnary struct {
	executeUpdateResp *wire.OpResult
	executeUpdateErr  error
}

func (f *fakeUnary) Connect(context.Context, *wire.ConnectionDetails) (*wire.SessionInfo, error) {
	return nil, nil
}
func (f *fakeUnary) ExecuteUpdate(context.Context, *wire.StatementRequest) (*wire.OpResult, error) {
	return f.executeUpdateResp, f.executeUpdateErr
}
func (f *fakeUnary) ExecuteQuery(context.Context, *wire.StatementRequest) (*wire.OpResult, error) {
	return nil, nil
}
func (f *fakeUnary) FetchNextRows(context.Context, *wire.ResultSetFetchRequest) (*wire.OpResult, error) {
	return nil, nil
}
func (f *fakeUnary) StartTransaction(context.Context, *wire.StatementRequest) (*wire.OpResult, error) {
	return nil, nil
}
func (f *fakeUnary) CommitTransaction(context.Context, *wire.StatementRequest) (*wire.OpResult, error) {
	return nil, nil
}
func (f *fakeUnary) RollbackTransaction(context.Context, *wire.StatementRequest) (*wire.OpResult, error) {
	return nil, nil
}
func (f *fakeUnary) TerminateSession(context.Context, *wire.SessionInfo) (*wire.SessionTerminationStatus, error) {
	return nil, nil
}
func (f *fakeUnary) CallResource(context.Context, *wire.CallResourceRequest) (*wire.CallResourceResponse, error) {
	return nil, nil
}

func handleFor(ep endpoint.Endpoint, unary wire.UnaryClient) *channel.Handle {
	return &channel.Handle{Endpoint: ep, Unary: unary}
}

func TestDispatcherSuccessPinsSessionAndMergesInfo(t *testing.T) {
	ep := endpoint.NewEndpoint("e0", 1)
	resp := &wire.OpResult{Session: wire.SessionRef{Identifier: "sess-1"}}
	sel := &fakeSelector{eps: []endpoint.Endpoint{ep}}
	src := &fakeChannelSource{handles: map[string]*channel.Handle{
		ep.Key(): handleFor(ep, &fakeUnary{executeUpdateResp: resp}),
	}}
	d := New(sel, src, Policy{RetryDelay: time.Millisecond, RetryAttempts: 3}, nil)

	sess := session.New()
	tbl := session.NewTable()

	got, err := d.ExecuteUpdate(context.Background(), sess, tbl, "stmt", "update t set x=1", nil, nil)
	if err != nil {
		t.Fatalf("ExecuteUpdate returned error: %v", err)
	}
	if got != resp {
		t.Fatalf("expected response passthrough")
	}
	if sess.ID() != "sess-1" {
		t.Errorf("sess.ID() = %q, want sess-1", sess.ID())
	}
	pinned, ok := tbl.Lookup("sess-1")
	if !ok || !pinned.Equal(ep) {
		t.Fatalf("expected sess-1 pinned to %v, got %v, %v", ep, pinned, ok)
	}
	if len(src.reaffirmed) != 1 || !src.reaffirmed[0].Equal(ep) {
		t.Errorf("expected %v marked healthy on success, got %v", ep, src.reaffirmed)
	}
}

func TestDispatcherRetriesOnTransportUnavailableThenSucceeds(t *testing.T) {
	ep0 := endpoint.NewEndpoint("e0", 1)
	ep1 := endpoint.NewEndpoint("e1", 2)
	resp := &wire.OpResult{Session: wire.SessionRef{Identifier: "sess-1"}}

	sel := &fakeSelector{eps: []endpoint.Endpoint{ep0, ep1}}
	src := &fakeChannelSource{handles: map[string]*channel.Handle{
		ep0.Key(): handleFor(ep0, &fakeUnary{executeUpdateErr: status.Error(codes.Unavailable, "down")}),
		ep1.Key(): handleFor(ep1, &fakeUnary{executeUpdateResp: resp}),
	}}
	d := New(sel, src, Policy{RetryDelay: time.Millisecond, RetryAttempts: 3}, nil)

	sess := session.New()
	tbl := session.NewTable()

	got, err := d.ExecuteUpdate(context.Background(), sess, tbl, "stmt", "update t set x=1", nil, nil)
	if err != nil {
		t.Fatalf("ExecuteUpdate returned error: %v", err)
	}
	if got != resp {
		t.Fatalf("expected eventual success response")
	}
	if len(src.evicted) != 1 || !src.evicted[0].Equal(ep0) {
		t.Errorf("expected ep0 evicted once, got %v", src.evicted)
	}
	if len(src.reaffirmed) != 1 || !src.reaffirmed[0].Equal(ep1) {
		t.Errorf("expected ep1 marked healthy after the retry succeeded, got %v", src.reaffirmed)
	}
}

func TestDispatcherTerminalRemoteFailureDoesNotRetry(t *testing.T) {
	ep := endpoint.NewEndpoint("e0", 1)
	sel := &fakeSelector{eps: []endpoint.Endpoint{ep, ep}}
	src := &fakeChannelSource{handles: map[string]*channel.Handle{
		ep.Key(): handleFor(ep, &fakeUnary{executeUpdateErr: status.Error(codes.NotFound, "no such table")}),
	}}
	d := New(sel, src, Policy{RetryDelay: time.Millisecond, RetryAttempts: 3}, nil)

	sess := session.New()
	tbl := session.NewTable()

	_, err := d.ExecuteUpdate(context.Background(), sess, tbl, "stmt", "select * from missing", nil, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	var e *errs.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *errs.Error, got %T", err)
	}
	if e.Kind != errs.KindRemoteFailure {
		t.Errorf("Kind = %v, want %v", e.Kind, errs.KindRemoteFailure)
	}
	if sel.calls != 1 {
		t.Errorf("expected exactly one selection attempt (no retry), got %d", sel.calls)
	}
}

func TestDispatcherNoHealthyEndpointsAfterRetriesExhausted(t *testing.T) {
	sel := &fakeSelector{eps: nil}
	src := &fakeChannelSource{handles: map[string]*channel.Handle{}}
	d := New(sel, src, Policy{RetryDelay: time.Millisecond, RetryAttempts: 2}, nil)

	sess := session.New()
	tbl := session.NewTable()

	_, err := d.ExecuteUpdate(context.Background(), sess, tbl, "stmt", "update t set x=1", nil, nil)
	var e *errs.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *errs.Error, got %T", err)
	}
	if e.Kind != errs.KindNoHealthyEndpoints {
		t.Errorf("Kind = %v, want %v", e.Kind, errs.KindNoHealthyEndpoints)
	}
}

func TestDispatcherMessageTooLargeRejectsLocallyWithoutDispatch(t *testing.T) {
	sel := &fakeSelector{eps: []endpoint.Endpoint{endpoint.NewEndpoint("e0", 1)}}
	src := &fakeChannelSource{handles: map[string]*channel.Handle{}}
	d := New(sel, src, Policy{RetryDelay: time.Millisecond, RetryAttempts: 3, MaxOutboundBytes: 8}, nil)

	sess := session.New()
	tbl := session.NewTable()

	_, err := d.ExecuteUpdate(context.Background(), sess, tbl, "stmt", "a very long statement that exceeds the tiny limit", nil, nil)
	var e *errs.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *errs.Error, got %T", err)
	}
	if e.Kind != errs.KindMessageTooLarge {
		t.Errorf("Kind = %v, want %v", e.Kind, errs.KindMessageTooLarge)
	}
	if sel.calls != 0 {
		t.Errorf("expected size guard to reject before any endpoint selection, got %d calls", sel.calls)
	}
}
