package dispatch

import (
	"context"

	"github.com/openjp-go/ojp/internal/channel"
	"github.com/openjp-go/ojp/internal/session"
	"github.com/openjp-go/ojp/internal/wire"
)

// currentRef builds the wire.SessionRef to send on the next request from
// sess's current state.
func currentRef(sess *session.Session) wire.SessionRef {
	info := sess.Current()
	return wire.SessionRef{
		Identifier:     info.Identifier,
		ConnectionHash: info.ConnectionHash,
		Family:         wire.DatabaseFamily(info.Family),
		ServerState:    info.ServerState,
	}
}

// Connect opens a new session, per spec.md §4.4 and §6.
func (d *Dispatcher) Connect(ctx context.Context, sess *session.Session, tbl *session.Table, req *wire.ConnectionDetails) (*wire.SessionInfo, error) {
	if err := d.guardSize(req); err != nil {
		return nil, err
	}
	var resp *wire.SessionInfo
	err := d.Call(ctx, sess, tbl, func(ctx context.Context, h *channel.Handle) (wire.SessionRef, error) {
		r, err := h.Unary.Connect(ctx, req)
		if err != nil {
			return wire.SessionRef{}, err
		}
		resp = r
		return r.Session, nil
	})
	return resp, err
}

// ExecuteUpdate runs a data-modifying statement.
func (d *Dispatcher) ExecuteUpdate(ctx context.Context, sess *session.Session, tbl *session.Table, statementIdentifier, sql string, params, props []byte) (*wire.OpResult, error) {
	req := &wire.StatementRequest{
		Session:              currentRef(sess),
		StatementIdentifier:  statementIdentifier,
		SQL:                  sql,
		SerializedParameters: params,
		SerializedProperties: props,
	}
	if err := d.guardSize(req); err != nil {
		return nil, err
	}
	var resp *wire.OpResult
	err := d.Call(ctx, sess, tbl, func(ctx context.Context, h *channel.Handle) (wire.SessionRef, error) {
		r, err := h.Unary.ExecuteUpdate(ctx, req)
		if err != nil {
			return wire.SessionRef{}, err
		}
		resp = r
		return r.Session, nil
	})
	return resp, err
}

// ExecuteQuery runs a query statement.
func (d *Dispatcher) ExecuteQuery(ctx context.Context, sess *session.Session, tbl *session.Table, statementIdentifier, sql string, params, props []byte) (*wire.OpResult, error) {
	req := &wire.StatementRequest{
		Session:              currentRef(sess),
		StatementIdentifier:  statementIdentifier,
		SQL:                  sql,
		SerializedParameters: params,
		SerializedProperties: props,
	}
	if err := d.guardSize(req); err != nil {
		return nil, err
	}
	var resp *wire.OpResult
	err := d.Call(ctx, sess, tbl, func(ctx context.Context, h *channel.Handle) (wire.SessionRef, error) {
		r, err := h.Unary.ExecuteQuery(ctx, req)
		if err != nil {
			return wire.SessionRef{}, err
		}
		resp = r
		return r.Session, nil
	})
	return resp, err
}

// FetchNextRows pages through a result set. pageSize of 0 uses
// wire.DefaultPageSize, per spec.md §4.4.
func (d *Dispatcher) FetchNextRows(ctx context.Context, sess *session.Session, tbl *session.Table, resultSetIdentifier string, pageSize int) (*wire.OpResult, error) {
	if pageSize <= 0 {
		pageSize = wire.DefaultPageSize
	}
	req := &wire.ResultSetFetchRequest{
		Session:             currentRef(sess),
		ResultSetIdentifier: resultSetIdentifier,
		PageSize:            pageSize,
	}
	if err := d.guardSize(req); err != nil {
		return nil, err
	}
	var resp *wire.OpResult
	err := d.Call(ctx, sess, tbl, func(ctx context.Context, h *channel.Handle) (wire.SessionRef, error) {
		r, err := h.Unary.FetchNextRows(ctx, req)
		if err != nil {
			return wire.SessionRef{}, err
		}
		resp = r
		return r.Session, nil
	})
	return resp, err
}

func (d *Dispatcher) StartTransaction(ctx context.Context, sess *session.Session, tbl *session.Table, props []byte) (*wire.OpResult, error) {
	req := &wire.StatementRequest{Session: currentRef(sess), SerializedProperties: props}
	if err := d.guardSize(req); err != nil {
		return nil, err
	}
	var resp *wire.OpResult
	err := d.Call(ctx, sess, tbl, func(ctx context.Context, h *channel.Handle) (wire.SessionRef, error) {
		r, err := h.Unary.StartTransaction(ctx, req)
		if err != nil {
			return wire.SessionRef{}, err
		}
		resp = r
		return r.Session, nil
	})
	return resp, err
}

func (d *Dispatcher) CommitTransaction(ctx context.Context, sess *session.Session, tbl *session.Table) (*wire.OpResult, error) {
	req := &wire.StatementRequest{Session: currentRef(sess)}
	if err := d.guardSize(req); err != nil {
		return nil, err
	}
	var resp *wire.OpResult
	err := d.Call(ctx, sess, tbl, func(ctx context.Context, h *channel.Handle) (wire.SessionRef, error) {
		r, err := h.Unary.CommitTransaction(ctx, req)
		if err != nil {
			return wire.SessionRef{}, err
		}
		resp = r
		return r.Session, nil
	})
	return resp, err
}

func (d *Dispatcher) RollbackTransaction(ctx context.Context, sess *session.Session, tbl *session.Table) (*wire.OpResult, error) {
	req := &wire.StatementRequest{Session: currentRef(sess)}
	if err := d.guardSize(req); err != nil {
		return nil, err
	}
	var resp *wire.OpResult
	err := d.Call(ctx, sess, tbl, func(ctx context.Context, h *channel.Handle) (wire.SessionRef, error) {
		r, err := h.Unary.RollbackTransaction(ctx, req)
		if err != nil {
			return wire.SessionRef{}, err
		}
		resp = r
		return r.Session, nil
	})
	return resp, err
}

// TerminateSession closes sess. The session's pin is removed once the call
// returns, whether it succeeded or failed, and the replacement session the
// response carries is not adopted.
func (d *Dispatcher) TerminateSession(ctx context.Context, sess *session.Session, tbl *session.Table) (*wire.SessionTerminationStatus, error) {
	req := &wire.SessionInfo{Session: currentRef(sess)}
	if err := d.guardSize(req); err != nil {
		return nil, err
	}
	id := sess.ID()
	var resp *wire.SessionTerminationStatus
	err := d.Call(ctx, sess, tbl, func(ctx context.Context, h *channel.Handle) (wire.SessionRef, error) {
		r, err := h.Unary.TerminateSession(ctx, req)
		if err != nil {
			return wire.SessionRef{}, err
		}
		resp = r
		return wire.SessionRef{}, nil
	})
	if id != "" {
		tbl.Unpin(id)
	}
	return resp, err
}

// CallResource invokes a resource-call operation, per spec.md §4.6. All
// resource calls flow through the same dispatch template with session
// pinning.
func (d *Dispatcher) CallResource(ctx context.Context, sess *session.Session, tbl *session.Table, req *wire.CallResourceRequest) (*wire.CallResourceResponse, error) {
	req.Session = currentRef(sess)
	if err := d.guardSize(req); err != nil {
		return nil, err
	}
	var resp *wire.CallResourceResponse
	err := d.Call(ctx, sess, tbl, func(ctx context.Context, h *channel.Handle) (wire.SessionRef, error) {
		r, err := h.Unary.CallResource(ctx, req)
		if err != nil {
			return wire.SessionRef{}, err
		}
		resp = r
		return r.Session, nil
	})
	return resp, err
}
