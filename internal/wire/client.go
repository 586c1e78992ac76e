package wire

import (
	"context"

	"google.golang.org/grpc"
)

// Full RPC method paths for the service this driver speaks to. There is no
// generated .proto stub backing these; grpc.ClientConn.Invoke/NewStream
// accept a bare method string, and Codec (codec.go) handles
// (de)serialization when the ClientConn was dialed with it as a default call
// option.
const (
	methodConnect           = "/ojp.v1.Proxy/Connect"
	methodExecuteUpdate     = "/ojp.v1.Proxy/ExecuteUpdate"
	methodExecuteQuery      = "/ojp.v1.Proxy/ExecuteQuery"
	methodFetchNextRows     = "/ojp.v1.Proxy/FetchNextRows"
	methodStartTransaction  = "/ojp.v1.Proxy/StartTransaction"
	methodCommitTransaction = "/ojp.v1.Proxy/CommitTransaction"
	methodRollback          = "/ojp.v1.Proxy/RollbackTransaction"
	methodTerminateSession  = "/ojp.v1.Proxy/TerminateSession"
	methodCallResource      = "/ojp.v1.Proxy/CallResource"
	methodWriteLob          = "/ojp.v1.Proxy/WriteLob"
	methodReadLob           = "/ojp.v1.Proxy/ReadLob"
)

// UnaryClient is the blocking call surface of a ChannelHandle: every unary
// operation spec.md §4.4 lists, driven over one shared *grpc.ClientConn.
type UnaryClient interface {
	Connect(ctx context.Context, req *ConnectionDetails) (*SessionInfo, error)
	ExecuteUpdate(ctx context.Context, req *StatementRequest) (*OpResult, error)
	ExecuteQuery(ctx context.Context, req *StatementRequest) (*OpResult, error)
	FetchNextRows(ctx context.Context, req *ResultSetFetchRequest) (*OpResult, error)
	StartTransaction(ctx context.Context, req *StatementRequest) (*OpResult, error)
	CommitTransaction(ctx context.Context, req *StatementRequest) (*OpResult, error)
	RollbackTransaction(ctx context.Context, req *StatementRequest) (*OpResult, error)
	TerminateSession(ctx context.Context, req *SessionInfo) (*SessionTerminationStatus, error)
	CallResource(ctx context.Context, req *CallResourceRequest) (*CallResourceResponse, error)
}

// StreamClient is the streaming call surface of a ChannelHandle: the LOB
// write (bidirectional) and LOB read (server-streaming) RPCs of spec.md
// §4.5.
type StreamClient interface {
	WriteLob(ctx context.Context) (LobWriteStream, error)
	ReadLob(ctx context.Context, req *ReadLobRequest) (LobReadStream, error)
}

// LobWriteStream is the client side of the bidirectional LobDataBlock ->
// LobReference stream.
type LobWriteStream interface {
	Send(*LobDataBlock) error
	Recv() (*LobReference, error)
	CloseSend() error
}

// LobReadStream is the client side of the server-streaming
// ReadLobRequest -> LobDataBlock stream.
type LobReadStream interface {
	Recv() (*LobDataBlock, error)
}

type conn struct {
	cc *grpc.ClientConn
}

// NewUnaryClient adapts a *grpc.ClientConn into UnaryClient, with no
// generated stub in between. It does not set a codec itself: calls use the
// codec cc was dialed with (channel.DefaultDialer forces Codec).
func NewUnaryClient(cc *grpc.ClientConn) UnaryClient { return conn{cc: cc} }

// NewStreamClient adapts a *grpc.ClientConn into StreamClient.
func NewStreamClient(cc *grpc.ClientConn) StreamClient { return conn{cc: cc} }

func (c conn) Connect(ctx context.Context, req *ConnectionDetails) (*SessionInfo, error) {
	resp := new(SessionInfo)
	if err := c.cc.Invoke(ctx, methodConnect, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c conn) ExecuteUpdate(ctx context.Context, req *StatementRequest) (*OpResult, error) {
	resp := new(OpResult)
	if err := c.cc.Invoke(ctx, methodExecuteUpdate, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c conn) ExecuteQuery(ctx context.Context, req *StatementRequest) (*OpResult, error) {
	resp := new(OpResult)
	if err := c.cc.Invoke(ctx, methodExecuteQuery, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c conn) FetchNextRows(ctx context.Context, req *ResultSetFetchRequest) (*OpResult, error) {
	resp := new(OpResult)
	if err := c.cc.Invoke(ctx, methodFetchNextRows, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c conn) StartTransaction(ctx context.Context, req *StatementRequest) (*OpResult, error) {
	resp := new(OpResult)
	if err := c.cc.Invoke(ctx, methodStartTransaction, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c conn) CommitTransaction(ctx context.Context, req *StatementRequest) (*OpResult, error) {
	resp := new(OpResult)
	if err := c.cc.Invoke(ctx, methodCommitTransaction, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c conn) RollbackTransaction(ctx context.Context, req *StatementRequest) (*OpResult, error) {
	resp := new(OpResult)
	if err := c.cc.Invoke(ctx, methodRollback, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c conn) TerminateSession(ctx context.Context, req *SessionInfo) (*SessionTerminationStatus, error) {
	resp := new(SessionTerminationStatus)
	if err := c.cc.Invoke(ctx, methodTerminateSession, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c conn) CallResource(ctx context.Context, req *CallResourceRequest) (*CallResourceResponse, error) {
	resp := new(CallResourceResponse)
	if err := c.cc.Invoke(ctx, methodCallResource, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

var writeLobStreamDesc = &grpc.StreamDesc{
	StreamName:    "WriteLob",
	ClientStreams: true,
	ServerStreams: true,
}

var readLobStreamDesc = &grpc.StreamDesc{
	StreamName:    "ReadLob",
	ServerStreams: true,
}

func (c conn) WriteLob(ctx context.Context) (LobWriteStream, error) {
	cs, err := c.cc.NewStream(ctx, writeLobStreamDesc, methodWriteLob)
	if err != nil {
		return nil, err
	}
	return lobWriteStream{cs}, nil
}

func (c conn) ReadLob(ctx context.Context, req *ReadLobRequest) (LobReadStream, error) {
	cs, err := c.cc.NewStream(ctx, readLobStreamDesc, methodReadLob)
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(req); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return lobReadStream{cs}, nil
}

type lobWriteStream struct{ cs grpc.ClientStream }

func (s lobWriteStream) Send(block *LobDataBlock) error { return s.cs.SendMsg(block) }

func (s lobWriteStream) Recv() (*LobReference, error) {
	ref := new(LobReference)
	if err := s.cs.RecvMsg(ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (s lobWriteStream) CloseSend() error { return s.cs.CloseSend() }

type lobReadStream struct{ cs grpc.ClientStream }

func (s lobReadStream) Recv() (*LobDataBlock, error) {
	block := new(LobDataBlock)
	if err := s.cs.RecvMsg(block); err != nil {
		return nil, err
	}
	return block, nil
}
