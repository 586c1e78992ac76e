package lob

import (
	"context"
	"io"
	"sync"

	"github.com/openjp-go/ojp/internal/errs"
	"github.com/openjp-go/ojp/internal/wire"
)

// WriteOptions configures a LOB write, per spec.md §4.5.1.
type WriteOptions struct {
	LobKind        wire.LobKind
	Family         wire.DatabaseFamily
	Metadata       []byte
	BasePosition   int64 // defaults to 1 when zero
	DeclaredLength int64 // 0 means no declared length (unbounded)
}

// Writer is the caller's byte-sink for a LOB write, per spec.md §4.5.1. It
// pipes bytes written on the caller's goroutine to a background goroutine
// that frames and sends them, while a second background goroutine drains
// the server's stream of LobReference responses into two single-assignment
// futures.
type Writer struct {
	pw *io.PipeWriter

	first *refFuture
	final *refFuture

	wg      sync.WaitGroup
	closed  bool
	closeMu sync.Mutex
}

// NewWriter starts the background send and receive loops and returns the
// byte-sink the caller writes into. currentSession supplies the session to
// attach to each outbound frame; mergeSession is invoked with the session
// carried by every LobReference received, per spec.md §3's "every response
// carries a replacement session object that the caller must adopt."
func NewWriter(ctx context.Context, stream wire.LobWriteStream, currentSession func() wire.SessionRef, mergeSession func(wire.SessionRef), opts WriteOptions) *Writer {
	if opts.BasePosition == 0 {
		opts.BasePosition = 1
	}

	pr, pw := io.Pipe()
	w := &Writer{
		pw:    pw,
		first: newRefFuture(),
		final: newRefFuture(),
	}

	w.wg.Add(2)
	go w.sendLoop(ctx, stream, pr, currentSession, opts)
	go w.recvLoop(stream, mergeSession)

	return w
}

// Write produces bytes into the internal pipe for the background sender to
// frame and emit.
func (w *Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *Writer) sendLoop(ctx context.Context, stream wire.LobWriteStream, pr *io.PipeReader, currentSession func() wire.SessionRef, opts WriteOptions) {
	defer w.wg.Done()

	// CloseSend always runs, even on a failed send, so the receive loop's
	// blocking Recv eventually unblocks (with an error or EOF) instead of
	// leaking a goroutine that Close's WaitGroup would hang on.
	defer func() { _ = stream.CloseSend() }()

	fam := familyFor(opts.Family)
	sendFrame := func(f frame, metadata []byte) error {
		block := &wire.LobDataBlock{
			LobKind:  opts.LobKind,
			Session:  currentSession(),
			Position: f.position,
			Payload:  f.payload,
			Metadata: metadata,
		}
		return stream.Send(block)
	}

	if err := sendFrame(emitStart(opts.BasePosition), opts.Metadata); err != nil {
		_ = pr.CloseWithError(err)
		w.final.resolve(nil, errs.Wrap(errs.KindProtocolViolation, "failed to send LOB start frame (phase: send)", err))
		return
	}

	// Per spec.md §4.5.1, production of data frames may proceed only once
	// the first reference resolves - the server's ack of the start frame.
	if _, err := w.first.wait(ctx); err != nil {
		_ = pr.CloseWithError(err)
		w.final.resolve(nil, errs.Wrap(errs.KindProtocolViolation, "failed waiting for first LOB reference (phase: send)", err))
		return
	}

	var sentSoFar int64
	remaining := func(want int) int {
		if opts.DeclaredLength <= 0 {
			return want
		}
		allowed := opts.DeclaredLength - sentSoFar
		if allowed <= 0 {
			return 0
		}
		if int64(want) > allowed {
			return int(allowed)
		}
		return want
	}

	emit := func(data []byte) error {
		for _, f := range fam.emitData(data, opts.BasePosition, sentSoFar) {
			if err := sendFrame(f, nil); err != nil {
				return err
			}
			sentSoFar += int64(len(f.payload))
		}
		return nil
	}

	if fam.bulk() {
		buf, err := io.ReadAll(pr)
		if err != nil {
			w.final.resolve(nil, errs.Wrap(errs.KindProtocolViolation, "failed reading LOB payload (phase: send)", err))
			return
		}
		if n := remaining(len(buf)); n < len(buf) {
			buf = buf[:n]
		}
		if err := emit(buf); err != nil {
			w.final.resolve(nil, errs.Wrap(errs.KindProtocolViolation, "failed to send LOB bulk frame (phase: send)", err))
			return
		}
	} else {
		buf := blockBufferPool.Get()
		defer blockBufferPool.Put(buf)
		for {
			n, err := pr.Read(buf)
			if n > 0 {
				chunk := buf[:n]
				if trimmed := remaining(n); trimmed < n {
					chunk = chunk[:trimmed]
				}
				if len(chunk) > 0 {
					if sendErr := emit(chunk); sendErr != nil {
						w.final.resolve(nil, errs.Wrap(errs.KindProtocolViolation, "failed to send LOB data frame (phase: send)", sendErr))
						return
					}
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				w.final.resolve(nil, errs.Wrap(errs.KindProtocolViolation, "failed reading LOB payload (phase: send)", err))
				return
			}
			if opts.DeclaredLength > 0 && sentSoFar >= opts.DeclaredLength {
				break
			}
		}
	}
}

func (w *Writer) recvLoop(stream wire.LobWriteStream, mergeSession func(wire.SessionRef)) {
	defer w.wg.Done()

	var last *wire.LobReference
	for {
		ref, err := stream.Recv()
		if err == io.EOF {
			w.first.resolve(last, nil)
			w.final.resolve(last, nil)
			return
		}
		if err != nil {
			mapped := errs.Wrap(errs.KindProtocolViolation, "LOB write stream failed (phase: send)", err)
			w.first.resolve(nil, mapped)
			w.final.resolve(nil, mapped)
			return
		}

		last = ref
		if mergeSession != nil {
			mergeSession(ref.Session)
		}
		w.first.resolve(ref, nil)
	}
}

// Close closes the sink, awaits the final reference, and validates it
// carries a non-empty identifier, per spec.md §4.5.1.
func (w *Writer) Close(ctx context.Context) (*wire.LobReference, error) {
	w.closeMu.Lock()
	if w.closed {
		w.closeMu.Unlock()
		return nil, errs.New(errs.KindProtocolViolation, "LOB writer already closed")
	}
	w.closed = true
	w.closeMu.Unlock()

	_ = w.pw.Close()
	w.wg.Wait()

	ref, err := w.final.wait(ctx)
	if err != nil {
		return nil, err
	}
	if ref == nil || ref.Identifier == "" {
		return nil, errs.New(errs.KindLobReferenceMissing, "LOB close yielded no identifier (phase: validate)")
	}
	return ref, nil
}
