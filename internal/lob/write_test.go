package lob

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/openjp-go/ojp/internal/wire"
)

// fakeWriteStream is an in-memory wire.LobWriteStream: every Send is
// recorded and, unless scripted otherwise, immediately acknowledged with a
// LobReference so the writer's first/final futures can resolve.
type fakeWriteStream struct {
	mu       sync.Mutex
	sent     []*wire.LobDataBlock
	refs     chan *wire.LobReference
	closed   bool
	sendErr  error
	finalRef *wire.LobReference
}

func newFakeWriteStream(finalIdentifier string) *fakeWriteStream {
	return &fakeWriteStream{
		refs:     make(chan *wire.LobReference, 16),
		finalRef: &wire.LobReference{Identifier: finalIdentifier},
	}
}

func (s *fakeWriteStream) Send(b *wire.LobDataBlock) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	first := len(s.sent) == 0
	s.sent = append(s.sent, b)
	s.mu.Unlock()
	if first {
		// Ack the start frame so the writer's first-reference future
		// resolves and the sender proceeds to data frames.
		s.refs <- &wire.LobReference{Identifier: "ack"}
	}
	return nil
}

func (s *fakeWriteStream) Recv() (*wire.LobReference, error) {
	ref, ok := <-s.refs
	if !ok {
		return nil, io.EOF
	}
	return ref, nil
}

func (s *fakeWriteStream) CloseSend() error {
	if s.finalRef != nil {
		s.refs <- s.finalRef
	}
	close(s.refs)
	return nil
}

func (s *fakeWriteStream) frames() []*wire.LobDataBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*wire.LobDataBlock(nil), s.sent...)
}

func noopMerge(wire.SessionRef) {}

func emptySession() wire.SessionRef { return wire.SessionRef{} }

func TestWriterGenericFramingMatchesDeclaredScenario(t *testing.T) {
	stream := newFakeWriteStream("lob-1")
	w := NewWriter(context.Background(), stream, emptySession, noopMerge, WriteOptions{
		Family: wire.FamilyGeneric,
	})

	data := make([]byte, 2500)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	ref, err := w.Close(context.Background())
	if err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if ref.Identifier != "lob-1" {
		t.Errorf("Identifier = %q, want lob-1", ref.Identifier)
	}

	frames := stream.frames()
	want := []struct {
		pos int64
		len int
	}{
		{1, 0}, {1, 1024}, {1025, 1024}, {2049, 452},
	}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i, w := range want {
		if frames[i].Position != w.pos || len(frames[i].Payload) != w.len {
			t.Errorf("frame[%d] = (pos=%d,len=%d), want (pos=%d,len=%d)", i, frames[i].Position, len(frames[i].Payload), w.pos, w.len)
		}
	}
}

func TestWriterH2SingleBulkFrame(t *testing.T) {
	stream := newFakeWriteStream("lob-h2")
	w := NewWriter(context.Background(), stream, emptySession, noopMerge, WriteOptions{
		Family: wire.FamilyH2,
	})

	data := []byte("all of this goes in one frame")
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	frames := stream.frames()
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2 (start + bulk)", len(frames))
	}
	if len(frames[0].Payload) != 0 {
		t.Errorf("expected empty start frame, got len %d", len(frames[0].Payload))
	}
	if string(frames[1].Payload) != string(data) {
		t.Errorf("bulk frame payload = %q, want %q", frames[1].Payload, data)
	}
}

func TestWriterDeclaredLengthTrimsFrames(t *testing.T) {
	stream := newFakeWriteStream("lob-trim")
	w := NewWriter(context.Background(), stream, emptySession, noopMerge, WriteOptions{
		Family:         wire.FamilyGeneric,
		DeclaredLength: 10,
	})

	if _, err := w.Write(make([]byte, 100)); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	var total int
	for _, f := range stream.frames() {
		total += len(f.Payload)
	}
	if total != 10 {
		t.Errorf("total payload bytes = %d, want 10", total)
	}
}

func TestWriterCloseFailsOnMissingIdentifier(t *testing.T) {
	stream := newFakeWriteStream("")
	w := NewWriter(context.Background(), stream, emptySession, noopMerge, WriteOptions{Family: wire.FamilyGeneric})

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	_, err := w.Close(context.Background())
	if err == nil {
		t.Fatalf("expected error for missing identifier")
	}
}

func TestWriterCloseTwiceFails(t *testing.T) {
	stream := newFakeWriteStream("lob-1")
	w := NewWriter(context.Background(), stream, emptySession, noopMerge, WriteOptions{Family: wire.FamilyGeneric})

	if _, err := w.Close(context.Background()); err != nil {
		t.Fatalf("first Close returned error: %v", err)
	}
	if _, err := w.Close(context.Background()); err == nil {
		t.Fatalf("expected error on second Close")
	}
}

func TestWriterSendErrorFailsFinalFuture(t *testing.T) {
	stream := newFakeWriteStream("lob-1")
	stream.sendErr = errors.New("transport broken")
	w := NewWriter(context.Background(), stream, emptySession, noopMerge, WriteOptions{Family: wire.FamilyGeneric})

	_, err := w.Close(context.Background())
	if err == nil {
		t.Fatalf("expected error from failed send")
	}
}
