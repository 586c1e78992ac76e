package lob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/openjp-go/ojp/internal/wire"
)

// fakeReadOnlyStream replays a fixed slice of blocks then signals io.EOF,
// mirroring a grpc server-streaming LobReadStream.
type fakeReadOnlyStream struct {
	blocks []*wire.LobDataBlock
	idx    int
}

func (s *fakeReadOnlyStream) Recv() (*wire.LobDataBlock, error) {
	if s.idx >= len(s.blocks) {
		return nil, io.EOF
	}
	b := s.blocks[s.idx]
	s.idx++
	return b, nil
}

// dataBackedReadClient serves ReadLob windows out of an in-memory byte
// slice, splitting each requested window into BlockSize-sized blocks the
// way the real server paces a 2-KiB window out as a pair of blocks.
type dataBackedReadClient struct {
	data []byte
}

func (c *dataBackedReadClient) ReadLob(_ context.Context, req *wire.ReadLobRequest) (wire.LobReadStream, error) {
	start := req.Position - 1
	if start < 0 || start >= int64(len(c.data)) {
		return &fakeReadOnlyStream{}, nil
	}
	end := start + req.Length
	if end > int64(len(c.data)) {
		end = int64(len(c.data))
	}

	chunk := c.data[start:end]
	pos := req.Position
	var blocks []*wire.LobDataBlock
	for len(chunk) > 0 {
		n := wire.BlockSize
		if n > len(chunk) {
			n = len(chunk)
		}
		blocks = append(blocks, &wire.LobDataBlock{Position: pos, Payload: chunk[:n]})
		chunk = chunk[n:]
		pos += int64(n)
	}
	return &fakeReadOnlyStream{blocks: blocks}, nil
}

func (c *dataBackedReadClient) WriteLob(context.Context) (wire.LobWriteStream, error) {
	return nil, errors.New("write not supported by this fake")
}

// emptySentinelClient always answers the first window request with the
// "immediately empty stream" sentinel: position=-1, payload len<1.
type emptySentinelClient struct{}

func (emptySentinelClient) ReadLob(context.Context, *wire.ReadLobRequest) (wire.LobReadStream, error) {
	return &fakeReadOnlyStream{blocks: []*wire.LobDataBlock{{Position: -1, Payload: nil}}}, nil
}

func (emptySentinelClient) WriteLob(context.Context) (wire.LobWriteStream, error) {
	return nil, errors.New("write not supported by this fake")
}

func sequentialBytes(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

func TestSourceRoundTripVariousLengths(t *testing.T) {
	for _, n := range []int{1, 1023, 1024, 1025, 2048, 2049, 5000} {
		data := sequentialBytes(n)
		client := &dataBackedReadClient{data: data}
		src := NewSource(client, wire.LobReference{Identifier: "lob-1"}, 1, int64(n))

		got, err := io.ReadAll(src)
		if err != nil {
			t.Fatalf("N=%d: ReadAll returned error: %v", n, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("N=%d: got %d bytes, want %d bytes matching source", n, len(got), len(data))
		}
	}
}

func TestSourceZeroLengthReadsNothing(t *testing.T) {
	client := &dataBackedReadClient{data: sequentialBytes(10)}
	src := NewSource(client, wire.LobReference{Identifier: "lob-1"}, 1, 0)

	n, err := src.Read(make([]byte, 16))
	if n != 0 || err != io.EOF {
		t.Errorf("Read on zero-length source = (%d, %v), want (0, io.EOF)", n, err)
	}
}

func TestSourceImmediatelyEmptySentinel(t *testing.T) {
	src := NewSource(emptySentinelClient{}, wire.LobReference{Identifier: "lob-1"}, 1, 100)

	n, err := src.Read(make([]byte, 16))
	if n != 0 || err != io.EOF {
		t.Errorf("Read on sentinel-empty source = (%d, %v), want (0, io.EOF)", n, err)
	}
}

func TestSourceReadByteWidensAndReportsEOF(t *testing.T) {
	client := &dataBackedReadClient{data: []byte{'A', 'B'}}
	src := NewSource(client, wire.LobReference{Identifier: "lob-1"}, 1, 2)

	b, err := src.ReadByte()
	if err != nil || b != 'A' {
		t.Fatalf("first ReadByte = (%q, %v), want ('A', nil)", b, err)
	}
	b, err = src.ReadByte()
	if err != nil || b != 'B' {
		t.Fatalf("second ReadByte = (%q, %v), want ('B', nil)", b, err)
	}
	if _, err := src.ReadByte(); err != io.EOF {
		t.Errorf("third ReadByte error = %v, want io.EOF", err)
	}
}

func TestSourceWindowSpansMultipleFetches(t *testing.T) {
	data := sequentialBytes(2500)
	client := &dataBackedReadClient{data: data}
	src := NewSource(client, wire.LobReference{Identifier: "lob-1"}, 1, int64(len(data)))

	buf := make([]byte, 600)
	var got []byte
	for {
		n, err := src.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %d bytes, want %d bytes matching source", len(got), len(data))
	}
}
