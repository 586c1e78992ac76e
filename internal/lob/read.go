package lob

import (
	"context"
	"io"

	"github.com/openjp-go/ojp/internal/wire"
)

// windowSize is the 2-KiB fetch window spec.md §4.5.2 describes: "requests
// the next pair of blocks (a 2-KiB window)".
const windowSize = 2 * wire.BlockSize

// eofSentinel mirrors the source system's -1 end-of-stream marker for a
// single-byte read. Go bytes are already unsigned (0-255), so there is no
// real collision risk here, but Source.ReadByte widens explicitly anyway to
// preserve the original contract: "-1 as an unsigned 0xFF when the byte
// value would otherwise collide with the sentinel."
const eofSentinel = -1

// Source is the byte-source spec.md §4.5.2 describes: a lazy, finite,
// non-restartable sequence of octets read from a LobReference starting at a
// given position. It implements io.Reader and io.ByteReader.
type Source struct {
	stream wire.StreamClient
	ref    wire.LobReference

	cursor int64 // next absolute position to request (1-based)
	limit  int64 // absolute position one past the last byte requested

	buf       []byte
	done      bool
	emptyInit bool // set once we've confirmed this isn't the "immediately empty" case
}

// NewSource builds a byte-source for reading length bytes starting at
// position (1-based, inclusive) from ref.
func NewSource(stream wire.StreamClient, ref wire.LobReference, position, length int64) *Source {
	return &Source{
		stream: stream,
		ref:    ref,
		cursor: position,
		limit:  position + length,
	}
}

// Read implements io.Reader, fetching further 2-KiB windows from the server
// as the in-hand buffer is exhausted.
func (s *Source) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.buf) == 0 {
		if s.done || s.cursor >= s.limit {
			return 0, io.EOF
		}
		if err := s.fetchWindow(context.Background()); err != nil {
			return 0, err
		}
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// ReadByte implements io.ByteReader via the widening described above.
func (s *Source) ReadByte() (byte, error) {
	var b [1]byte
	n, err := s.Read(b[:])
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	widened := int(b[0]) & 0xFF
	if widened == eofSentinel {
		// Unreachable for a real byte value (0-255 never equals -1), kept
		// to mirror the source system's widening contract exactly.
		return 0, io.EOF
	}
	return byte(widened), nil
}

// fetchWindow issues one ReadLobRequest for up to a 2-KiB window starting at
// s.cursor and drains its stream into s.buf.
func (s *Source) fetchWindow(ctx context.Context) error {
	want := s.limit - s.cursor
	if want > windowSize {
		want = windowSize
	}

	stream, err := s.stream.ReadLob(ctx, &wire.ReadLobRequest{
		LobReference: s.ref,
		Position:     s.cursor,
		Length:       want,
	})
	if err != nil {
		return err
	}

	var collected []byte
	blocksSeen := 0
	for {
		block, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if blocksSeen == 0 && !s.emptyInit {
			s.emptyInit = true
			if block.Position == -1 && len(block.Payload) < 1 {
				s.done = true
				return nil
			}
		}
		blocksSeen++
		collected = append(collected, block.Payload...)
	}

	s.emptyInit = true
	if blocksSeen == 0 {
		s.done = true
		return nil
	}

	s.cursor += int64(len(collected))
	s.buf = collected

	// Per spec.md §4.5.2: exhaustion at a position not a multiple of
	// 2*BlockSize, or exactly at a 2-block boundary, both call for another
	// fetch on the next exhaustion; a short final window (fewer than the
	// requested bytes) signals the server has nothing further to pace out
	// only once it returns zero blocks, handled above.
	if len(collected) < int(want) {
		s.done = s.cursor >= s.limit
	}

	return nil
}
