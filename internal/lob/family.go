// Package lob implements the LOB Stream Engine of spec.md §4.5: bidirectional
// LOB write, server-streaming LOB read, block framing, position arithmetic,
// and the database-family quirks the framing must honor.
package lob

import "github.com/openjp-go/ojp/internal/wire"

// frame is one block about to be sent on the write stream.
type frame struct {
	position int64
	payload  []byte
}

// family is the tagged-variant method set spec.md §9 calls for: "represent
// the family as a tagged variant with a small method set (emitStart,
// emitData); the H2 variant overrides these to do a single bulk emission."
// Every family emits the same empty start frame per spec.md §4.5.1; they
// differ only in how the data that follows is framed.
type family interface {
	// bulk reports whether the entire payload must be buffered and emitted
	// as a single data frame (H2, which "does not accept partial streams"),
	// rather than streamed as it arrives in BlockSize-sized pieces.
	bulk() bool
	// emitData frames data that starts at byte offset sentSoFar relative to
	// basePosition.
	emitData(data []byte, basePosition, sentSoFar int64) []frame
}

func familyFor(f wire.DatabaseFamily) family {
	if f == wire.FamilyH2 {
		return h2Family{}
	}
	return genericFamily{}
}

// emitStart returns the start frame every family emits first: empty
// payload, at basePosition, per spec.md §3 and §4.5.1.
func emitStart(basePosition int64) frame {
	return frame{position: basePosition, payload: nil}
}

// genericFamily chunks data into up to wire.BlockSize-sized frames as it
// arrives, per spec.md §4.5.1's data-frame rule.
type genericFamily struct{}

func (genericFamily) bulk() bool { return false }

func (genericFamily) emitData(data []byte, basePosition, sentSoFar int64) []frame {
	if len(data) == 0 {
		return nil
	}
	frames := make([]frame, 0, (len(data)/wire.BlockSize)+1)
	for off := 0; off < len(data); off += wire.BlockSize {
		end := off + wire.BlockSize
		if end > len(data) {
			end = len(data)
		}
		pos := basePosition + sentSoFar + int64(off)
		frames = append(frames, frame{position: pos, payload: data[off:end]})
	}
	return frames
}

// h2Family requires the entire payload in a single frame following the
// start frame, per spec.md §4.5.1: "H2 does not accept partial streams."
type h2Family struct{}

func (h2Family) bulk() bool { return true }

func (h2Family) emitData(data []byte, basePosition, sentSoFar int64) []frame {
	if len(data) == 0 {
		return nil
	}
	return []frame{{position: basePosition + sentSoFar, payload: data}}
}
