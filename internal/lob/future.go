package lob

import (
	"context"
	"sync"

	"github.com/openjp-go/ojp/internal/wire"
)

// refFuture is the single-assignment cell spec.md §9 calls for in place of
// a general promise: "readers either see an empty slot, an identifier, or a
// recorded error." Resolution happens at most once; the channel close gives
// readers a happens-before guarantee without extra locking.
type refFuture struct {
	once sync.Once
	done chan struct{}
	ref  *wire.LobReference
	err  error
}

func newRefFuture() *refFuture {
	return &refFuture{done: make(chan struct{})}
}

func (f *refFuture) resolve(ref *wire.LobReference, err error) {
	f.once.Do(func() {
		f.ref = ref
		f.err = err
		close(f.done)
	})
}

func (f *refFuture) wait(ctx context.Context) (*wire.LobReference, error) {
	select {
	case <-f.done:
		return f.ref, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
