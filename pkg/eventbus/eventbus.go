package eventbus

/*
 * EventBus - a lock-free pub/sub notifier for Go
 * Copyright (c) 2016-2025 Thushan Fernando, Jason Wright and contributors
 *
 * Trimmed from the original EventBus (itself ported from Scout, 2023) down
 * to the synchronous publish/subscribe path a driver component actually
 * needs - no async worker pool, no periodic subscriber cleanup. A caller
 * that wants backpressure-free delivery should buffer on its own side of
 * Subscribe's channel.
 */
import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// DefaultBufferSize is the per-subscriber channel capacity used by New.
const DefaultBufferSize = 100

// EventBus provides lock-free pub/sub: any number of subscribers, each with
// its own buffered channel, delivered to independently so one slow
// subscriber can't stall another.
type EventBus[T any] struct {
	subscribers   *xsync.Map[string, *subscriber[T]]
	subscriberSeq atomic.Uint64
	bufferSize    int
	isShutdown    atomic.Bool
}

type subscriber[T any] struct {
	ch       chan T
	id       string
	isActive atomic.Bool
}

// New creates an EventBus whose subscriber channels hold DefaultBufferSize
// pending events before Publish starts dropping for that subscriber.
func New[T any]() *EventBus[T] {
	return NewWithBufferSize[T](DefaultBufferSize)
}

// NewWithBufferSize creates an EventBus with a custom per-subscriber buffer.
func NewWithBufferSize[T any](bufferSize int) *EventBus[T] {
	return &EventBus[T]{
		subscribers: xsync.NewMap[string, *subscriber[T]](),
		bufferSize:  bufferSize,
	}
}

// Subscribe returns a channel that receives events and a cleanup function.
// The subscription is also torn down automatically when ctx is done.
func (eb *EventBus[T]) Subscribe(ctx context.Context) (<-chan T, func()) {
	if eb.isShutdown.Load() {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}

	id := eb.generateSubscriberID()
	ch := make(chan T, eb.bufferSize)

	sub := &subscriber[T]{id: id, ch: ch}
	sub.isActive.Store(true)
	eb.subscribers.Store(id, sub)

	go func() {
		<-ctx.Done()
		eb.unsubscribe(id)
	}()

	return ch, func() { eb.unsubscribe(id) }
}

// Publish sends an event to every active subscriber, dropping it for any
// subscriber whose channel is currently full rather than blocking. It
// returns the number of subscribers the event was actually delivered to.
func (eb *EventBus[T]) Publish(event T) int {
	if eb.isShutdown.Load() {
		return 0
	}

	delivered := 0
	eb.subscribers.Range(func(id string, sub *subscriber[T]) bool {
		if !sub.isActive.Load() {
			return true
		}
		select {
		case sub.ch <- event:
			delivered++
		default:
		}
		return true
	})

	return delivered
}

// Shutdown marks every subscriber inactive and clears the subscriber map.
// Channels are never closed here, to avoid a send-on-closed-channel panic
// racing a concurrent Publish; they're simply left for GC once unreferenced.
func (eb *EventBus[T]) Shutdown() {
	if !eb.isShutdown.CompareAndSwap(false, true) {
		return
	}
	eb.subscribers.Range(func(id string, sub *subscriber[T]) bool {
		sub.isActive.Store(false)
		return true
	})
	eb.subscribers.Clear()
}

func (eb *EventBus[T]) generateSubscriberID() string {
	seq := eb.subscriberSeq.Add(1)
	return "sub_" + strconv.FormatUint(seq, 10)
}

func (eb *EventBus[T]) unsubscribe(id string) {
	if sub, exists := eb.subscribers.Load(id); exists {
		sub.isActive.Store(false)
		eb.subscribers.Delete(id)
	}
}
