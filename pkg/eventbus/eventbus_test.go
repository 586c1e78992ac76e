package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestPublishDeliversToActiveSubscribers(t *testing.T) {
	bus := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, cleanup := bus.Subscribe(ctx)
	defer cleanup()

	if delivered := bus.Publish(7); delivered != 1 {
		t.Fatalf("Publish delivered = %d, want 1", delivered)
	}

	select {
	case v := <-ch:
		if v != 7 {
			t.Errorf("received %d, want 7", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDropsWhenSubscriberBufferFull(t *testing.T) {
	bus := NewWithBufferSize[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, cleanup := bus.Subscribe(ctx)
	defer cleanup()

	bus.Publish(1)
	if delivered := bus.Publish(2); delivered != 0 {
		t.Errorf("second Publish delivered = %d, want 0 (buffer full)", delivered)
	}
}

func TestSubscribeCleansUpOnContextCancel(t *testing.T) {
	bus := New[int]()
	ctx, cancel := context.WithCancel(context.Background())

	_, _ = bus.Subscribe(ctx)
	cancel()

	// give the context-cancellation goroutine a chance to run
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if bus.Publish(1) == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("subscriber was not removed after context cancellation")
}

func TestShutdownStopsFurtherDelivery(t *testing.T) {
	bus := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, cleanup := bus.Subscribe(ctx)
	defer cleanup()

	bus.Shutdown()
	if delivered := bus.Publish(1); delivered != 0 {
		t.Errorf("Publish after Shutdown delivered = %d, want 0", delivered)
	}
}
