package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func recvTimeout[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("updates channel closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}

func TestHubNotifiesListeners(t *testing.T) {
	h := NewHub(nil, zerolog.Nop())

	ch, cancel := h.listen(collUsers)
	defer cancel()

	h.Changed(context.Background(), collUsers)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notice after Changed")
	}

	// a change on another collection must not wake this listener
	h.Changed(context.Background(), collAppointments)
	select {
	case <-ch:
		t.Fatal("woken by unrelated collection")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubCancelStopsDelivery(t *testing.T) {
	h := NewHub(nil, zerolog.Nop())

	ch, cancel := h.listen(collUsers)
	cancel()

	h.Changed(context.Background(), collUsers)
	select {
	case <-ch:
		t.Fatal("cancelled listener still notified")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeInitialSnapshotAndUpdates(t *testing.T) {
	h := NewHub(nil, zerolog.Nop())
	s := &Store{hub: h}

	var value atomic.Int64
	value.Store(1)
	sub, err := subscribe(context.Background(), s, collUsers, func(context.Context) (int64, error) {
		return value.Load(), nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	if got := recvTimeout(t, sub.Updates()); got != 1 {
		t.Fatalf("initial snapshot = %d, want 1", got)
	}

	value.Store(2)
	h.Changed(context.Background(), collUsers)
	if got := recvTimeout(t, sub.Updates()); got != 2 {
		t.Fatalf("update snapshot = %d, want 2", got)
	}
}

func TestSubscribeCoalescesWhenConsumerLags(t *testing.T) {
	h := NewHub(nil, zerolog.Nop())
	s := &Store{hub: h}

	var value atomic.Int64
	sub, err := subscribe(context.Background(), s, collUsers, func(context.Context) (int64, error) {
		return value.Load(), nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	// drain the initial snapshot, then let several updates pile up
	recvTimeout(t, sub.Updates())
	for i := int64(1); i <= 5; i++ {
		value.Store(i)
		h.Changed(context.Background(), collUsers)
		time.Sleep(20 * time.Millisecond)
	}

	// only the newest snapshot survives
	if got := recvTimeout(t, sub.Updates()); got != 5 {
		t.Fatalf("coalesced snapshot = %d, want 5", got)
	}
}

func TestSubscribeCancelClosesUpdates(t *testing.T) {
	h := NewHub(nil, zerolog.Nop())
	s := &Store{hub: h}

	sub, err := subscribe(context.Background(), s, collUsers, func(context.Context) (int, error) {
		return 0, nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	recvTimeout(t, sub.Updates())
	sub.Cancel()
	sub.Cancel() // idempotent

	select {
	case _, ok := <-sub.Updates():
		if ok {
			t.Fatal("received snapshot after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("updates channel not closed after cancel")
	}
}

func TestSubscribeContextCancel(t *testing.T) {
	h := NewHub(nil, zerolog.Nop())
	s := &Store{hub: h}

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := subscribe(ctx, s, collUsers, func(context.Context) (int, error) {
		return 0, nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	recvTimeout(t, sub.Updates())

	cancel()
	select {
	case _, ok := <-sub.Updates():
		if ok {
			t.Fatal("received snapshot after context cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("updates channel not closed after context cancel")
	}
}
