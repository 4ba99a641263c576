package watch

import (
	"context"
	"testing"
	"testing/synctest"

	"dockmon/internal/snapshot"
)

func TestBroker_SubscribeReceivesLatest(t *testing.T) {
	b := NewBroker()
	b.Publish(&snapshot.Snapshot{Sequence: 1})

	ch := b.Subscribe(t.Context())

	got := <-ch
	if got.Sequence != 1 {
		t.Fatalf("first snapshot sequence = %d, want 1", got.Sequence)
	}
}

func TestBroker_SlowSubscriberGetsNewest(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(t.Context())

	for seq := uint64(1); seq <= 5; seq++ {
		b.Publish(&snapshot.Snapshot{Sequence: seq})
	}

	got := <-ch
	if got.Sequence != 5 {
		t.Fatalf("pending snapshot sequence = %d, want 5", got.Sequence)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra snapshot %d", extra.Sequence)
	default:
	}
}

func TestBroker_UnsubscribeOnCancel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := NewBroker()
		ctx, cancel := context.WithCancel(t.Context())
		ch := b.Subscribe(ctx)
		if b.Subscribers() != 1 {
			t.Fatalf("Subscribers() = %d, want 1", b.Subscribers())
		}

		cancel()
		synctest.Wait()

		if b.Subscribers() != 0 {
			t.Fatalf("Subscribers() = %d after cancel, want 0", b.Subscribers())
		}
		if _, ok := <-ch; ok {
			t.Fatal("channel should be closed after cancel")
		}
	})
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(t.Context())
	b.Close()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Close")
	}
	late := b.Subscribe(t.Context())
	if _, ok := <-late; ok {
		t.Fatal("subscription after Close should be closed")
	}
	b.Publish(&snapshot.Snapshot{Sequence: 9})
}
