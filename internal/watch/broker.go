// Package watch fans published snapshots out to push subscribers.
package watch

import (
	"context"
	"log/slog"
	"sync"

	"dockmon/internal/snapshot"
)

// subscriberBufferCap is 1: subscribers only care about the newest
// snapshot, so a slow reader has its pending snapshot replaced.
const subscriberBufferCap = 1

// Broker delivers every published snapshot to its subscribers without ever
// blocking the publisher.
type Broker struct {
	mu     sync.Mutex
	subs   map[uint64]chan *snapshot.Snapshot
	nextID uint64
	latest *snapshot.Snapshot
	closed bool
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]chan *snapshot.Snapshot)}
}

// Subscribe returns a channel receiving each published snapshot, starting
// with the latest one if any. The channel is closed when ctx is done or
// the broker is closed.
func (b *Broker) Subscribe(ctx context.Context) <-chan *snapshot.Snapshot {
	ch := make(chan *snapshot.Snapshot, subscriberBufferCap)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	if b.latest != nil {
		ch <- b.latest
	}
	n := len(b.subs)
	b.mu.Unlock()

	slog.Debug("watch subscriber added", "id", id, "subscribers", n)
	go func() {
		<-ctx.Done()
		b.unsubscribe(id)
	}()
	return ch
}

// Publish hands snap to every subscriber. A subscriber that has not yet
// consumed the previous snapshot gets it replaced by snap.
func (b *Broker) Publish(snap *snapshot.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.latest = snap
	for _, sub := range b.subs {
		offerLatest(sub, snap)
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Broker) unsubscribe(id uint64) {
	b.mu.Lock()
	ch, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(ch)
	}
	n := len(b.subs)
	b.mu.Unlock()

	if ok {
		slog.Debug("watch subscriber removed", "id", id, "subscribers", n)
	}
}

// offerLatest must be called with the broker lock held; it is the only
// sender on sub.
func offerLatest(sub chan *snapshot.Snapshot, snap *snapshot.Snapshot) {
	select {
	case sub <- snap:
		return
	default:
	}
	select {
	case <-sub:
	default:
	}
	select {
	case sub <- snap:
	default:
	}
}
