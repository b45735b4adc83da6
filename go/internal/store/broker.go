package store

import (
	"context"
	"sync"
)

// Broker fans committed records out to per-key subscribers. Each subscriber
// holds at most one pending record; a newer record replaces an unread one.
// Records older than the last one published for a key are dropped, so
// out-of-order notifications are harmless.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[chan Record]struct{}
	latest map[string]Record
	closed bool
}

func NewBroker() *Broker {
	return &Broker{
		subs:   make(map[string]map[chan Record]struct{}),
		latest: make(map[string]Record),
	}
}

// Subscribe registers a subscriber for key. The newer of initial and the last
// published record is queued before any later change. The channel is closed
// once ctx is done or the broker is closed.
func (b *Broker) Subscribe(ctx context.Context, key string, initial *Record) <-chan Record {
	ch := make(chan Record, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	if b.subs[key] == nil {
		b.subs[key] = make(map[chan Record]struct{})
	}
	b.subs[key][ch] = struct{}{}
	last, seen := b.latest[key]
	switch {
	case initial != nil && (!seen || initial.Version >= last.Version):
		b.latest[key] = *initial
		ch <- *initial
	case seen:
		ch <- last
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(key, ch)
	}()
	return ch
}

// Publish delivers rec to every subscriber of rec.Key.
func (b *Broker) Publish(rec Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if last, ok := b.latest[rec.Key]; b.closed || (ok && rec.Version <= last.Version) {
		return
	}
	b.latest[rec.Key] = rec

	for ch := range b.subs[rec.Key] {
		select {
		case ch <- rec:
		default:
			// Replace the unread record with the newer one.
			select {
			case <-ch:
			default:
			}
			ch <- rec
		}
	}
}

// Subscribers returns how many subscribers are registered for key.
func (b *Broker) Subscribers(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}

// Keys returns every key with at least one subscriber.
func (b *Broker) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.subs))
	for key := range b.subs {
		keys = append(keys, key)
	}
	return keys
}

func (b *Broker) remove(key string, ch chan Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[key]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(b.subs, key)
	}
}

// Close closes every subscriber channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for key, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, key)
	}
}
