package activity

import (
	"context"
	"sync"
)

// Feed fans committed entries out to live subscribers (SSE clients).
type Feed struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	contextID string
	ch        chan Entry
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for one journal. An empty contextID
// receives every entry. The channel is closed when ctx ends.
func (f *Feed) Subscribe(ctx context.Context, contextID string) <-chan Entry {
	ch := make(chan Entry, 16)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = subscriber{contextID: contextID, ch: ch}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(ch)
		f.mu.Unlock()
	}()

	return ch
}

// Publish delivers e to matching subscribers. Slow subscribers miss entries.
func (f *Feed) Publish(e Entry) {
	if f == nil {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sub := range f.subs {
		if sub.contextID != "" && sub.contextID != e.ContextID {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}

// Subscribers reports the number of live subscribers.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
