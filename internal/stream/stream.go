package stream

import (
	"context"
	"sync"

	"leadline.org/internal/audit"
)

// Stream fans activity entries out to all active subscribers (SSE clients
// watching the activity feed).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan audit.Activity
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan audit.Activity)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan audit.Activity {
	ch := make(chan audit.Activity, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fans the event out to all subscribers.
func (s *Stream) Publish(a audit.Activity) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- a:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
