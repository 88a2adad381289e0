package stream

import (
	"context"
	"testing"
	"time"

	"leadline.org/internal/audit"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)

	s.Publish(audit.Activity{ID: "a1", Action: "created lead"})

	for name, ch := range map[string]<-chan audit.Activity{"a": a, "b": b} {
		select {
		case got := <-ch:
			if got.ID != "a1" {
				t.Fatalf("subscriber %s got %+v", name, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s received nothing", name)
		}
	}
}

func TestSubscribeClosesOnContextCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Publishing after the subscriber is gone must not panic or block.
	s.Publish(audit.Activity{ID: "a2"})
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)

	// Overflow the buffer; the extra events are dropped, not queued.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(audit.Activity{ID: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	if got := len(ch); got > cap(ch) {
		t.Fatalf("buffered %d events, cap %d", got, cap(ch))
	}
}
