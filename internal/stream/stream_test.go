package stream

import (
	"context"
	"testing"
	"time"

	"gxpcore.org/internal/audit"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)

	s.Publish(audit.Entry{ID: "e1", Action: "APPROVE"})

	for name, ch := range map[string]<-chan audit.Entry{"a": a, "b": b} {
		select {
		case e := <-ch:
			if e.ID != "e1" {
				t.Fatalf("%s: unexpected entry %+v", name, e)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: timed out waiting for entry", name)
		}
	}
}

func TestSubscriberClosedOnContextEnd(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, open := <-ch:
		if open {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Publishing after unsubscribe must not panic.
	s.Publish(audit.Entry{ID: "e2"})
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = s.Subscribe(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			s.Publish(audit.Entry{ID: "flood"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}
