package events

import (
	"context"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu     sync.Mutex
	events []Event
	signal chan struct{}
}

func newCollector() *collector {
	return &collector{signal: make(chan struct{}, 64)}
}

func (c *collector) HandleEvent(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *collector) waitFor(t *testing.T, n int) []Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		c.mu.Lock()
		got := len(c.events)
		c.mu.Unlock()
		if got >= n {
			break
		}
		select {
		case <-c.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, have %d", n, got)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDispatcher(16)
	col := newCollector()
	d.Subscribe(col)
	d.Start(ctx)
	defer d.Stop()

	d.Publish(Event{Kind: KindSubmissionQueued, Submission: "s1"})
	d.Publish(Event{Kind: KindSubmissionState, Submission: "s1", State: "running"})
	d.Publish(Event{Kind: KindSubmissionEvaluated, Submission: "s1", Score: 1})

	got := col.waitFor(t, 3)
	kinds := []Kind{got[0].Kind, got[1].Kind, got[2].Kind}
	want := []Kind{KindSubmissionQueued, KindSubmissionState, KindSubmissionEvaluated}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}
}

func TestDispatcherFansOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDispatcher(16)
	a := newCollector()
	b := newCollector()
	d.Subscribe(a)
	d.Subscribe(b)
	d.Start(ctx)
	defer d.Stop()

	d.Publish(Event{Kind: KindAnnouncement, Message: "hello"})

	if got := a.waitFor(t, 1); got[0].Message != "hello" {
		t.Fatalf("a got %+v", got[0])
	}
	if got := b.waitFor(t, 1); got[0].Message != "hello" {
		t.Fatalf("b got %+v", got[0])
	}
}

func TestDispatcherStampsTime(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDispatcher(16)
	col := newCollector()
	d.Subscribe(col)
	d.Start(ctx)
	defer d.Stop()

	d.Publish(Event{Kind: KindCheckIn, Username: "alice"})
	got := col.waitFor(t, 1)
	if got[0].At.IsZero() {
		t.Fatal("event time not stamped")
	}
}

func TestDispatcherDropsAfterStop(t *testing.T) {
	d := NewDispatcher(16)
	col := newCollector()
	d.Subscribe(col)
	d.Stop()

	// Publish after stop must not block or panic.
	d.Publish(Event{Kind: KindCheckIn})

	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.events) != 0 {
		t.Fatalf("events = %d after stop, want 0", len(col.events))
	}
}
