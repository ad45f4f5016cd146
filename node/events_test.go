package node

import (
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversToMatchingSubscriber(t *testing.T) {
	eb := NewEventBus(4)
	defer eb.Close()

	sub := eb.Subscribe(EventBlockCommitted)
	eb.Publish(EventBlockCommitted, uint64(262144))

	select {
	case ev := <-sub.Chan():
		if ev.Type != EventBlockCommitted {
			t.Fatalf("event type = %q", ev.Type)
		}
		if ev.Data.(uint64) != 262144 {
			t.Fatalf("event data = %v", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestPublishSkipsNonMatchingTypes(t *testing.T) {
	eb := NewEventBus(4)
	defer eb.Close()

	sub := eb.Subscribe(EventReorg)
	eb.Publish(EventBlockCommitted, uint64(1))

	select {
	case ev := <-sub.Chan():
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeSeveralTypes(t *testing.T) {
	eb := NewEventBus(4)
	defer eb.Close()

	sub := eb.Subscribe(EventIngestStarted, EventReorg)
	eb.Publish(EventIngestStarted, nil)
	eb.Publish(EventReorg, uint64(7))

	got := map[EventType]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.Chan():
			got[ev.Type] = true
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
	if !got[EventIngestStarted] || !got[EventReorg] {
		t.Fatalf("received = %v", got)
	}
}

func TestPublishAsyncDropsWhenFull(t *testing.T) {
	eb := NewEventBus(1)
	defer eb.Close()

	sub := eb.Subscribe(EventBlockCommitted)
	eb.PublishAsync(EventBlockCommitted, uint64(1))
	eb.PublishAsync(EventBlockCommitted, uint64(2)) // buffer full, dropped

	ev := <-sub.Chan()
	if ev.Data.(uint64) != 1 {
		t.Fatalf("first event data = %v, want 1", ev.Data)
	}
	select {
	case ev := <-sub.Chan():
		t.Fatalf("second event should have been dropped, got %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	eb := NewEventBus(1)
	defer eb.Close()

	sub := eb.Subscribe(EventReorg)
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	if _, open := <-sub.Chan(); open {
		t.Fatal("channel should be closed after Unsubscribe")
	}
	if n := eb.SubscriberCount(EventReorg); n != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", n)
	}
}

func TestSubscriberCount(t *testing.T) {
	eb := NewEventBus(1)
	defer eb.Close()

	a := eb.Subscribe(EventBlockCommitted)
	eb.Subscribe(EventBlockCommitted)
	eb.Subscribe(EventReorg)

	if n := eb.SubscriberCount(EventBlockCommitted); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	a.Unsubscribe()
	if n := eb.SubscriberCount(EventBlockCommitted); n != 1 {
		t.Fatalf("count after unsubscribe = %d, want 1", n)
	}
}

func TestCloseShutsDownSubscriptions(t *testing.T) {
	eb := NewEventBus(1)
	sub := eb.Subscribe(EventIngestStarted)

	eb.Close()
	eb.Close() // idempotent

	if _, open := <-sub.Chan(); open {
		t.Fatal("subscription channel should be closed")
	}

	// Publishing and subscribing after close are inert.
	eb.Publish(EventIngestStarted, nil)
	late := eb.Subscribe(EventIngestStarted)
	if _, open := <-late.Chan(); open {
		t.Fatal("late subscription should be closed immediately")
	}
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	eb := NewEventBus(64)
	defer eb.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := eb.Subscribe(EventBlockCommitted)
			sub.Unsubscribe()
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				eb.PublishAsync(EventBlockCommitted, uint64(j))
			}
		}()
	}
	wg.Wait()
}

func TestUnsubscribeNilIsNoop(t *testing.T) {
	eb := NewEventBus(1)
	defer eb.Close()
	eb.Unsubscribe(nil)
}
