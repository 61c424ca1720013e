package diag

import (
	"context"
	"testing"
	"time"
)

func receive(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case e, ok := <-sub.C:
		if !ok {
			t.Fatal("subscriber channel closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBus_DeliversSubscribedTypes(t *testing.T) {
	b := NewBus(8)
	sub, unsub := b.Subscribe(context.Background(), EventStalePush)
	defer unsub()

	b.Emit(Event{Type: EventPreviewSwap})
	b.Emit(Event{Type: EventStalePush, Session: "a"})

	e := receive(t, sub)
	if e.Type != EventStalePush || e.Session != "a" {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestBus_ReplaysHistory(t *testing.T) {
	b := NewBus(2)
	b.Emit(Event{Type: EventSettled, Message: "one"})
	b.Emit(Event{Type: EventSettled, Message: "two"})
	b.Emit(Event{Type: EventSettled, Message: "three"})

	sub, unsub := b.Subscribe(context.Background())
	defer unsub()

	if e := receive(t, sub); e.Message != "two" {
		t.Errorf("expected oldest retained event 'two', got %q", e.Message)
	}
	if e := receive(t, sub); e.Message != "three" {
		t.Errorf("expected 'three', got %q", e.Message)
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBus(1)
	sub, unsub := b.Subscribe(context.Background())
	unsub()
	unsub()

	if _, ok := <-sub.C; ok {
		t.Error("expected closed channel after unsubscribe")
	}
}

func TestBus_ContextCancelUnsubscribes(t *testing.T) {
	b := NewBus(1)
	ctx, cancel := context.WithCancel(context.Background())
	sub, _ := b.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-sub.C:
		if ok {
			t.Error("expected channel to close")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not released after cancel")
	}
}

func TestBus_FullSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus(1)
	_, unsub := b.Subscribe(context.Background())
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.Emit(Event{Type: EventPreviewSwap})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}
	if b.Dropped() == 0 {
		t.Error("expected dropped deliveries to be counted")
	}
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	b := NewBus(1)
	sub, unsub := b.Subscribe(context.Background())
	b.Close()
	b.Close()
	unsub()
	b.Emit(Event{Type: EventSettled})

	if _, ok := <-sub.C; ok {
		t.Error("expected closed channel after Close")
	}
}

func TestRecorder_Count(t *testing.T) {
	var r Recorder
	r.Emit(Event{Type: EventMalformedFrame})
	r.Emit(Event{Type: EventMalformedFrame})
	r.Emit(Event{Type: EventStalePush})

	if got := r.Count(EventMalformedFrame); got != 2 {
		t.Errorf("expected 2 malformed events, got %d", got)
	}
	if got := len(r.Events()); got != 3 {
		t.Errorf("expected 3 events, got %d", got)
	}
}
