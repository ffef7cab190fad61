package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe("message.", 10)
	defer sub.Close()

	n := b.Publish(Event{Kind: "message.sent", Timestamp: time.Now(), Payload: "m1"})
	if n != 1 {
		t.Errorf("Publish delivered to %d subscribers, want 1", n)
	}

	select {
	case evt := <-sub.Events():
		if evt.Kind != "message.sent" {
			t.Errorf("got kind %q, want message.sent", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	sub := b.Subscribe("participant.", 10)
	defer sub.Close()

	b.Publish(Event{Kind: "message.sent"})
	b.Publish(Event{Kind: "participant.added"})

	select {
	case evt := <-sub.Events():
		if evt.Kind != "participant.added" {
			t.Errorf("got kind %q, want participant.added", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-sub.Events():
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmptyPrefixMatchesAll(t *testing.T) {
	b := New()
	sub := b.Subscribe("", 10)
	defer sub.Close()

	b.Publish(Event{Kind: "message.sent"})
	b.Publish(Event{Kind: "participant.left"})

	if got := len(sub.Events()); got != 2 {
		t.Errorf("buffered %d events, want 2", got)
	}
}

func TestClose(t *testing.T) {
	b := New()
	sub := b.Subscribe("message.", 10)
	sub.Close()
	sub.Close()

	if n := b.Publish(Event{Kind: "message.sent"}); n != 0 {
		t.Errorf("Publish delivered to %d subscribers after close, want 0", n)
	}
	if b.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", b.Subscribers())
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	sub := b.Subscribe("test.", 1)
	defer sub.Close()

	b.Publish(Event{Kind: "test.one"})
	// Buffer is full; this one is dropped.
	b.Publish(Event{Kind: "test.two"})

	evt := <-sub.Events()
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if sub.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", sub.Dropped())
	}
}
