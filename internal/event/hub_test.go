package event

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/2006-sk/Backend-hackharvard/internal/risk"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func drainGreeting(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		if ev.EventKind() != KindConnectionEstablished {
			t.Fatalf("Expected connection_established greeting, got %v", ev.EventKind())
		}
	case <-time.After(time.Second):
		t.Fatalf("Expected greeting event, got none")
	}
}

func TestSubscribeReceivesGreeting(t *testing.T) {
	hub := NewHub(testLogger(), 8, nil)
	defer hub.Close()

	sub := hub.Subscribe()
	drainGreeting(t, sub)

	if hub.SubscriberCount() != 1 {
		t.Errorf("Expected 1 subscriber, got %d", hub.SubscriberCount())
	}
}

func TestPublishDeliversInOrder(t *testing.T) {
	hub := NewHub(testLogger(), 16, nil)
	defer hub.Close()

	sub := hub.Subscribe()
	drainGreeting(t, sub)

	now := time.Now()
	hub.Publish(NewCallStart("CA123", now))
	for i := 0; i < 3; i++ {
		hub.Publish(NewUpdate("CA123", fmt.Sprintf("text %d", i), "", 0.1, risk.BandSafe, now))
	}
	hub.Publish(NewCallEnd("CA123", 0.1, 10, now))

	expected := []Kind{KindCallStart, KindUpdate, KindUpdate, KindUpdate, KindCallEnd}
	for i, want := range expected {
		select {
		case ev := <-sub.Events():
			if ev.EventKind() != want {
				t.Errorf("Event %d: expected %v, got %v", i, want, ev.EventKind())
			}
		case <-time.After(time.Second):
			t.Fatalf("Expected event %d, got none", i)
		}
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	hub := NewHub(testLogger(), 4, nil)
	defer hub.Close()

	sub := hub.Subscribe()
	// Greeting occupies one slot; never read, so the queue overflows.

	now := time.Now()
	for i := 0; i < 10; i++ {
		hub.Publish(NewUpdate("CA123", fmt.Sprintf("text %d", i), "", 0.1, risk.BandSafe, now))
	}

	if sub.Dropped() == 0 {
		t.Errorf("Expected dropped events for slow subscriber")
	}

	// The newest events survive; the feed stays in order.
	var got []Event
	for {
		select {
		case ev := <-sub.Events():
			got = append(got, ev)
			continue
		default:
		}
		break
	}
	if len(got) != 4 {
		t.Fatalf("Expected a full queue of 4 events, got %d", len(got))
	}
	last := got[len(got)-1].(Update)
	if last.Text != "text 9" {
		t.Errorf("Expected newest event to survive, got %q", last.Text)
	}
}

func TestDropCountMatchesLostEvents(t *testing.T) {
	hub := NewHub(testLogger(), 2, nil)
	defer hub.Close()

	sub := hub.Subscribe()

	// Reader races the publisher; whatever it fails to receive must be
	// accounted for by the drop counter, nothing more and nothing less.
	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range sub.Events() {
			received++
		}
	}()

	const total = 500
	now := time.Now()
	for i := 0; i < total; i++ {
		hub.Publish(NewUpdate("CA123", fmt.Sprintf("text %d", i), "", 0.1, risk.BandSafe, now))
	}
	hub.Unsubscribe(sub)
	<-done

	// total published + the greeting.
	if got := received + int(sub.Dropped()); got != total+1 {
		t.Errorf("Expected received+dropped == %d, got %d (received %d, dropped %d)",
			total+1, got, received, sub.Dropped())
	}
}

func TestSessionFilter(t *testing.T) {
	hub := NewHub(testLogger(), 16, nil)
	defer hub.Close()

	sub := hub.Subscribe("CA123")
	drainGreeting(t, sub)

	now := time.Now()
	hub.Publish(NewCallStart("CA999", now))
	hub.Publish(NewCallStart("CA123", now))

	select {
	case ev := <-sub.Events():
		start, ok := ev.(CallStart)
		if !ok || start.StreamSID != "CA123" {
			t.Errorf("Expected filtered event for CA123, got %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("Expected filtered event, got none")
	}

	select {
	case ev := <-sub.Events():
		t.Errorf("Expected no further events, got %v", ev)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(testLogger(), 8, nil)
	defer hub.Close()

	sub := hub.Subscribe()
	drainGreeting(t, sub)
	hub.Unsubscribe(sub)

	if hub.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", hub.SubscriberCount())
	}

	if _, ok := <-sub.Events(); ok {
		t.Errorf("Expected channel to be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	hub.Publish(NewCallStart("CA123", time.Now()))

	// Double unsubscribe is a no-op.
	hub.Unsubscribe(sub)
}

func TestPublishDuringUnsubscribe(t *testing.T) {
	hub := NewHub(testLogger(), 2, nil)
	defer hub.Close()

	subs := make([]*Subscriber, 8)
	for i := range subs {
		subs[i] = hub.Subscribe()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.Publish(NewUpdate("CA123", "text", "", 0.1, risk.BandSafe, time.Now()))
		}
	}()

	for _, sub := range subs {
		hub.Unsubscribe(sub)
	}
	<-done

	if hub.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", hub.SubscriberCount())
	}
}

func TestCloseStopsHub(t *testing.T) {
	hub := NewHub(testLogger(), 8, nil)

	sub := hub.Subscribe()
	drainGreeting(t, sub)
	hub.Close()

	if _, ok := <-sub.Events(); ok {
		t.Errorf("Expected subscriber channel closed on hub shutdown")
	}

	// Subscribing after close returns a closed subscriber.
	late := hub.Subscribe()
	if _, ok := <-late.Events(); ok {
		t.Errorf("Expected closed channel for late subscriber")
	}

	// Publish after close is a no-op.
	hub.Publish(NewCallStart("CA123", time.Now()))
}

type countingObserver struct {
	published int
	dropped   int
	subs      int
}

func (o *countingObserver) RecordEventPublished(kind string) { o.published++ }
func (o *countingObserver) RecordEventDropped()              { o.dropped++ }
func (o *countingObserver) SetSubscribers(count int)         { o.subs = count }

func TestObserverNotified(t *testing.T) {
	obs := &countingObserver{}
	hub := NewHub(testLogger(), 8, obs)
	defer hub.Close()

	sub := hub.Subscribe()
	drainGreeting(t, sub)
	if obs.subs != 1 {
		t.Errorf("Expected observer to see 1 subscriber, got %d", obs.subs)
	}

	hub.Publish(NewCallStart("CA123", time.Now()))
	if obs.published != 1 {
		t.Errorf("Expected 1 published event, got %d", obs.published)
	}

	hub.Unsubscribe(sub)
	if obs.subs != 0 {
		t.Errorf("Expected observer to see 0 subscribers, got %d", obs.subs)
	}
}
