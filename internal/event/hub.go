package event

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize bounds each subscriber's outbound queue.
const DefaultQueueSize = 64

// Observer receives hub delivery statistics. Implemented by the metrics
// package; a nil observer disables reporting.
type Observer interface {
	RecordEventPublished(kind string)
	RecordEventDropped()
	SetSubscribers(count int)
}

// Subscriber is one live observer of the event feed. Events are received
// from Events(); the subscriber owns nothing but its queue.
type Subscriber struct {
	hub      *Hub
	ch       chan Event
	sessions map[string]struct{} // nil means interested in all sessions
	dropped  atomic.Uint64
	closed   bool // guarded by hub.mu
}

// Events returns the subscriber's delivery channel. It is closed by
// Unsubscribe and by hub shutdown.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Dropped reports how many events were discarded because this subscriber
// fell behind its bounded queue. A non-zero value means the feed has gaps;
// the subscriber should resynchronize from the snapshot API.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// Hub fans one inbound event stream out to every interested subscriber.
// Publish never blocks on a slow consumer: each subscriber has a bounded
// queue, and on overflow the oldest queued events are dropped and counted
// against that subscriber alone. Per-session ordering is preserved because
// producers publish a given session's events from a single goroutine and
// the queue is FIFO.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	queueSize   int
	logger      *slog.Logger
	observer    Observer
	closed      bool
}

// NewHub creates an event hub. queueSize bounds each subscriber's queue;
// values below 1 fall back to DefaultQueueSize. observer may be nil.
func NewHub(logger *slog.Logger, queueSize int, observer Observer) *Hub {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		queueSize:   queueSize,
		logger:      logger,
		observer:    observer,
	}
}

// Subscribe registers a new observer and queues its connection_established
// greeting. With no arguments the subscriber receives every session's
// events; otherwise only the named sessions.
func (h *Hub) Subscribe(sessionIDs ...string) *Subscriber {
	sub := &Subscriber{
		hub: h,
		ch:  make(chan Event, h.queueSize),
	}

	if len(sessionIDs) > 0 {
		sub.sessions = make(map[string]struct{}, len(sessionIDs))
		for _, id := range sessionIDs {
			sub.sessions[id] = struct{}{}
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub
	}
	h.subscribers[sub] = struct{}{}
	count := len(h.subscribers)
	sub.ch <- NewConnectionEstablished("Connected to live call monitoring", time.Now().UTC())
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.SetSubscribers(count)
	}

	return sub
}

// Unsubscribe removes the subscriber and closes its channel. When it
// returns, no further event will be queued for this subscriber.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub]; !ok || sub.closed {
		h.mu.Unlock()
		return
	}
	delete(h.subscribers, sub)
	sub.closed = true
	close(sub.ch)
	count := len(h.subscribers)
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.SetSubscribers(count)
	}
}

// Publish delivers the event to every interested subscriber without
// blocking. A full subscriber queue sheds its oldest entry to make room.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	for sub := range h.subscribers {
		if !sub.wants(ev) {
			continue
		}
		h.offer(sub, ev)
	}

	if h.observer != nil {
		h.observer.RecordEventPublished(string(ev.EventKind()))
	}
}

// offer enqueues without blocking, shedding the oldest queued event on
// overflow. Caller holds at least a read lock, so the channel cannot be
// closed concurrently.
func (h *Hub) offer(sub *Subscriber, ev Event) {
	select {
	case sub.ch <- ev:
		return
	default:
	}

	// Queue full: drop the oldest queued event and try once more. The
	// receiver may drain the queue between the selects, in which case
	// nothing is shed; the counter only grows when an event is actually
	// lost.
	shed := uint64(0)
	select {
	case <-sub.ch:
		shed++
	default:
	}

	select {
	case sub.ch <- ev:
	default:
		// Another publisher refilled the freed slot; shedding the
		// incoming event instead keeps this subscriber's feed in order.
		shed++
	}

	if shed == 0 {
		return
	}

	sub.dropped.Add(shed)
	if h.observer != nil {
		for i := uint64(0); i < shed; i++ {
			h.observer.RecordEventDropped()
		}
	}
	h.logger.Warn("Subscriber queue overflow, dropped oldest event",
		slog.String("event", string(ev.EventKind())),
		slog.String("stream_sid", ev.StreamID()),
		slog.Uint64("total_dropped", sub.dropped.Load()),
	)
}

func (s *Subscriber) wants(ev Event) bool {
	if s.sessions == nil {
		return true
	}
	if ev.StreamID() == "" {
		return true
	}
	_, ok := s.sessions[ev.StreamID()]
	return ok
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close shuts the hub down, closing every subscriber channel. Publish and
// Subscribe become no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for sub := range h.subscribers {
		sub.closed = true
		close(sub.ch)
		delete(h.subscribers, sub)
	}
}
