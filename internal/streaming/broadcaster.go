// Package streaming provides the in-memory pub/sub used to push research
// progress to subscribers, with per-topic replay for reconnects.
package streaming

import (
	"encoding/json"
	"sync"
	"time"

	ometrics "github.com/openscout/orchestrator/internal/metrics"
)

// EventType classifies a progress event.
type EventType string

const (
	EventStatus    EventType = "status"
	EventProgress  EventType = "progress"
	EventContent   EventType = "content"
	EventError     EventType = "error"
	EventComplete  EventType = "complete"
	EventHeartbeat EventType = "heartbeat"
)

// Event is one progress notification for a topic. Events for a given topic
// carry monotonically increasing sequence numbers and are delivered to each
// subscriber in emission order.
type Event struct {
	TopicID   string      `json:"topic_id"`
	Type      EventType   `json:"type"`
	AgentName string      `json:"agent_name,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Seq       uint64      `json:"seq"`
}

// Marshal returns the JSON form used by SSE and WebSocket transports.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Broadcaster is an instance-scoped pub/sub keyed by topic ID. It is
// constructed once at startup and injected into everything that publishes;
// subscriber bookkeeping and history both live under one mutex so a
// broadcast never observes a half-mutated subscriber list.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	capacity    int
}

// NewBroadcaster creates a broadcaster whose per-topic replay rings hold
// capacity events (256 when zero).
func NewBroadcaster(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = 256
	}
	return &Broadcaster{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		capacity:    capacity,
	}
}

// Subscribe registers a subscriber channel for topicID. The caller must
// drain the channel and call Unsubscribe when done.
func (b *Broadcaster) Subscribe(topicID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[topicID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		b.subscribers[topicID] = subs
	}
	subs[ch] = struct{}{}
	ometrics.StreamSubscribers.Inc()
	return ch
}

// Unsubscribe removes and closes the subscriber channel.
func (b *Broadcaster) Unsubscribe(topicID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subscribers[topicID]; ok {
		if _, member := subs[ch]; member {
			delete(subs, ch)
			close(ch)
			ometrics.StreamSubscribers.Dec()
		}
		if len(subs) == 0 {
			delete(b.subscribers, topicID)
		}
	}
}

// Publish assigns the event its sequence number, records it for replay, and
// delivers it to every subscriber without blocking. Slow subscribers lose
// events rather than stalling the publisher.
func (b *Broadcaster) Publish(topicID string, evt Event) {
	evt.TopicID = topicID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rg := b.history[topicID]
	if rg == nil {
		rg = newRing(b.capacity)
		b.history[topicID] = rg
	}
	evt.Seq = rg.nextSeq
	rg.nextSeq++
	rg.push(evt)

	// Sends happen under the lock so an Unsubscribe cannot close a channel
	// mid-broadcast; they are non-blocking so the lock is never held long.
	for ch := range b.subscribers[topicID] {
		select {
		case ch <- evt:
		default:
			ometrics.StreamEventsDropped.Inc()
		}
	}
}

// ReplaySince returns retained events with Seq > since, oldest first.
func (b *Broadcaster) ReplaySince(topicID string, since uint64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rg := b.history[topicID]
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

// Forget drops the replay history for a topic after its research run is
// fully consumed.
func (b *Broadcaster) Forget(topicID string) {
	b.mu.Lock()
	delete(b.history, topicID)
	b.mu.Unlock()
}

// ring is a fixed-capacity event buffer.
type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity), nextSeq: 1} }

func (r *ring) push(e Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
