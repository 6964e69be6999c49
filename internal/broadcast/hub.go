// Package broadcast fans finalized messages out to topic subscribers.
package broadcast

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ashureev/chat-recorder/internal/domain"
)

// Subscription receives messages published on one topic.
type Subscription struct {
	id    uint64
	topic string
	ch    chan domain.OutboundMessage
	hub   *Hub
}

// Messages returns the receive channel. It is closed on Cancel.
func (s *Subscription) Messages() <-chan domain.OutboundMessage { return s.ch }

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// Cancel unsubscribes and closes the channel. It is idempotent.
func (s *Subscription) Cancel() {
	s.hub.remove(s)
}

// Hub is a process-wide, topic-scoped publish/subscribe bus. Delivery is
// at-most-once: a subscriber whose buffer is full misses the message.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]*Subscription
	nextID uint64
	closed bool
	logger *slog.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		topics: make(map[string]map[uint64]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a subscriber with the given buffer size. Subscribing to
// a closed hub returns a subscription whose channel is already closed.
func (h *Hub) Subscribe(topic string, buffer int) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &Subscription{id: h.nextID, topic: topic, ch: make(chan domain.OutboundMessage, buffer), hub: h}
	if h.closed {
		close(s.ch)
		return s
	}
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[uint64]*Subscription)
	}
	h.topics[topic][s.id] = s
	h.logger.Debug("[HUB] Subscriber added", "topic", topic, "id", s.id)
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[s.topic]
	if !ok {
		return
	}
	if _, ok := subs[s.id]; !ok {
		return
	}
	delete(subs, s.id)
	if len(subs) == 0 {
		delete(h.topics, s.topic)
	}
	close(s.ch)
	h.logger.Debug("[HUB] Subscriber removed", "topic", s.topic, "id", s.id)
}

// Publish delivers msg to every subscriber of topic without blocking and
// returns how many received it.
func (h *Hub) Publish(topic string, msg domain.OutboundMessage) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.published.Add(1)
	delivered := 0
	for _, s := range h.topics[topic] {
		select {
		case s.ch <- msg:
			delivered++
		default:
			h.dropped.Add(1)
			h.logger.Warn("[HUB] Subscriber buffer full, message dropped",
				"topic", topic,
				"id", s.id,
				"buffer", cap(s.ch),
			)
		}
	}
	return delivered
}

// Subscribers returns the number of subscribers on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Stats reports publish and drop counters.
func (h *Hub) Stats() (published, dropped uint64) {
	return h.published.Load(), h.dropped.Load()
}

// Close cancels every subscription. Later subscriptions start closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic, subs := range h.topics {
		for _, s := range subs {
			close(s.ch)
		}
		delete(h.topics, topic)
	}
	h.closed = true
}
