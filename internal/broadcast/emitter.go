package broadcast

import (
	"time"

	"github.com/ashureev/chat-recorder/internal/domain"
)

// DefaultTopic is the channel name consumers listen on.
const DefaultTopic = "llm_chat_messages"

// Emitter publishes finalized messages on a fixed topic. There is no
// acknowledgement and no retry.
type Emitter struct {
	hub   *Hub
	topic string
	now   func() time.Time
}

// NewEmitter returns an emitter for topic. A nil now uses the wall clock.
func NewEmitter(hub *Hub, topic string, now func() time.Time) *Emitter {
	if topic == "" {
		topic = DefaultTopic
	}
	if now == nil {
		now = time.Now
	}
	return &Emitter{hub: hub, topic: topic, now: now}
}

// Emit stamps and publishes one message.
func (e *Emitter) Emit(sender, text, source string) {
	e.hub.Publish(e.topic, domain.NewOutboundMessage(sender, text, source, e.now()))
}

// Topic returns the topic messages are published on.
func (e *Emitter) Topic() string { return e.topic }
