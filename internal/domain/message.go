// Package domain contains core domain types for the chat recorder.
package domain

import (
	"time"
)

// ActionNewCompletedMessage is the action of every broadcast payload.
const ActionNewCompletedMessage = "new_completed_message"

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// OutboundMessage is one finalized message as published to consumers.
type OutboundMessage struct {
	Action    string `json:"action"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// NewOutboundMessage stamps a finalized message at now.
func NewOutboundMessage(sender, text, source string, now time.Time) OutboundMessage {
	return OutboundMessage{
		Action:    ActionNewCompletedMessage,
		Sender:    sender,
		Text:      text,
		Timestamp: now.UTC().Format(TimestampLayout),
		Source:    source,
	}
}

// StoredMessage is an outbound message persisted by the transcript sink.
type StoredMessage struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Sender     string    `json:"sender"`
	Text       string    `json:"text"`
	Source     string    `json:"source"`
	Timestamp  string    `json:"timestamp"`
	ReceivedAt time.Time `json:"received_at"`
}
