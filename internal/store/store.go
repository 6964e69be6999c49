// Package store persists the transcript of broadcast messages.
package store

import (
	"context"
	"time"

	"github.com/ashureev/chat-recorder/internal/domain"
)

// DefaultListLimit caps ListMessages when no limit is given.
const DefaultListLimit = 100

// MessageFilter narrows ListMessages. Zero fields match everything.
type MessageFilter struct {
	Topic  string
	Source string
	Sender string
	Since  time.Time
	Limit  int
}

// Repository defines the interface for persisting recorded messages.
type Repository interface {
	// InsertMessage stores one received message.
	InsertMessage(ctx context.Context, msg *domain.StoredMessage) error

	// ListMessages returns matching messages, newest first.
	ListMessages(ctx context.Context, filter MessageFilter) ([]*domain.StoredMessage, error)

	// CountMessages returns the number of stored messages.
	CountMessages(ctx context.Context) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
