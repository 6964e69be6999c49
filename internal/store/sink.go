package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/chat-recorder/internal/broadcast"
	"github.com/ashureev/chat-recorder/internal/domain"
	"github.com/ashureev/chat-recorder/internal/shared"
	"github.com/google/uuid"
)

// SinkOptions configures a Sink.
type SinkOptions struct {
	Topic  string
	Buffer int
	Retry  shared.RetryPolicy
	Now    func() time.Time
	Logger *slog.Logger
}

// Sink is a downstream consumer that writes every broadcast message to the
// repository.
type Sink struct {
	repo   Repository
	sub    *broadcast.Subscription
	topic  string
	retry  shared.RetryPolicy
	now    func() time.Time
	logger *slog.Logger
}

// NewSink subscribes to the hub immediately so nothing published after this
// call is missed.
func NewSink(repo Repository, hub *broadcast.Hub, opts SinkOptions) *Sink {
	if opts.Topic == "" {
		opts.Topic = broadcast.DefaultTopic
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Sink{
		repo:   repo,
		sub:    hub.Subscribe(opts.Topic, opts.Buffer),
		topic:  opts.Topic,
		retry:  opts.Retry,
		now:    opts.Now,
		logger: opts.Logger,
	}
}

// Run stores messages until ctx is done or the hub closes.
func (s *Sink) Run(ctx context.Context) {
	defer s.sub.Cancel()
	s.logger.Info("[SINK] Started", "topic", s.topic)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("[SINK] Shutting down", "reason", ctx.Err())
			return
		case msg, ok := <-s.sub.Messages():
			if !ok {
				s.logger.Info("[SINK] Hub closed")
				return
			}
			s.store(ctx, msg)
		}
	}
}

// Start runs the sink in a goroutine. The returned channel closes on exit.
func (s *Sink) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return done
}

func (s *Sink) store(ctx context.Context, msg domain.OutboundMessage) {
	row := &domain.StoredMessage{
		ID:         uuid.NewString(),
		Topic:      s.topic,
		Sender:     msg.Sender,
		Text:       msg.Text,
		Source:     msg.Source,
		Timestamp:  msg.Timestamp,
		ReceivedAt: s.now().UTC(),
	}
	err := shared.RetryOnConflict(ctx, s.retry, "insert message", func(ctx context.Context) error {
		return s.repo.InsertMessage(ctx, row)
	})
	if err != nil {
		s.logger.Warn("[SINK] Failed to store message", "error", err, "source", msg.Source)
		return
	}
	s.logger.Debug("[SINK] Stored message", "id", row.ID, "sender", row.Sender, "source", row.Source)
}
