// Package outbox moves contact messages from the API to notifiers through a
// Redis stream.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quillscribe/portal/internal/metrics"
)

const (
	// StreamKey is the Redis stream for contact messages.
	StreamKey = "contact:messages"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "contact:messages:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 10000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 500 * time.Millisecond
)

// ContactPayload is the stream entry for a stored contact message.
// The message body stays in Postgres.
type ContactPayload struct {
	MessageID string `json:"mid"`
	CreatedAt int64  `json:"t"` // Unix milliseconds
}

// Publisher enqueues contact messages to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new contact message publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "outbox.publisher"),
		metrics: recorder,
	}
}

// Publish adds a contact message to the stream and returns the stream ID.
func (p *Publisher) Publish(ctx context.Context, messageID string, createdAt time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	data, err := json.Marshal(ContactPayload{MessageID: messageID, CreatedAt: createdAt.UnixMilli()})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	streamID, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		p.metrics.IncContactPublished("dropped")
		return "", fmt.Errorf("xadd: %w", err)
	}

	p.logger.Debug("contact message published",
		slog.String("message_id", messageID),
		slog.String("stream_id", streamID),
	)
	p.metrics.IncContactPublished("success")
	return streamID, nil
}
