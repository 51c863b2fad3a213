package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler processes one decoded event. Returning an error leaves the offset
// uncommitted so the message is delivered again.
type Handler func(ctx context.Context, eventType string, payload []byte) error

// Consumer is a long-lived consumer-group reader for a single topic. The
// offset is committed only after the handler has durably applied the event,
// which gives at-least-once processing.
type Consumer struct {
	reader      *kafka.Reader
	logger      *slog.Logger
	backoff     time.Duration
	maxAttempts int
}

func NewConsumer(brokers []string, groupID, topic string, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			GroupID:     groupID,
			Topic:       topic,
			StartOffset: kafka.FirstOffset,
			MinBytes:    1,
			MaxBytes:    1 << 20,
		}),
		logger:      logger.With("topic", topic, "group_id", groupID),
		backoff:     2 * time.Second,
		maxAttempts: 5,
	}
}

// Run blocks until ctx is cancelled. Each fetched message is retried in
// place until it is processed; Run never fetches past an unprocessed
// message, because committing any later offset would implicitly commit the
// failed one and lose it. If a message still fails after maxAttempts the
// consumer exits with an error and the uncommitted offset is redelivered on
// restart.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	c.logger.Info("consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.logger.Info("consumer stopped")
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		for attempt := 1; ; attempt++ {
			err := processMessage(ctx, c.logger, msg.Value, handler)
			if err == nil {
				break
			}
			c.logger.Error("handler failed, retrying same message",
				"error", err,
				"attempt", attempt,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			if attempt >= c.maxAttempts {
				return fmt.Errorf("Run: message at partition %d offset %d failed after %d attempts: %w",
					msg.Partition, msg.Offset, attempt, err)
			}
			if !c.sleep(ctx) {
				return nil
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("Run: commit: %w", err)
		}
	}
}

// processMessage decodes one raw message and dispatches it. A nil return
// means the message is done and its offset may be committed; malformed
// payloads can never succeed, so they are logged and treated as done.
func processMessage(ctx context.Context, logger *slog.Logger, value []byte, handler Handler) error {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		logger.Error("malformed message, skipping", "error", err)
		return nil
	}
	return handler(ctx, env.Type, env.Payload)
}

func (c *Consumer) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.backoff):
		return true
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
