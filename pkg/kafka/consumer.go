// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The producer serialises events as JSON, while the
// consumer decodes them via a pluggable MessageHandler callback.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/config"
)

// ErrSkip tells the consumer to commit a message without processing it,
// for payloads that can never succeed.
var ErrSkip = errors.New("skip message")

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, msg Message) error

// Message is the part of a Kafka record handlers see.
type Message struct {
	Key     []byte
	Value   []byte
	Type    string
	Offset  int64
	Headers map[string]string
}

func fromKafka(m kafka.Message) Message {
	msg := Message{
		Key:     m.Key,
		Value:   m.Value,
		Offset:  m.Offset,
		Headers: make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	msg.Type = msg.Headers[HeaderEventType]
	return msg
}

// Start offsets for a consumer group without committed offsets.
const (
	FirstOffset = kafka.FirstOffset
	LastOffset  = kafka.LastOffset
)

// ConsumerOptions selects the consumer group and where a new group starts
// reading (FirstOffset or LastOffset).
type ConsumerOptions struct {
	GroupID     string
	StartOffset int64
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
}

// NewConsumer creates a Consumer for the given topic and handler. An empty
// GroupID falls back to cfg.ConsumerGroup.
func NewConsumer(cfg config.KafkaConfig, topic string, opts ConsumerOptions, handler MessageHandler) *Consumer {
	if opts.GroupID == "" {
		opts.GroupID = cfg.ConsumerGroup
	}
	if opts.StartOffset == 0 {
		opts.StartOffset = FirstOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     opts.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: opts.StartOffset,
	})

	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", opts.GroupID),
		handler: handler,
	}
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled. A message is committed once its handler succeeds or returns
// ErrSkip; other failures leave it uncommitted for redelivery.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", m.Partition,
			"offset", m.Offset,
			"key", string(m.Key),
			"value_size", len(m.Value),
		)
		err = c.handler(ctx, fromKafka(m))
		if err != nil && !errors.Is(err, ErrSkip) {
			c.logger.Error("failed to process message",
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
			continue
		}
		if err != nil {
			c.logger.Warn("message skipped", "offset", m.Offset, "reason", err)
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("failed to commit message",
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
		}
	}
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
// Malformed payloads wrap ErrSkip.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("%w: decoding kafka message: %v", ErrSkip, err)
	}
	return result, nil
}
