package mq

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sweetshop/apiserver/config"
)

const headerMessageID = "message-id"

// KafkaClient publishes to topics named by channel and consumes them in a
// consumer group.
type KafkaClient struct {
	brokers []string
	groupID string
	writer  *kafka.Writer
}

func NewKafkaClient(cfg config.KafkaConfig) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}

	return &KafkaClient{
		brokers: cfg.Brokers,
		groupID: cfg.GroupID,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Publish writes one message. The key attribute selects the partition.
func (k *KafkaClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if channel == "" {
		return "", errors.New("kafka channel is required")
	}

	messageID := uuid.NewString()
	headers := make([]kafka.Header, 0, len(attrs)+1)
	headers = append(headers, kafka.Header{Key: headerMessageID, Value: []byte(messageID)})
	for key, value := range attrs {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	msg := kafka.Message{
		Topic:   channel,
		Value:   data,
		Headers: headers,
	}
	if key := attrs[AttrKey]; key != "" {
		msg.Key = []byte(key)
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe reads the topic in the configured consumer group.
func (k *KafkaClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if channel == "" {
		return errors.New("kafka channel is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		Topic:    channel,
		GroupID:  k.groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	return consumeKafka(ctx, reader, handler)
}

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// consumeKafka commits each message the handler accepts. A handler error
// stops consumption with that message uncommitted, so the group resumes
// from it on restart.
func consumeKafka(ctx context.Context, reader kafkaReader, handler Handler) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}

		if err := handler(ctx, fromKafka(msg)); err != nil {
			return fmt.Errorf("handle kafka message %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit kafka offset: %w", err)
		}
	}
}

func fromKafka(msg kafka.Message) Message {
	message := Message{Data: msg.Value, Attributes: make(map[string]string, len(msg.Headers))}
	for _, h := range msg.Headers {
		if h.Key == headerMessageID {
			message.ID = string(h.Value)
			continue
		}
		message.Attributes[h.Key] = string(h.Value)
	}
	return message
}

func (k *KafkaClient) Close() error {
	return k.writer.Close()
}
