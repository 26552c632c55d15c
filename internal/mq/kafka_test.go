package mq

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeKafkaReader struct {
	pending   []kafka.Message
	committed []int64
}

func (r *fakeKafkaReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.pending) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.pending[0]
	r.pending = r.pending[1:]
	return msg, nil
}

func (r *fakeKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func TestConsumeKafkaStopsBeforeCommittingAFailedMessage(t *testing.T) {
	reader := &fakeKafkaReader{pending: []kafka.Message{
		{Topic: "sweet-events", Offset: 0, Value: []byte("a")},
		{Topic: "sweet-events", Offset: 1, Value: []byte("b")},
		{Topic: "sweet-events", Offset: 2, Value: []byte("c")},
	}}
	boom := errors.New("boom")

	var seen []string
	err := consumeKafka(context.Background(), reader, func(_ context.Context, msg Message) error {
		seen = append(seen, string(msg.Data))
		if string(msg.Data) == "b" {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected consumption to stop at the failed message, saw %v", seen)
	}
	if len(reader.committed) != 1 || reader.committed[0] != 0 {
		t.Fatalf("expected only offset 0 committed, got %v", reader.committed)
	}
}

func TestFromKafkaSplitsMessageID(t *testing.T) {
	msg := fromKafka(kafka.Message{
		Value: []byte("{}"),
		Headers: []kafka.Header{
			{Key: headerMessageID, Value: []byte("m-1")},
			{Key: AttrType, Value: []byte("sweet.created")},
		},
	})
	if msg.ID != "m-1" {
		t.Fatalf("expected id m-1, got %q", msg.ID)
	}
	if _, ok := msg.Attributes[headerMessageID]; ok {
		t.Fatalf("message id leaked into attributes: %v", msg.Attributes)
	}
	if msg.Attributes[AttrType] != "sweet.created" {
		t.Fatalf("unexpected attributes: %v", msg.Attributes)
	}
}
