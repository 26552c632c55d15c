package mq

import (
	"context"
	"strconv"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sweetshop/apiserver/config"
	"github.com/sweetshop/apiserver/types"
)

type memoryBackend struct {
	queues map[string][]Message
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{queues: make(map[string][]Message)}
}

func (b *memoryBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	id := channel + "-" + strconv.Itoa(len(b.queues[channel]))
	b.queues[channel] = append(b.queues[channel], Message{ID: id, Data: data, Attributes: attrs})
	return id, nil
}

func (b *memoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	for _, msg := range b.queues[channel] {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *memoryBackend) Close() error { return nil }

func TestOpenWithoutBackend(t *testing.T) {
	q, err := Open(context.Background(), config.MQConfig{})
	if err != nil || q != nil {
		t.Fatalf("expected nil MQ and no error, got %v, %v", q, err)
	}

	if _, err := Open(context.Background(), config.MQConfig{Backend: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestSubscribeInventory(t *testing.T) {
	backend := newMemoryBackend()
	q := New(backend)
	ctx := context.Background()

	_, _ = q.Publish(ctx, "inventory", []byte(`{"type":"sweet.purchased","sweet_id":"s1","name":"Toffee","quantity":2,"delta":-3}`), nil)
	_, _ = q.Publish(ctx, "inventory", []byte(`not json`), nil)
	_, _ = q.Publish(ctx, "inventory", []byte(`{"sweet_id":"s2","quantity":9}`), map[string]string{AttrType: "sweet.restocked"})

	var got []types.InventoryEvent
	err := q.SubscribeInventory(ctx, "inventory", func(_ context.Context, event types.InventoryEvent) error {
		got = append(got, event)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != types.EventSweetPurchased || got[0].Delta != -3 || got[0].Quantity != 2 {
		t.Fatalf("unexpected first event: %+v", got[0])
	}
	if got[1].Type != types.EventSweetRestocked || got[1].SweetID != "s2" {
		t.Fatalf("expected type from attributes, got %+v", got[1])
	}
}

func TestHeadersToAttributes(t *testing.T) {
	attrs := headersToAttributes(amqp.Table{"type": "sweet.created", "raw": []byte("x"), "n": int32(3)})
	if attrs["type"] != "sweet.created" || attrs["raw"] != "x" || attrs["n"] != "3" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
	if headersToAttributes(nil) != nil {
		t.Fatalf("expected nil for empty headers")
	}
}
