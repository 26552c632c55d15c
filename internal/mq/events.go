package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sweetshop/apiserver/types"
)

// InventoryHandler processes one decoded inventory event.
type InventoryHandler func(ctx context.Context, event types.InventoryEvent) error

// SubscribeInventory consumes inventory events from channel. Messages that
// are not valid events are acknowledged and dropped.
func (m *MQ) SubscribeInventory(ctx context.Context, channel string, handler InventoryHandler) error {
	return m.Subscribe(ctx, channel, func(ctx context.Context, msg Message) error {
		event, err := DecodeInventoryEvent(msg)
		if err != nil {
			return nil
		}
		return handler(ctx, event)
	})
}

// DecodeInventoryEvent parses a message body as an inventory event.
func DecodeInventoryEvent(msg Message) (types.InventoryEvent, error) {
	var event types.InventoryEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return types.InventoryEvent{}, fmt.Errorf("decode inventory event %s: %w", msg.ID, err)
	}
	if event.Type == "" {
		event.Type = types.EventType(msg.Attributes[AttrType])
	}
	if event.Type == "" || event.SweetID == "" {
		return types.InventoryEvent{}, fmt.Errorf("decode inventory event %s: missing type or sweet id", msg.ID)
	}
	return event, nil
}
