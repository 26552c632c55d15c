package types

import "time"

// EventType identifies an inventory change.
type EventType string

const (
	EventSweetCreated   EventType = "sweet.created"
	EventSweetUpdated   EventType = "sweet.updated"
	EventSweetDeleted   EventType = "sweet.deleted"
	EventSweetPurchased EventType = "sweet.purchased"
	EventSweetRestocked EventType = "sweet.restocked"
)

// InventoryEvent is published after every successful catalog mutation.
type InventoryEvent struct {
	Type       EventType `json:"type"`
	SweetID    string    `json:"sweet_id"`
	Name       string    `json:"name,omitempty"`
	Quantity   int       `json:"quantity"`
	Delta      int       `json:"delta,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
