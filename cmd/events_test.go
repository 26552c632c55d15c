package cmd

import (
	"testing"

	"github.com/sweetshop/apiserver/types"
)

func TestIsLowStock(t *testing.T) {
	cases := []struct {
		name      string
		event     types.InventoryEvent
		threshold int
		want      bool
	}{
		{name: "below", event: types.InventoryEvent{Type: types.EventSweetPurchased, Quantity: 3}, threshold: 10, want: true},
		{name: "at threshold", event: types.InventoryEvent{Type: types.EventSweetPurchased, Quantity: 10}, threshold: 10},
		{name: "deleted", event: types.InventoryEvent{Type: types.EventSweetDeleted}, threshold: 10},
		{name: "disabled", event: types.InventoryEvent{Type: types.EventSweetPurchased}, threshold: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isLowStock(tc.event, tc.threshold); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
