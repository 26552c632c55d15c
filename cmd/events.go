/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sweetshop/apiserver/internal/mq"
	"github.com/sweetshop/apiserver/types"
)

var lowStockThreshold int

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail inventory events and flag low stock",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := loadConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer queue.Close()

		log.Info().Str("channel", cfg.MQ.EventsChannel).Int("low_stock", lowStockThreshold).Msg("listening for inventory events")
		err = queue.SubscribeInventory(ctx, cfg.MQ.EventsChannel, func(_ context.Context, event types.InventoryEvent) error {
			log.Info().
				Str("type", string(event.Type)).
				Str("sweet_id", event.SweetID).
				Str("name", event.Name).
				Int("quantity", event.Quantity).
				Int("delta", event.Delta).
				Time("occurred_at", event.OccurredAt).
				Msg("inventory event")
			if isLowStock(event, lowStockThreshold) {
				log.Warn().
					Str("sweet_id", event.SweetID).
					Str("name", event.Name).
					Int("quantity", event.Quantity).
					Msg("low stock")
			}
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// isLowStock reports whether event leaves a sweet below threshold. Deletes
// never count.
func isLowStock(event types.InventoryEvent, threshold int) bool {
	if threshold <= 0 || event.Type == types.EventSweetDeleted {
		return false
	}
	return event.Quantity < threshold
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().IntVar(&lowStockThreshold, "low-stock", 10, "warn when quantity drops below this value (0 disables)")
}
