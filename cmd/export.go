/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/sweetshop/apiserver/internal/db"
	"github.com/sweetshop/apiserver/internal/storage"
	"github.com/sweetshop/apiserver/internal/store"
)

var verifyExport bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Upload a JSON snapshot of the catalog to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := loadConfig()
		ctx := cmd.Context()

		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		sweets, err := store.NewSweetRepository(conn).List(ctx)
		if err != nil {
			return err
		}

		objects, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer objects.Close()

		key, err := objects.WriteSnapshot(ctx, sweets, time.Now())
		if err != nil {
			return err
		}
		if verifyExport {
			if err := objects.VerifySnapshot(ctx, key, len(sweets)); err != nil {
				return err
			}
		}
		log.Info().
			Str("bucket", objects.Bucket()).
			Str("key", key).
			Int("sweets", len(sweets)).
			Bool("verified", verifyExport).
			Msg("catalog exported")
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&verifyExport, "verify", true, "read the snapshot back after upload")
	rootCmd.AddCommand(exportCmd)
}
