/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/sweetshop/apiserver/internal/db"
	"github.com/sweetshop/apiserver/internal/seed"
	"github.com/sweetshop/apiserver/internal/store"
)

var seedMigrate bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo accounts and sample sweets",
	Long: `Inserts the demo admin and user accounts and a sample catalog.
Records that already exist are left untouched.

	admin@sweetshop.com / admin123
	user@sweetshop.com  / user123
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := loadConfig()
		ctx := cmd.Context()

		if seedMigrate {
			if err := db.MigrateUp(cfg.Database.DSN()); err != nil {
				return err
			}
		}

		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		result, err := seed.New(store.NewUserRepository(conn), store.NewSweetRepository(conn), log).Run(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("users", result.Users).Int("sweets", result.Sweets).Msg("seed complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().BoolVar(&seedMigrate, "migrate", true, "apply pending migrations first")
}
