package main

import (
	"fmt"

	"github.com/BearPays/code-review-assistant-back/internal/config"
	"github.com/BearPays/code-review-assistant-back/pkg/database"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the pgvector extension and the corpus tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd, config.Load())
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		color.Green("Migration complete")
		return nil
	},
}
