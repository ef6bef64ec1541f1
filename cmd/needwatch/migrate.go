package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/givefood/needwatch/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  "Applies any pending schema migrations to the database named by DATABASE_URL.",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, _ []string) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if err := db.Migrate(databaseURL); err != nil {
		return err
	}
	fmt.Println("Migrations applied")
	return nil
}
