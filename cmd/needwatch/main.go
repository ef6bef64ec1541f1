// Package main implements the needwatch CLI: the crawl pipeline that
// keeps food bank need lists fresh and notifies their subscribers.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "needwatch",
	Short: "Food bank need change detection and notification pipeline",
	Long:  "needwatch re-reads each food bank's published shopping list, detects genuine changes, publishes them and fans notifications out to subscribers.",
}

var logLevel string

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
