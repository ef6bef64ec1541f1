package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run a need check across every open food bank",
	Long:  "Runs one full crawl set: checks every open food bank's need source in turn and enqueues the notification fan-out for each change.",
	RunE:  runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	checker, err := app.newChecker(ctx)
	if err != nil {
		return err
	}

	summary, err := checker.CrawlAll(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Crawl set %d: %d checked, %d changed, %d failed\n",
		summary.CrawlSetID, summary.Checked, summary.Changed, summary.Failed)
	return nil
}
