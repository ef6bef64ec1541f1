package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/givefood/needwatch/internal/tasks"
)

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "Enqueue an article feed crawl for every open food bank",
	Long:  "Enqueues one article crawl task per open food bank with an RSS feed; the worker pool drains them at crawl priority.",
	RunE:  runArticles,
}

func init() {
	rootCmd.AddCommand(articlesCmd)
}

func runArticles(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	foodbanks, err := app.store.ListOpenFoodbanks(ctx)
	if err != nil {
		return err
	}

	dispatcher := tasks.NewPGDispatcher(app.store, app.logger)
	enqueued := 0
	for _, foodbank := range foodbanks {
		if foodbank.RSSURL == "" {
			continue
		}
		task := tasks.Task{
			Name:     tasks.NameArticleCrawl,
			Queue:    tasks.QueueDefault,
			Priority: tasks.PriorityArticleCrawl,
			Args:     []string{foodbank.Slug},
		}
		if err := dispatcher.Dispatch(ctx, task); err != nil {
			return err
		}
		enqueued++
	}

	fmt.Printf("Enqueued %d article crawls\n", enqueued)
	return nil
}
