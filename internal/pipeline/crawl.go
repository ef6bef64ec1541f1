package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CrawlSummary reports what a batch run covered.
type CrawlSummary struct {
	CrawlSetID int64
	Checked    int
	Changed    int
	Failed     int
}

// CrawlAll runs a need check for every open food bank, sequentially,
// bracketed by one CrawlSet. One food bank failing outright does not
// stop the batch.
func (c *Checker) CrawlAll(ctx context.Context) (*CrawlSummary, error) {
	set, err := c.store.CreateCrawlSet(ctx, "need")
	if err != nil {
		return nil, fmt.Errorf("failed to create crawl set: %w", err)
	}

	foodbanks, err := c.store.ListOpenFoodbanks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list foodbanks: %w", err)
	}

	summary := &CrawlSummary{CrawlSetID: set.ID}
	for _, foodbank := range foodbanks {
		if ctx.Err() != nil {
			break
		}
		result, err := c.Check(ctx, foodbank, &set.ID)
		if err != nil {
			summary.Failed++
			c.logger.Error("need check failed",
				zap.String("foodbank", foodbank.Slug),
				zap.Error(err))
			continue
		}
		summary.Checked++
		if result.FetchErr != nil {
			summary.Failed++
		}
		if result.Need != nil {
			summary.Changed++
		}
	}

	if err := c.store.FinishCrawlSet(ctx, set.ID); err != nil {
		c.logger.Error("failed to finish crawl set", zap.Error(err))
	}
	c.logger.Info("crawl finished",
		zap.Int64("crawl_set_id", set.ID),
		zap.Int("checked", summary.Checked),
		zap.Int("changed", summary.Changed),
		zap.Int("failed", summary.Failed))
	return summary, nil
}
