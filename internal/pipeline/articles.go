package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/givefood/needwatch/internal/db"
)

// articleTitleMaxLen caps stored article titles.
const articleTitleMaxLen = 250

// ArticleCrawler discovers new posts from a food bank's RSS feed.
type ArticleCrawler struct {
	store     Store
	parser    *gofeed.Parser
	userAgent string
	logger    *zap.Logger
}

// NewArticleCrawler creates a crawler identifying itself as userAgent.
func NewArticleCrawler(store Store, userAgent string, logger *zap.Logger) *ArticleCrawler {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &ArticleCrawler{
		store:     store,
		parser:    parser,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Crawl fetches the feed and stores any articles not seen before. The
// attempt is bracketed by a CrawlItem and stamps last_crawl whether or
// not anything new turned up.
func (a *ArticleCrawler) Crawl(ctx context.Context, foodbank *db.Foodbank, crawlSetID *int64) error {
	if foodbank.RSSURL == "" {
		return nil
	}
	logger := a.logger.With(zap.String("foodbank", foodbank.Slug))

	item, err := a.store.CreateCrawlItem(ctx, foodbank.ID, crawlSetID, "article", foodbank.RSSURL)
	if err != nil {
		return fmt.Errorf("failed to create crawl item: %w", err)
	}

	feed, feedErr := a.parser.ParseURLWithContext(foodbank.RSSURL, ctx)
	if feedErr == nil {
		a.storeArticles(ctx, logger, foodbank, feed)
	} else {
		logger.Warn("feed fetch failed", zap.Error(feedErr))
	}

	if err := a.store.TouchLastCrawl(ctx, foodbank.ID); err != nil {
		logger.Error("failed to stamp last_crawl", zap.Error(err))
	}
	if err := a.store.FinishCrawlItem(ctx, item.ID, nil); err != nil {
		logger.Error("failed to finish crawl item", zap.Error(err))
	}
	if feedErr != nil {
		return fmt.Errorf("failed to parse feed: %w", feedErr)
	}
	return nil
}

func (a *ArticleCrawler) storeArticles(ctx context.Context, logger *zap.Logger, foodbank *db.Foodbank, feed *gofeed.Feed) {
	for _, entry := range feed.Items {
		if entry.Title == "" {
			continue
		}
		title := entry.Title
		if len(title) > articleTitleMaxLen {
			title = title[:articleTitleMaxLen]
		}

		var published *time.Time
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed
		}

		err := a.store.UpsertArticle(ctx, &db.Article{
			FoodbankID:  foodbank.ID,
			Title:       title,
			URL:         entry.Link,
			PublishedAt: published,
		})
		if err != nil {
			logger.Error("failed to store article",
				zap.String("url", entry.Link),
				zap.Error(err))
			continue
		}
		logger.Debug("stored article", zap.String("title", title))
	}
}
