// Package pipeline runs the need check: fetch a food bank's shopping
// list, extract item lists, decide whether they changed and fan the
// change out to storage and subscribers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/givefood/needwatch/internal/db"
	"github.com/givefood/needwatch/internal/detect"
	"github.com/givefood/needwatch/internal/extract"
	"github.com/givefood/needwatch/internal/fetch"
	"github.com/givefood/needwatch/internal/metrics"
)

// Store is the slice of the database layer the checker drives.
type Store interface {
	GetFoodbankBySlug(ctx context.Context, slug string) (*db.Foodbank, error)
	ListOpenFoodbanks(ctx context.Context) ([]*db.Foodbank, error)
	TouchLastNeedCheck(ctx context.Context, id uuid.UUID) error
	TouchLastCrawl(ctx context.Context, id uuid.UUID) error
	SetLatestNeed(ctx context.Context, foodbankID, needID uuid.UUID) error

	CreateNeed(ctx context.Context, n *db.Need) (*db.Need, error)
	LastPublishedNeed(ctx context.Context, foodbankID uuid.UUID) (*db.Need, error)
	RecentNonpublishedNeeds(ctx context.Context, foodbankID uuid.UUID, limit int) ([]*db.Need, error)
	MarkNeedsNonpertinent(ctx context.Context, ids []uuid.UUID) error

	CreateCrawlSet(ctx context.Context, crawlType string) (*db.CrawlSet, error)
	FinishCrawlSet(ctx context.Context, id int64) error
	CreateCrawlItem(ctx context.Context, foodbankID uuid.UUID, crawlSetID *int64, crawlType, url string) (*db.CrawlItem, error)
	FinishCrawlItem(ctx context.Context, id int64, needID *uuid.UUID) error
	CreateDiscrepancy(ctx context.Context, foodbankID uuid.UUID, kind, text, url string) error

	UpsertArticle(ctx context.Context, a *db.Article) error
}

// Fetcher retrieves a source's content with the adapter for its kind.
type Fetcher interface {
	Fetch(ctx context.Context, kind fetch.SourceKind, src fetch.Source) (*fetch.Result, error)
}

// KindFetcher dispatches to the per-kind fetch adapters.
type KindFetcher struct {
	cfg fetch.Config
}

// NewKindFetcher wraps the fetch adapters behind one entry point.
func NewKindFetcher(cfg fetch.Config) *KindFetcher {
	return &KindFetcher{cfg: cfg}
}

func (k *KindFetcher) Fetch(ctx context.Context, kind fetch.SourceKind, src fetch.Source) (*fetch.Result, error) {
	return fetch.New(kind, k.cfg).Fetch(ctx, src)
}

// CheckResult reports what one need check observed and decided.
type CheckResult struct {
	Foodbank   *db.Foodbank
	SourceKind fetch.SourceKind
	Outcome    detect.Outcome
	Need       *db.Need
	NeedText   string
	ExcessText string
	FetchErr   error
}

// Checker runs need checks for individual food banks.
type Checker struct {
	store     Store
	fetcher   Fetcher
	extractor extract.Extractor
	publisher *Publisher
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewChecker assembles a need checker.
func NewChecker(store Store, fetcher Fetcher, extractor extract.Extractor, publisher *Publisher, collector *metrics.Collector, logger *zap.Logger) *Checker {
	return &Checker{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		publisher: publisher,
		collector: collector,
		logger:    logger,
	}
}

// Check runs one need check. Every attempt leaves a CrawlItem behind
// and stamps last_need_check, whatever the outcome. Fetch failures
// record a Discrepancy instead of aborting the caller's batch; the
// error comes back in the result.
func (c *Checker) Check(ctx context.Context, foodbank *db.Foodbank, crawlSetID *int64) (*CheckResult, error) {
	kind := fetch.DetectSourceKind(foodbank.ShoppingListURL)
	logger := c.logger.With(
		zap.String("foodbank", foodbank.Slug),
		zap.String("source_kind", string(kind)))

	result := &CheckResult{Foodbank: foodbank, SourceKind: kind}

	crawlItem, err := c.store.CreateCrawlItem(ctx, foodbank.ID, crawlSetID, "need", foodbank.ShoppingListURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create crawl item: %w", err)
	}

	src := fetch.Source{
		URL:          foodbank.ShoppingListURL,
		FacebookPage: foodbank.FacebookPage,
	}

	start := time.Now()
	fetched, err := c.fetcher.Fetch(ctx, kind, src)
	c.collector.RecordFetchLatency(time.Since(start))
	if err != nil {
		result.FetchErr = err
		c.collector.RecordFetchFailure(string(kind), fetchErrorKind(err))
		logger.Warn("shopping list fetch failed", zap.Error(err))

		if dErr := c.store.CreateDiscrepancy(ctx, foodbank.ID, "website", err.Error(), foodbank.ShoppingListURL); dErr != nil {
			logger.Error("failed to record discrepancy", zap.Error(dErr))
		}
		c.finish(ctx, logger, foodbank, crawlItem, nil)
		return result, nil
	}
	c.collector.RecordFetchSuccess(string(kind))

	lists, err := c.extractor.Extract(ctx, extract.Request{
		FoodbankName: foodbank.Name,
		SourceKind:   kind,
		PageText:     fetched.Text,
		PageHTML:     fetched.HTML,
	})
	if err != nil {
		// A failed extraction reads as an empty list; the check still
		// completes so last_need_check moves forward.
		logger.Warn("extraction failed, treating as empty", zap.Error(err))
		lists = &extract.ItemLists{}
	}
	result.NeedText = lists.NeedText
	result.ExcessText = lists.ExcessText

	outcome, err := c.evaluate(ctx, foodbank, lists)
	if err != nil {
		c.finish(ctx, logger, foodbank, crawlItem, nil)
		return nil, err
	}
	result.Outcome = outcome
	c.collector.RecordDetectOutcome(outcome.Kind.String())

	switch outcome.Kind {
	case detect.Nonpertinent:
		if err := c.store.MarkNeedsNonpertinent(ctx, outcome.NonpertinentIDs); err != nil {
			logger.Error("failed to flag nonpertinent needs", zap.Error(err))
		}
		logger.Info("reading repeats a rejected one", zap.Strings("reasons", outcome.Reasons))
		c.finish(ctx, logger, foodbank, crawlItem, nil)

	case detect.Change:
		need, err := c.store.CreateNeed(ctx, &db.Need{
			FoodbankID:  &foodbank.ID,
			NeedText:    lists.NeedText,
			ExcessText:  lists.ExcessText,
			InputMethod: "ai",
			Published:   true,
		})
		if err != nil {
			c.finish(ctx, logger, foodbank, crawlItem, nil)
			return nil, fmt.Errorf("failed to create need: %w", err)
		}
		result.Need = need

		if err := c.store.SetLatestNeed(ctx, foodbank.ID, need.ID); err != nil {
			logger.Error("failed to set latest need", zap.Error(err))
		}
		logger.Info("need changed",
			zap.String("need_id", need.ID.String()),
			zap.Strings("reasons", outcome.Reasons))

		if err := c.publisher.Publish(ctx, need, foodbank); err != nil {
			logger.Error("failed to fan out need", zap.Error(err))
		}
		c.finish(ctx, logger, foodbank, crawlItem, &need.ID)

	default:
		logger.Debug("no change")
		c.finish(ctx, logger, foodbank, crawlItem, nil)
	}

	return result, nil
}

// CheckBySlug runs one need check for the named food bank.
func (c *Checker) CheckBySlug(ctx context.Context, slug string) (*CheckResult, error) {
	foodbank, err := c.store.GetFoodbankBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if foodbank == nil {
		return nil, fmt.Errorf("no foodbank with slug %q", slug)
	}
	return c.Check(ctx, foodbank, nil)
}

// evaluate loads the comparison material and runs the change detector.
func (c *Checker) evaluate(ctx context.Context, foodbank *db.Foodbank, lists *extract.ItemLists) (detect.Outcome, error) {
	lastPublished, err := c.store.LastPublishedNeed(ctx, foodbank.ID)
	if err != nil {
		return detect.Outcome{}, fmt.Errorf("failed to load last published need: %w", err)
	}
	rejected, err := c.store.RecentNonpublishedNeeds(ctx, foodbank.ID, detect.RecentRejectedLimit)
	if err != nil {
		return detect.Outcome{}, fmt.Errorf("failed to load rejected needs: %w", err)
	}

	var published *detect.Reading
	if lastPublished != nil {
		published = &detect.Reading{
			ID:         lastPublished.ID,
			NeedText:   lastPublished.NeedText,
			ExcessText: lastPublished.ExcessText,
		}
	}
	readings := make([]detect.Reading, 0, len(rejected))
	for _, n := range rejected {
		readings = append(readings, detect.Reading{
			ID:         n.ID,
			NeedText:   n.NeedText,
			ExcessText: n.ExcessText,
		})
	}

	return detect.Evaluate(lists.NeedText, lists.ExcessText, published, readings), nil
}

// finish closes the crawl item and stamps last_need_check.
func (c *Checker) finish(ctx context.Context, logger *zap.Logger, foodbank *db.Foodbank, item *db.CrawlItem, needID *uuid.UUID) {
	if err := c.store.FinishCrawlItem(ctx, item.ID, needID); err != nil {
		logger.Error("failed to finish crawl item", zap.Error(err))
	}
	if err := c.store.TouchLastNeedCheck(ctx, foodbank.ID); err != nil {
		logger.Error("failed to stamp last_need_check", zap.Error(err))
	}
}

// fetchErrorKind maps a fetch error to its metrics label.
func fetchErrorKind(err error) string {
	var fErr *fetch.Error
	if errors.As(err, &fErr) {
		return string(fErr.Kind)
	}
	return "unknown"
}
