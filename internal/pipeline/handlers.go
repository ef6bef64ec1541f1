package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/givefood/needwatch/internal/db"
	"github.com/givefood/needwatch/internal/decache"
	"github.com/givefood/needwatch/internal/metrics"
	"github.com/givefood/needwatch/internal/notify"
	"github.com/givefood/needwatch/internal/tasks"
	"github.com/givefood/needwatch/internal/translate"
)

// HandlerStore is the slice of the database layer task handlers need.
type HandlerStore interface {
	GetNeedByID(ctx context.Context, id uuid.UUID) (*db.Need, error)
	GetFoodbankByID(ctx context.Context, id uuid.UUID) (*db.Foodbank, error)
	GetFoodbankBySlug(ctx context.Context, slug string) (*db.Foodbank, error)
	UpsertTranslation(ctx context.Context, needID uuid.UUID, language, needText, excessText string) error
}

// TopicSender is the FCM topic channel.
type TopicSender interface {
	Notify(ctx context.Context, need notify.Need) error
}

// FanoutSender is a channel that sends to a subscriber list.
type FanoutSender interface {
	Notify(ctx context.Context, need notify.Need) (int, error)
}

// NeedTranslator produces and stores one language's translation.
type NeedTranslator interface {
	TranslateNeed(ctx context.Context, store translate.TranslationStore, needID uuid.UUID, language, needText, excessText string) error
}

// Purger drops cached pages.
type Purger interface {
	PurgeURLs(ctx context.Context, paths []string) error
}

// FeedCrawler re-crawls one food bank's feed.
type FeedCrawler interface {
	Crawl(ctx context.Context, foodbank *db.Foodbank, crawlSetID *int64) error
}

// Handlers binds queue task names to their implementations.
type Handlers struct {
	store      HandlerStore
	topic      TopicSender
	webpush    FanoutSender
	whatsapp   FanoutSender
	email      FanoutSender
	translator NeedTranslator
	purge      Purger
	articles   FeedCrawler
	collector  *metrics.Collector
	logger     *zap.Logger
}

// NewHandlers assembles the task handler set. Any notifier may be nil
// when its channel is not configured; its tasks then succeed as no-ops
// so the rest of the fan-out is unaffected.
func NewHandlers(store HandlerStore, topic TopicSender, webpush, whatsapp, email FanoutSender, translator NeedTranslator, purge Purger, articles FeedCrawler, collector *metrics.Collector, logger *zap.Logger) *Handlers {
	return &Handlers{
		store:      store,
		topic:      topic,
		webpush:    webpush,
		whatsapp:   whatsapp,
		email:      email,
		translator: translator,
		purge:      purge,
		articles:   articles,
		collector:  collector,
		logger:     logger,
	}
}

// Register wires every handler into the pool.
func (h *Handlers) Register(pool *tasks.Pool) {
	pool.Register(tasks.NameTopicNotification, h.TopicNotification)
	pool.Register(tasks.NameWebPushNotification, h.WebPushNotification)
	pool.Register(tasks.NameWhatsAppNotification, h.WhatsAppNotification)
	pool.Register(tasks.NameEmailNotification, h.EmailNotification)
	pool.Register(tasks.NameTranslateNeed, h.TranslateNeed)
	pool.Register(tasks.NameDecacheFoodbank, h.DecacheFoodbank)
	pool.Register(tasks.NameArticleCrawl, h.ArticleCrawl)
}

// loadNeed resolves a need task argument into the notification view.
func (h *Handlers) loadNeed(ctx context.Context, args []string) (notify.Need, *db.Need, error) {
	if len(args) < 1 {
		return notify.Need{}, nil, fmt.Errorf("need id argument missing")
	}
	needID, err := uuid.Parse(args[0])
	if err != nil {
		return notify.Need{}, nil, fmt.Errorf("bad need id %q: %w", args[0], err)
	}

	need, err := h.store.GetNeedByID(ctx, needID)
	if err != nil {
		return notify.Need{}, nil, err
	}
	if need == nil {
		return notify.Need{}, nil, fmt.Errorf("no need with id %s", needID)
	}
	if need.FoodbankID == nil {
		return notify.Need{}, nil, fmt.Errorf("need %s has no foodbank", needID)
	}

	foodbank, err := h.store.GetFoodbankByID(ctx, *need.FoodbankID)
	if err != nil {
		return notify.Need{}, nil, err
	}
	if foodbank == nil {
		return notify.Need{}, nil, fmt.Errorf("no foodbank with id %s", need.FoodbankID)
	}

	return notify.Need{
		ID:           need.ID,
		FoodbankID:   foodbank.ID,
		FoodbankName: foodbank.Name,
		FoodbankSlug: foodbank.Slug,
		NeedText:     need.NeedText,
	}, need, nil
}

// TopicNotification broadcasts a need to its food bank's FCM topic.
func (h *Handlers) TopicNotification(ctx context.Context, args []string) error {
	if h.topic == nil {
		return nil
	}
	need, _, err := h.loadNeed(ctx, args)
	if err != nil {
		return err
	}
	if err := h.topic.Notify(ctx, need); err != nil {
		h.collector.RecordNotificationFailure("topic")
		return err
	}
	h.collector.RecordNotificationSent("topic")
	return nil
}

// WebPushNotification pushes a need to its subscribed browsers.
func (h *Handlers) WebPushNotification(ctx context.Context, args []string) error {
	return h.fanout(ctx, args, "webpush", h.webpush)
}

// WhatsAppNotification messages a need's WhatsApp subscribers.
func (h *Handlers) WhatsAppNotification(ctx context.Context, args []string) error {
	return h.fanout(ctx, args, "whatsapp", h.whatsapp)
}

// EmailNotification emails a need's confirmed subscribers.
func (h *Handlers) EmailNotification(ctx context.Context, args []string) error {
	return h.fanout(ctx, args, "email", h.email)
}

func (h *Handlers) fanout(ctx context.Context, args []string, channel string, sender FanoutSender) error {
	if sender == nil {
		return nil
	}
	need, _, err := h.loadNeed(ctx, args)
	if err != nil {
		return err
	}
	sent, err := sender.Notify(ctx, need)
	if err != nil {
		h.collector.RecordNotificationFailure(channel)
		return err
	}
	for i := 0; i < sent; i++ {
		h.collector.RecordNotificationSent(channel)
	}
	return nil
}

// TranslateNeed stores one language's rendering of a need.
func (h *Handlers) TranslateNeed(ctx context.Context, args []string) error {
	if h.translator == nil {
		return nil
	}
	if len(args) < 2 {
		return fmt.Errorf("translate task needs [need_id, language], got %d args", len(args))
	}
	_, need, err := h.loadNeed(ctx, args[:1])
	if err != nil {
		return err
	}
	return h.translator.TranslateNeed(ctx, h.store, need.ID, args[1], need.NeedText, need.ExcessText)
}

// DecacheFoodbank purges the pages affected by a food bank's change.
func (h *Handlers) DecacheFoodbank(ctx context.Context, args []string) error {
	if h.purge == nil {
		return nil
	}
	if len(args) < 1 {
		return fmt.Errorf("decache task needs a foodbank slug")
	}
	return h.purge.PurgeURLs(ctx, decache.FoodbankPaths(args[0]))
}

// ArticleCrawl re-crawls one food bank's article feed.
func (h *Handlers) ArticleCrawl(ctx context.Context, args []string) error {
	if h.articles == nil {
		return nil
	}
	if len(args) < 1 {
		return fmt.Errorf("article crawl task needs a foodbank slug")
	}
	foodbank, err := h.store.GetFoodbankBySlug(ctx, args[0])
	if err != nil {
		return err
	}
	if foodbank == nil {
		return fmt.Errorf("no foodbank with slug %q", args[0])
	}
	return h.articles.Crawl(ctx, foodbank, nil)
}
