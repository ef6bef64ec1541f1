package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/givefood/needwatch/internal/config"
	"github.com/givefood/needwatch/internal/db"
	"github.com/givefood/needwatch/internal/decache"
	"github.com/givefood/needwatch/internal/extract"
	"github.com/givefood/needwatch/internal/fetch"
	"github.com/givefood/needwatch/internal/logging"
	"github.com/givefood/needwatch/internal/metrics"
	"github.com/givefood/needwatch/internal/notify"
	"github.com/givefood/needwatch/internal/pipeline"
	"github.com/givefood/needwatch/internal/tasks"
	"github.com/givefood/needwatch/internal/translate"
)

// app bundles the dependencies shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *db.DB
	registry  *prometheus.Registry
	collector *metrics.Collector
}

// newApp loads configuration and connects to the database.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	store, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		registry:  registry,
		collector: metrics.NewCollector(registry),
	}, nil
}

func (a *app) close() {
	a.store.Close()
	_ = a.logger.Sync()
}

// newChecker assembles the need-check pipeline.
func (a *app) newChecker(ctx context.Context) (*pipeline.Checker, error) {
	if a.cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required to run need checks")
	}
	extractor, err := extract.NewGeminiExtractor(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel)
	if err != nil {
		return nil, err
	}

	fetcher := pipeline.NewKindFetcher(fetch.Config{
		UserAgent: a.cfg.BotUserAgent,
		Timeout:   a.cfg.FetchTimeout,
	})

	dispatcher := tasks.NewPGDispatcher(a.store, a.logger)
	publisher := pipeline.NewPublisher(dispatcher, a.cfg.Languages, a.logger)
	return pipeline.NewChecker(a.store, fetcher, extractor, publisher, a.collector, a.logger), nil
}

// newHandlers assembles the task handler set. Channels whose
// credentials are absent stay nil and their tasks become no-ops.
func (a *app) newHandlers(ctx context.Context) (*pipeline.Handlers, error) {
	var topic pipeline.TopicSender
	if a.cfg.FirebaseCredentialsJSON != "" {
		notifier, err := notify.NewTopicNotifier(ctx, []byte(a.cfg.FirebaseCredentialsJSON), a.cfg.SiteDomain, a.logger)
		if err != nil {
			return nil, err
		}
		topic = notifier
	} else {
		a.logger.Warn("firebase credentials absent, topic notifications disabled")
	}

	var webpush pipeline.FanoutSender
	if a.cfg.VAPIDPrivateKey != "" {
		webpush = notify.NewWebPushNotifier(a.store, a.cfg.VAPIDPublicKey, a.cfg.VAPIDPrivateKey,
			a.cfg.VAPIDAdminEmail, a.cfg.SiteDomain, a.logger)
	} else {
		a.logger.Warn("VAPID keys absent, web push notifications disabled")
	}

	var whatsapp pipeline.FanoutSender
	if a.cfg.WhatsAppAccessToken != "" {
		whatsapp = notify.NewWhatsAppNotifier(a.store, nil, a.cfg.WhatsAppPhoneNumberID,
			a.cfg.WhatsAppAccessToken, "", a.logger)
	} else {
		a.logger.Warn("whatsapp token absent, whatsapp notifications disabled")
	}

	var email pipeline.FanoutSender
	if a.cfg.PostmarkServerToken != "" {
		email = notify.NewEmailNotifier(a.store, nil, a.cfg.PostmarkServerToken,
			a.cfg.EmailFrom, a.cfg.SiteDomain, "", a.logger)
	} else {
		a.logger.Warn("postmark token absent, email notifications disabled")
	}

	var translator pipeline.NeedTranslator
	if a.cfg.TranslateAPIKey != "" {
		translator = translate.NewClient(nil, a.cfg.TranslateAPIKey, "")
	} else {
		a.logger.Warn("translate key absent, translations disabled")
	}

	var purge pipeline.Purger
	if a.cfg.CloudflareAPIKey != "" {
		purge = decache.NewClient(nil, a.cfg.CloudflareZoneID, a.cfg.CloudflareAPIKey,
			stripScheme(a.cfg.SiteDomain), "")
	} else {
		a.logger.Warn("cloudflare key absent, cache purges disabled")
	}

	articles := pipeline.NewArticleCrawler(a.store, a.cfg.BotUserAgent, a.logger)

	return pipeline.NewHandlers(a.store, topic, webpush, whatsapp, email,
		translator, purge, articles, a.collector, a.logger), nil
}

func stripScheme(domain string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if len(domain) > len(prefix) && domain[:len(prefix)] == prefix {
			return domain[len(prefix):]
		}
	}
	return domain
}
