package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/givefood/needwatch/internal/db"
)

// webPushBodyMaxChars keeps the push body short enough for every
// browser's notification UI.
const webPushBodyMaxChars = 200

// WebPushStore lists and prunes browser push subscriptions.
type WebPushStore interface {
	ListWebPushSubscriptions(ctx context.Context, foodbankID uuid.UUID) ([]*db.WebPushSubscription, error)
	DeleteWebPushSubscription(ctx context.Context, id int64) error
}

// webPushPayload is the JSON the service worker receives.
type webPushPayload struct {
	Head string `json:"head"`
	Body string `json:"body"`
	Icon string `json:"icon"`
	URL  string `json:"url"`
	Tag  string `json:"tag"`
}

// pushFunc sends one encrypted push message. Swappable in tests.
type pushFunc func(ctx context.Context, message []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)

// WebPushNotifier sends VAPID web push notifications directly to
// browser endpoints.
type WebPushNotifier struct {
	store      WebPushStore
	push       pushFunc
	publicKey  string
	privateKey string
	adminEmail string
	siteDomain string
	logger     *zap.Logger
}

// NewWebPushNotifier creates a notifier signing with the given VAPID
// key pair.
func NewWebPushNotifier(store WebPushStore, publicKey, privateKey, adminEmail, siteDomain string, logger *zap.Logger) *WebPushNotifier {
	return &WebPushNotifier{
		store:      store,
		push:       webpush.SendNotificationWithContext,
		publicKey:  publicKey,
		privateKey: privateKey,
		adminEmail: adminEmail,
		siteDomain: siteDomain,
		logger:     logger,
	}
}

// BuildWebPushPayload renders the push payload JSON for a need.
func BuildWebPushPayload(need Need, siteDomain string) ([]byte, error) {
	payload := webPushPayload{
		Head: need.Title(),
		Body: packItemsChars(need.Items(), webPushBodyMaxChars),
		Icon: notificationIcon,
		URL:  need.FoodbankURL(siteDomain),
		Tag:  "need-" + need.ID.String(),
	}
	return json.Marshal(payload)
}

// Notify pushes the need to every subscribed browser. A failure on one
// subscription never stops the rest; endpoints that report themselves
// gone are deleted. Returns the number of successful sends.
func (w *WebPushNotifier) Notify(ctx context.Context, need Need) (int, error) {
	subs, err := w.store.ListWebPushSubscriptions(ctx, need.FoodbankID)
	if err != nil {
		return 0, fmt.Errorf("failed to list web push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return 0, nil
	}

	payload, err := BuildWebPushPayload(need, w.siteDomain)
	if err != nil {
		return 0, fmt.Errorf("failed to build web push payload: %w", err)
	}

	options := &webpush.Options{
		Subscriber:      "mailto:" + w.adminEmail,
		VAPIDPublicKey:  w.publicKey,
		VAPIDPrivateKey: w.privateKey,
		TTL:             60,
	}

	sent := 0
	for _, sub := range subs {
		target := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}

		resp, err := w.push(ctx, payload, target, options)
		if err != nil {
			w.logger.Error("failed to send web push",
				zap.Int64("subscription_id", sub.ID),
				zap.Error(err))
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			if err := w.store.DeleteWebPushSubscription(ctx, sub.ID); err != nil {
				w.logger.Error("failed to delete dead web push subscription",
					zap.Int64("subscription_id", sub.ID),
					zap.Error(err))
				continue
			}
			w.logger.Info("deleted dead web push subscription",
				zap.Int64("subscription_id", sub.ID),
				zap.Int("status", resp.StatusCode))
		case resp.StatusCode >= 400:
			w.logger.Error("web push rejected",
				zap.Int64("subscription_id", sub.ID),
				zap.Int("status", resp.StatusCode))
		default:
			sent++
		}
	}

	w.logger.Info("sent web push notifications",
		zap.String("need_id", need.ID.String()),
		zap.Int("sent", sent),
		zap.Int("subscriptions", len(subs)))
	return sent, nil
}
