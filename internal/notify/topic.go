package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// topicBodyMaxBytes keeps the notification body comfortably inside
// FCM's 4KB payload limit.
const topicBodyMaxBytes = 4000

// messageSender is the slice of the FCM messaging client we use.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// TopicNotifier broadcasts need changes to each food bank's FCM topic.
type TopicNotifier struct {
	sender     messageSender
	siteDomain string
	logger     *zap.Logger
}

// NewTopicNotifier creates a notifier from Firebase service account
// JSON credentials.
func NewTopicNotifier(ctx context.Context, serviceAccountJSON []byte, siteDomain string, logger *zap.Logger) (*TopicNotifier, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(serviceAccountJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &TopicNotifier{sender: client, siteDomain: siteDomain, logger: logger}, nil
}

// BuildTopicMessage assembles the FCM message for a need. Exposed so
// the packing behaviour is testable without a Firebase project.
func BuildTopicMessage(need Need, siteDomain string) *messaging.Message {
	title := need.Title()
	body := packItemsBytes(need.Items(), topicBodyMaxBytes)
	foodbankURL := need.FoodbankURL(siteDomain)

	return &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"foodbank_slug": need.FoodbankSlug,
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: title,
				Body:  body,
				Icon:  notificationIcon,
				Badge: notificationIcon,
			},
			FCMOptions: &messaging.WebpushFCMOptions{
				Link: foodbankURL,
			},
			Data: map[string]string{
				"foodbank_slug": need.FoodbankSlug,
				"click_action":  foodbankURL,
			},
		},
		Topic: "foodbank-" + need.FoodbankID.String(),
	}
}

// Notify sends the need to the food bank's topic.
func (t *TopicNotifier) Notify(ctx context.Context, need Need) error {
	msg := BuildTopicMessage(need, t.siteDomain)

	id, err := t.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send topic notification: %w", err)
	}
	t.logger.Info("sent topic notification",
		zap.String("need_id", need.ID.String()),
		zap.String("topic", msg.Topic),
		zap.String("message_id", id))
	return nil
}
