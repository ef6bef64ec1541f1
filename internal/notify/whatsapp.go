package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/givefood/needwatch/internal/db"
)

// DefaultWhatsAppAPIBase is the Meta graph API base URL.
const DefaultWhatsAppAPIBase = "https://graph.facebook.com/v24.0"

// whatsAppTemplateName is the pre-approved need notification template.
const whatsAppTemplateName = "foodbankneed2"

// WhatsAppStore lists subscribers and records successful sends.
type WhatsAppStore interface {
	ListWhatsAppSubscribers(ctx context.Context, foodbankID uuid.UUID) ([]*db.WhatsAppSubscriber, error)
	TouchWhatsAppLastNotified(ctx context.Context, id int64) error
}

// WhatsAppNotifier sends need notifications as WhatsApp template
// messages through the Meta graph API.
type WhatsAppNotifier struct {
	store         WhatsAppStore
	httpClient    *http.Client
	apiBase       string
	phoneNumberID string
	accessToken   string
	logger        *zap.Logger
}

// NewWhatsAppNotifier creates a notifier for one WhatsApp business
// phone number. apiBase may be empty to use the production API.
func NewWhatsAppNotifier(store WhatsAppStore, httpClient *http.Client, phoneNumberID, accessToken, apiBase string, logger *zap.Logger) *WhatsAppNotifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if apiBase == "" {
		apiBase = DefaultWhatsAppAPIBase
	}
	return &WhatsAppNotifier{
		store:         store,
		httpClient:    httpClient,
		apiBase:       apiBase,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		logger:        logger,
	}
}

type whatsAppParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type whatsAppComponent struct {
	Type       string              `json:"type"`
	SubType    string              `json:"sub_type,omitempty"`
	Index      string              `json:"index,omitempty"`
	Parameters []whatsAppParameter `json:"parameters"`
}

type whatsAppTemplate struct {
	Name       string              `json:"name"`
	Language   map[string]string   `json:"language"`
	Components []whatsAppComponent `json:"components"`
}

type whatsAppMessage struct {
	MessagingProduct string            `json:"messaging_product"`
	To               string            `json:"to"`
	Type             string            `json:"type"`
	Template         *whatsAppTemplate `json:"template,omitempty"`
}

// BuildWhatsAppMessage assembles the template message for one
// subscriber. The template takes the food bank name, the first three
// items and the slug for the call-to-action button.
func BuildWhatsAppMessage(need Need, phoneNumber string) whatsAppMessage {
	items := firstItems(need.Items(), 3)

	return whatsAppMessage{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(phoneNumber, "+"),
		Type:             "template",
		Template: &whatsAppTemplate{
			Name:     whatsAppTemplateName,
			Language: map[string]string{"code": "en"},
			Components: []whatsAppComponent{
				{
					Type: "header",
					Parameters: []whatsAppParameter{
						{Type: "text", Text: need.FoodbankName},
					},
				},
				{
					Type: "body",
					Parameters: []whatsAppParameter{
						{Type: "text", Text: need.FoodbankName},
						{Type: "text", Text: items[0]},
						{Type: "text", Text: items[1]},
						{Type: "text", Text: items[2]},
					},
				},
				{
					Type:    "button",
					SubType: "url",
					Index:   "0",
					Parameters: []whatsAppParameter{
						{Type: "text", Text: need.FoodbankSlug},
					},
				},
			},
		},
	}
}

// Notify sends the template to every subscriber, stamping
// last_notified on each success. One subscriber failing never stops
// the rest. Returns the number of successful sends.
func (w *WhatsAppNotifier) Notify(ctx context.Context, need Need) (int, error) {
	subs, err := w.store.ListWhatsAppSubscribers(ctx, need.FoodbankID)
	if err != nil {
		return 0, fmt.Errorf("failed to list whatsapp subscribers: %w", err)
	}

	sent := 0
	for _, sub := range subs {
		if err := w.send(ctx, BuildWhatsAppMessage(need, sub.PhoneNumber)); err != nil {
			w.logger.Error("failed to send whatsapp notification",
				zap.Int64("subscriber_id", sub.ID),
				zap.Error(err))
			continue
		}
		if err := w.store.TouchWhatsAppLastNotified(ctx, sub.ID); err != nil {
			w.logger.Error("failed to stamp whatsapp last_notified",
				zap.Int64("subscriber_id", sub.ID),
				zap.Error(err))
		}
		sent++
	}

	w.logger.Info("sent whatsapp notifications",
		zap.String("need_id", need.ID.String()),
		zap.Int("sent", sent),
		zap.Int("subscribers", len(subs)))
	return sent, nil
}

func (w *WhatsAppNotifier) send(ctx context.Context, msg whatsAppMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode whatsapp message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", w.apiBase, w.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.accessToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
