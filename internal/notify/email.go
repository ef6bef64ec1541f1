package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/givefood/needwatch/internal/db"
)

// DefaultPostmarkAPIURL is the Postmark single-send endpoint.
const DefaultPostmarkAPIURL = "https://api.postmarkapp.com/email"

// subjectEmoji is the pool a notification subject's emoji is drawn
// from.
var subjectEmoji = []string{
	"🍝", "🍲", "🍛", "🥫", "🌽", "🥕", "🥔", "🍚", "🍽️", "🍴",
	"🥘", "🍅", "🫘", "🫛", "🥄", "🥣", "🥧",
}

// EmailStore lists the subscribers a need notification goes to.
type EmailStore interface {
	ListConfirmedEmailSubscribers(ctx context.Context, foodbankID uuid.UUID) ([]*db.EmailSubscriber, error)
}

// Email is one outbound message.
type Email struct {
	To             string
	Subject        string
	TextBody       string
	HTMLBody       string
	Broadcast      bool
	UnsubscribeURL string
}

// EmailNotifier sends need notifications through Postmark.
type EmailNotifier struct {
	store       EmailStore
	httpClient  *http.Client
	apiURL      string
	serverToken string
	from        string
	siteDomain  string
	logger      *zap.Logger
}

// NewEmailNotifier creates a notifier sending from the given address.
// apiURL may be empty to use the production API.
func NewEmailNotifier(store EmailStore, httpClient *http.Client, serverToken, from, siteDomain, apiURL string, logger *zap.Logger) *EmailNotifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if apiURL == "" {
		apiURL = DefaultPostmarkAPIURL
	}
	return &EmailNotifier{
		store:       store,
		httpClient:  httpClient,
		apiURL:      apiURL,
		serverToken: serverToken,
		from:        from,
		siteDomain:  siteDomain,
		logger:      logger,
	}
}

// Subject returns the notification subject line. Counts up to nine are
// spelled out.
func Subject(need Need) string {
	emoji := subjectEmoji[rand.IntN(len(subjectEmoji))]
	count := len(need.Items())
	return fmt.Sprintf("%s %s needs %s items", emoji, need.FoodbankName, spellCount(count))
}

// UnsubscribeURL returns the one-click unsubscribe link for a
// subscriber.
func UnsubscribeURL(siteDomain, slug, unsubKey string) string {
	return fmt.Sprintf("%s/needs/at/%s/updates/unsubscribe/?key=%s", siteDomain, slug, unsubKey)
}

// buildBodies renders the plain text and HTML notification bodies.
func buildBodies(need Need, siteDomain, unsubscribeURL string) (string, string) {
	items := need.Items()
	foodbankURL := need.FoodbankURL(siteDomain)

	text := fmt.Sprintf("%s is asking for:\n\n%s\n\nFind out more, including how to donate, at %s\n\nUnsubscribe: %s\n",
		need.FoodbankName, itemLines(items), foodbankURL, unsubscribeURL)

	var html bytes.Buffer
	fmt.Fprintf(&html, "<p>%s is asking for:</p><ul>", need.FoodbankName)
	for _, item := range items {
		fmt.Fprintf(&html, "<li>%s</li>", item)
	}
	fmt.Fprintf(&html, "</ul><p><a href=\"%s\">Find out more, including how to donate</a></p>", foodbankURL)
	fmt.Fprintf(&html, "<p><a href=\"%s\">Unsubscribe</a></p>", unsubscribeURL)

	return text, html.String()
}

// Notify emails every confirmed subscriber. One address failing never
// stops the rest. Returns the number of successful sends.
func (e *EmailNotifier) Notify(ctx context.Context, need Need) (int, error) {
	subs, err := e.store.ListConfirmedEmailSubscribers(ctx, need.FoodbankID)
	if err != nil {
		return 0, fmt.Errorf("failed to list email subscribers: %w", err)
	}

	subject := Subject(need)

	sent := 0
	for _, sub := range subs {
		unsubURL := UnsubscribeURL(e.siteDomain, need.FoodbankSlug, sub.UnsubKey)
		text, html := buildBodies(need, e.siteDomain, unsubURL)

		err := e.Send(ctx, Email{
			To:             sub.Email,
			Subject:        subject,
			TextBody:       text,
			HTMLBody:       html,
			Broadcast:      true,
			UnsubscribeURL: unsubURL,
		})
		if err != nil {
			e.logger.Error("failed to send email notification",
				zap.Int64("subscriber_id", sub.ID),
				zap.Error(err))
			continue
		}
		sent++
	}

	e.logger.Info("sent email notifications",
		zap.String("need_id", need.ID.String()),
		zap.Int("sent", sent),
		zap.Int("subscribers", len(subs)))
	return sent, nil
}

type postmarkHeader struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type postmarkEmail struct {
	From          string           `json:"From"`
	To            string           `json:"To"`
	Subject       string           `json:"Subject"`
	TextBody      string           `json:"TextBody"`
	HtmlBody      string           `json:"HtmlBody,omitempty"`
	MessageStream string           `json:"MessageStream"`
	Headers       []postmarkHeader `json:"Headers,omitempty"`
}

// Send delivers one email through Postmark. Broadcast mail goes on the
// broadcast message stream and carries RFC 8058 one-click unsubscribe
// headers.
func (e *EmailNotifier) Send(ctx context.Context, email Email) error {
	stream := "outbound"
	if email.Broadcast {
		stream = "broadcast"
	}

	payload := postmarkEmail{
		From:          e.from,
		To:            email.To,
		Subject:       email.Subject,
		TextBody:      email.TextBody,
		HtmlBody:      email.HTMLBody,
		MessageStream: stream,
	}
	if email.UnsubscribeURL != "" {
		payload.Headers = []postmarkHeader{
			{Name: "List-Unsubscribe", Value: "<" + email.UnsubscribeURL + ">"},
			{Name: "List-Unsubscribe-Post", Value: "List-Unsubscribe=One-Click"},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", e.serverToken)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("postmark returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
