// Package translate localizes published need texts via the Google
// Translate v2 REST API.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// DefaultEndpoint is the Google Translate v2 endpoint.
const DefaultEndpoint = "https://translation.googleapis.com/language/translate/v2"

// TranslationStore persists translated need texts.
type TranslationStore interface {
	UpsertTranslation(ctx context.Context, needID uuid.UUID, language, needText, excessText string) error
}

// Client calls the Google Translate v2 API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// NewClient creates a translation client. endpoint may be empty to use
// the production API.
func NewClient(httpClient *http.Client, apiKey, endpoint string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

// Translate translates text from English into the target language.
func (c *Client) Translate(ctx context.Context, language, text string) (string, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("source", "en")
	q.Set("target", language)
	q.Set("q", text)
	q.Set("format", "text")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build translate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("translate returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Data struct {
			Translations []struct {
				TranslatedText string `json:"translatedText"`
			} `json:"translations"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode translate response: %w", err)
	}
	if len(parsed.Data.Translations) == 0 {
		return "", fmt.Errorf("translate returned no translations")
	}

	return parsed.Data.Translations[0].TranslatedText, nil
}

// TranslateNeed translates a need's item lists into the target language
// and stores the result. An empty excess list stays empty rather than
// being sent to the API.
func (c *Client) TranslateNeed(ctx context.Context, store TranslationStore, needID uuid.UUID, language, needText, excessText string) error {
	translatedNeed, err := c.Translate(ctx, language, needText)
	if err != nil {
		return fmt.Errorf("failed to translate need text: %w", err)
	}

	var translatedExcess string
	if excessText != "" {
		translatedExcess, err = c.Translate(ctx, language, excessText)
		if err != nil {
			return fmt.Errorf("failed to translate excess text: %w", err)
		}
	}

	if err := store.UpsertTranslation(ctx, needID, language, translatedNeed, translatedExcess); err != nil {
		return fmt.Errorf("failed to store translation: %w", err)
	}
	return nil
}
