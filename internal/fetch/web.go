package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// WebFetcher retrieves a plain shopping-list web page and strips its
// markup down to visible body text.
type WebFetcher struct {
	cfg Config
}

// Fetch issues a GET against the shopping-list URL.
func (f *WebFetcher) Fetch(ctx context.Context, src Source) (*Result, error) {
	html, err := f.cfg.get(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	text, err := BodyText(html)
	if err != nil {
		// Unparseable markup still has a raw form the model can read.
		text = html
	}
	return &Result{Text: text, HTML: html}, nil
}

// get performs a GET with the bot user agent and bounded timeout, shared
// by the web and facebook adapters.
func (c Config) get(ctx context.Context, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", &Error{URL: sourceURL, Kind: ErrConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.client().Do(req)
	if err != nil {
		return "", classify(sourceURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{URL: sourceURL, Kind: ErrConnection, Message: "failed to read response body", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &Error{URL: sourceURL, Kind: ErrHTTPStatus, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	return string(body), nil
}

// BodyText parses HTML and returns the visible text of its body element.
func BodyText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		return "", fmt.Errorf("no body element")
	}
	return cleanWhitespace(body.Text()), nil
}

func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
