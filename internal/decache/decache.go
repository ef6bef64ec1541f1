// Package decache purges the Cloudflare edge cache for pages whose
// content changed.
package decache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultAPIBase is the Cloudflare client API base URL.
const DefaultAPIBase = "https://api.cloudflare.com/client/v4"

// urlLimit is the maximum number of URLs Cloudflare accepts in a
// single purge request.
const urlLimit = 30

// Client purges cached pages through the Cloudflare API.
type Client struct {
	httpClient *http.Client
	apiBase    string
	zoneID     string
	apiKey     string
	domain     string
}

// NewClient creates a purge client for one Cloudflare zone. apiBase may
// be empty to use the production API.
func NewClient(httpClient *http.Client, zoneID, apiKey, domain, apiBase string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{
		httpClient: httpClient,
		apiBase:    apiBase,
		zoneID:     zoneID,
		apiKey:     apiKey,
		domain:     domain,
	}
}

// PurgeURLs purges individual paths, batching to the API's per-request
// URL limit.
func (c *Client) PurgeURLs(ctx context.Context, paths []string) error {
	full := make([]string, 0, len(paths))
	for _, path := range paths {
		full = append(full, "https://"+c.domain+path)
	}

	for start := 0; start < len(full); start += urlLimit {
		end := start + urlLimit
		if end > len(full) {
			end = len(full)
		}
		if err := c.purge(ctx, map[string]any{"files": full[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

// PurgePrefixes purges everything under the given path prefixes.
func (c *Client) PurgePrefixes(ctx context.Context, prefixes []string) error {
	full := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		full = append(full, c.domain+prefix)
	}
	return c.purge(ctx, map[string]any{"prefixes": full})
}

func (c *Client) purge(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode purge payload: %w", err)
	}

	url := fmt.Sprintf("%s/zones/%s/purge_cache", c.apiBase, c.zoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build purge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("purge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("purge returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// FoodbankPaths returns the site paths affected by a food bank's need
// change.
func FoodbankPaths(slug string) []string {
	return []string{
		"/",
		"/needs/",
		"/needs/at/" + slug + "/",
		"/api/2/foodbanks/",
		"/api/2/foodbank/" + slug + "/",
		"/api/3/foodbanks/",
		"/api/3/foodbank/" + slug + "/",
	}
}
