package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

// Default BankTheFood widget API endpoints.
const (
	DefaultBankTheFoodAuthURL = "https://api.bankthefood.org/api/auth/hello/"
	DefaultBankTheFoodDataURL = "https://api.bankthefood.org/api/foodbank/GetWidgetFoodbank/"
)

// helloKey1 is the fixed widget identity the hello handshake expects.
const helloKey1 = `{"DeviceID":"widget_c678503d-fdfa-47d9-a1f3-7ea60fc477b2","Token":"","RefreshToken":"","AffiliateID":0,"Code":"widget"}`

var foodbankKeyPattern = regexp.MustCompile(`/(\d+)/`)

// BankTheFoodFetcher reads a foodbank's shopping list from the
// BankTheFood widget API: a hello call obtains a bearer token, then a
// lookup by the numeric key embedded in the source URL returns the
// foodbank's current list as JSON.
type BankTheFoodFetcher struct {
	cfg Config
}

type bankTheFoodRequest struct {
	Key1        string `json:"Key1"`
	HTMLVersion string `json:"HTMLVersion"`
	AppVersion  string `json:"AppVersion"`
	MainVersion string `json:"MainVersion"`
	Platform    int    `json:"Platform"`
	AffiliateID int    `json:"AffiliateID"`
	Language    string `json:"Language"`
	Country     string `json:"Country"`
	Currency    string `json:"Currency"`
	TimeZone    string `json:"TimeZone"`
}

func newBankTheFoodRequest(key1 string) bankTheFoodRequest {
	return bankTheFoodRequest{
		Key1:        key1,
		HTMLVersion: "1.0.6",
		AppVersion:  "1",
		MainVersion: "1",
		Platform:    2,
		Language:    "EN",
		Country:     "GB",
		Currency:    "GBP",
		TimeZone:    "Europe/London",
	}
}

type helloResponse struct {
	Status string `json:"Status"`
	Data   struct {
		Tokens struct {
			Token string `json:"Token"`
		} `json:"Tokens"`
	} `json:"Data"`
}

// Fetch performs the two-step handshake and returns the raw JSON response
// as both text and markup.
func (f *BankTheFoodFetcher) Fetch(ctx context.Context, src Source) (*Result, error) {
	token, err := f.token(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	match := foodbankKeyPattern.FindStringSubmatch(src.URL)
	if match == nil {
		return nil, &Error{URL: src.URL, Kind: ErrConnection, Message: "no foodbank key in source URL"}
	}

	body, err := f.post(ctx, src.URL, f.dataURL(), newBankTheFoodRequest(match[1]), token)
	if err != nil {
		return nil, err
	}
	return &Result{Text: body, HTML: body}, nil
}

// token obtains a bearer token, retrying exactly once when the hello
// endpoint reports the widget session expired.
func (f *BankTheFoodFetcher) token(ctx context.Context, sourceURL string) (string, error) {
	body, err := f.post(ctx, sourceURL, f.authURL(), newBankTheFoodRequest(helloKey1), "")
	if err != nil {
		return "", err
	}

	var hello helloResponse
	if err := json.Unmarshal([]byte(body), &hello); err != nil {
		return "", &Error{URL: sourceURL, Kind: ErrConnection, Message: "failed to parse hello response", Cause: err}
	}

	if hello.Status == "EXPIRED" {
		body, err = f.post(ctx, sourceURL, f.authURL(), newBankTheFoodRequest(helloKey1), "")
		if err != nil {
			return "", err
		}
		if err := json.Unmarshal([]byte(body), &hello); err != nil {
			return "", &Error{URL: sourceURL, Kind: ErrConnection, Message: "failed to parse hello response", Cause: err}
		}
	}

	if hello.Data.Tokens.Token == "" {
		return "", &Error{URL: sourceURL, Kind: ErrConnection, Message: "hello response carried no token"}
	}
	return hello.Data.Tokens.Token, nil
}

func (f *BankTheFoodFetcher) post(ctx context.Context, sourceURL, endpoint string, payload bankTheFoodRequest, bearer string) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", &Error{URL: sourceURL, Kind: ErrConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := f.cfg.client().Do(req)
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

func (f *BankTheFoodFetcher) authURL() string {
	if f.cfg.BankTheFoodAuthURL != "" {
		return f.cfg.BankTheFoodAuthURL
	}
	return DefaultBankTheFoodAuthURL
}

func (f *BankTheFoodFetcher) dataURL() string {
	if f.cfg.BankTheFoodDataURL != "" {
		return f.cfg.BankTheFoodDataURL
	}
	return DefaultBankTheFoodDataURL
}
