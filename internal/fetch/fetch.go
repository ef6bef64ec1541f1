// Package fetch retrieves a foodbank's current shopping-list content from
// one of several heterogeneous sources. One adapter per source kind sits
// behind the Fetcher interface; selection happens once per foodbank from
// its source URL.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SourceKind identifies which adapter retrieves a foodbank's shopping
// list.
type SourceKind string

// Known source kinds.
const (
	SourceWeb         SourceKind = "web"
	SourceFacebook    SourceKind = "facebook"
	SourceBankTheFood SourceKind = "bankthefood"
)

// DetectSourceKind resolves the adapter for a shopping-list URL.
func DetectSourceKind(sourceURL string) SourceKind {
	if strings.Contains(sourceURL, "facebook.com") {
		return SourceFacebook
	}
	if strings.Contains(sourceURL, "bankthefood.org") {
		return SourceBankTheFood
	}
	return SourceWeb
}

// Source is the per-foodbank input to a fetch.
type Source struct {
	URL          string
	FacebookPage string
}

// Result holds the fetched content in the two forms the extraction prompt
// wants: visible text and raw markup.
type Result struct {
	Text string
	HTML string
}

// ErrorKind classifies a fetch failure.
type ErrorKind string

// Fetch failure classes.
const (
	ErrTimeout    ErrorKind = "timeout"
	ErrConnection ErrorKind = "connection"
	ErrHTTPStatus ErrorKind = "http_status"
)

// Error represents a failed fetch attempt.
type Error struct {
	URL     string
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Fetcher retrieves shopping-list content for one source kind.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) (*Result, error)
}

// Config holds the settings shared by all adapters.
type Config struct {
	UserAgent string
	Timeout   time.Duration

	// Widget endpoints, overridable in tests.
	FacebookWidgetURL  string
	BankTheFoodAuthURL string
	BankTheFoodDataURL string
}

// New returns the adapter for a source kind.
func New(kind SourceKind, cfg Config) Fetcher {
	switch kind {
	case SourceFacebook:
		return &FacebookFetcher{cfg: cfg}
	case SourceBankTheFood:
		return &BankTheFoodFetcher{cfg: cfg}
	default:
		return &WebFetcher{cfg: cfg}
	}
}

func (c Config) client() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// classify turns a transport error into a fetch Error with the right
// kind.
func classify(sourceURL string, err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{URL: sourceURL, Kind: ErrTimeout, Message: "request timed out", Cause: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &Error{URL: sourceURL, Kind: ErrTimeout, Message: "request timed out", Cause: err}
	}
	return &Error{URL: sourceURL, Kind: ErrConnection, Message: "connection failed", Cause: err}
}
