package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSourceKind(t *testing.T) {
	assert.Equal(t, SourceFacebook, DetectSourceKind("https://www.facebook.com/sidvalleyfoodbank"))
	assert.Equal(t, SourceBankTheFood, DetectSourceKind("https://app.bankthefood.org/foodbank/123/"))
	assert.Equal(t, SourceWeb, DetectSourceKind("https://sidvalleyfoodbank.org.uk/shopping-list"))
}

func TestWebFetcher_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TestBot/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html><body><p>Pasta</p><p>Rice</p><script>junk()</script></body></html>"))
	}))
	defer server.Close()

	f := New(SourceWeb, Config{UserAgent: "TestBot/1.0"})
	result, err := f.Fetch(context.Background(), Source{URL: server.URL})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "Pasta")
	assert.Contains(t, result.Text, "Rice")
	assert.NotContains(t, result.Text, "junk")
	assert.Contains(t, result.HTML, "<p>Pasta</p>")
}

func TestWebFetcher_HTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := New(SourceWeb, Config{})
	_, err := f.Fetch(context.Background(), Source{URL: server.URL})
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, ErrHTTPStatus, fetchErr.Kind)
	assert.Contains(t, fetchErr.Message, "503")
}

func TestWebFetcher_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	f := New(SourceWeb, Config{Timeout: 20 * time.Millisecond})
	_, err := f.Fetch(context.Background(), Source{URL: server.URL})
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, ErrTimeout, fetchErr.Kind)
}

func TestWebFetcher_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	f := New(SourceWeb, Config{})
	_, err := f.Fetch(context.Background(), Source{URL: url})
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, ErrConnection, fetchErr.Kind)
}

func TestFacebookFetcher_RequestsWidgetForPage(t *testing.T) {
	var gotHref string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHref = r.URL.Query().Get("href")
		_, _ = w.Write([]byte("<html><body>Urgently needed: Tinned Soup</body></html>"))
	}))
	defer server.Close()

	f := New(SourceFacebook, Config{FacebookWidgetURL: server.URL})
	result, err := f.Fetch(context.Background(), Source{
		URL:          "https://www.facebook.com/sidvalleyfoodbank",
		FacebookPage: "sidvalleyfoodbank",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://www.facebook.com/sidvalleyfoodbank", gotHref)
	assert.Contains(t, result.Text, "Tinned Soup")
}

func TestBankTheFoodFetcher_Handshake(t *testing.T) {
	var dataAuth string
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Status": "OK",
			"Data":   map[string]any{"Tokens": map[string]any{"Token": "tok-123"}},
		})
	}))
	defer auth.Close()

	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dataAuth = r.Header.Get("Authorization")
		var req bankTheFoodRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "4512", req.Key1)
		_, _ = w.Write([]byte(`{"Items":["Pasta","Rice"]}`))
	}))
	defer data.Close()

	f := New(SourceBankTheFood, Config{
		BankTheFoodAuthURL: auth.URL,
		BankTheFoodDataURL: data.URL,
	})
	result, err := f.Fetch(context.Background(), Source{URL: "https://app.bankthefood.org/foodbank/4512/"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", dataAuth)
	assert.Equal(t, result.Text, result.HTML)
	assert.Contains(t, result.Text, "Pasta")
}

func TestBankTheFoodFetcher_RetriesExpiredTokenOnce(t *testing.T) {
	helloCalls := 0
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		helloCalls++
		status := "EXPIRED"
		token := ""
		if helloCalls > 1 {
			status = "OK"
			token = "tok-fresh"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Status": status,
			"Data":   map[string]any{"Tokens": map[string]any{"Token": token}},
		})
	}))
	defer auth.Close()

	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer data.Close()

	f := New(SourceBankTheFood, Config{
		BankTheFoodAuthURL: auth.URL,
		BankTheFoodDataURL: data.URL,
	})
	_, err := f.Fetch(context.Background(), Source{URL: "https://app.bankthefood.org/foodbank/99/"})
	require.NoError(t, err)
	assert.Equal(t, 2, helloCalls)
}

func TestBankTheFoodFetcher_MissingKeyInURL(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Status": "OK",
			"Data":   map[string]any{"Tokens": map[string]any{"Token": "tok"}},
		})
	}))
	defer auth.Close()

	f := New(SourceBankTheFood, Config{BankTheFoodAuthURL: auth.URL})
	_, err := f.Fetch(context.Background(), Source{URL: "https://app.bankthefood.org/foodbank/none"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no foodbank key")
}

func TestBodyText_TrimsAndDropsEmptyLines(t *testing.T) {
	text, err := BodyText("<html><body>  Beans \n\n Soup </body></html>")
	require.NoError(t, err)
	assert.Equal(t, "Beans\nSoup", text)
}
