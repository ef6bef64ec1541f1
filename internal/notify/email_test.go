package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/givefood/needwatch/internal/db"
)

type fakeEmailStore struct {
	subs []*db.EmailSubscriber
}

func (s *fakeEmailStore) ListConfirmedEmailSubscribers(_ context.Context, _ uuid.UUID) ([]*db.EmailSubscriber, error) {
	return s.subs, nil
}

func newEmailNotifier(store EmailStore, srv *httptest.Server) *EmailNotifier {
	return NewEmailNotifier(store, srv.Client(), "pm-token", "mail@givefood.org.uk",
		"https://www.givefood.org.uk", srv.URL, zap.NewNop())
}

func TestEmailSend_BroadcastWithUnsubscribeHeaders(t *testing.T) {
	var got postmarkEmail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pm-token", r.Header.Get("X-Postmark-Server-Token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ErrorCode":0}`))
	}))
	defer srv.Close()

	notifier := newEmailNotifier(&fakeEmailStore{}, srv)
	err := notifier.Send(context.Background(), Email{
		To:             "someone@example.com",
		Subject:        "subject",
		TextBody:       "body",
		Broadcast:      true,
		UnsubscribeURL: "https://www.givefood.org.uk/needs/at/sid-valley/updates/unsubscribe/?key=abc",
	})
	require.NoError(t, err)

	assert.Equal(t, "mail@givefood.org.uk", got.From)
	assert.Equal(t, "someone@example.com", got.To)
	assert.Equal(t, "broadcast", got.MessageStream)
	require.Len(t, got.Headers, 2)
	assert.Equal(t, "List-Unsubscribe", got.Headers[0].Name)
	assert.Equal(t, "<https://www.givefood.org.uk/needs/at/sid-valley/updates/unsubscribe/?key=abc>", got.Headers[0].Value)
	assert.Equal(t, "List-Unsubscribe-Post", got.Headers[1].Name)
	assert.Equal(t, "List-Unsubscribe=One-Click", got.Headers[1].Value)
}

func TestEmailSend_TransactionalStream(t *testing.T) {
	var got postmarkEmail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ErrorCode":0}`))
	}))
	defer srv.Close()

	notifier := newEmailNotifier(&fakeEmailStore{}, srv)
	err := notifier.Send(context.Background(), Email{To: "someone@example.com", Subject: "s", TextBody: "b"})
	require.NoError(t, err)

	assert.Equal(t, "outbound", got.MessageStream)
	assert.Empty(t, got.Headers)
}

func TestEmailSend_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid email"}`))
	}))
	defer srv.Close()

	notifier := newEmailNotifier(&fakeEmailStore{}, srv)
	err := notifier.Send(context.Background(), Email{To: "bad", Subject: "s", TextBody: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 422")
	assert.Contains(t, err.Error(), "Invalid email")
}

func TestEmailNotify_SendsToEachSubscriber(t *testing.T) {
	var sentTo []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload postmarkEmail
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		sentTo = append(sentTo, payload.To)
		assert.Contains(t, payload.TextBody, "Tinned Tomatoes")
		assert.Contains(t, payload.TextBody, "https://www.givefood.org.uk/needs/at/sid-valley/")
		w.Write([]byte(`{"ErrorCode":0}`))
	}))
	defer srv.Close()

	store := &fakeEmailStore{subs: []*db.EmailSubscriber{
		{ID: 1, Email: "a@example.com", UnsubKey: "key-a"},
		{ID: 2, Email: "b@example.com", UnsubKey: "key-b"},
	}}
	notifier := newEmailNotifier(store, srv)

	sent, err := notifier.Notify(context.Background(), newTestNeed())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, sentTo)
}

func TestEmailNotify_FailureDoesNotStopOthers(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ErrorCode":0}`))
	}))
	defer srv.Close()

	store := &fakeEmailStore{subs: []*db.EmailSubscriber{
		{ID: 1, Email: "a@example.com", UnsubKey: "key-a"},
		{ID: 2, Email: "b@example.com", UnsubKey: "key-b"},
	}}
	notifier := newEmailNotifier(store, srv)

	sent, err := notifier.Notify(context.Background(), newTestNeed())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestBuildBodies(t *testing.T) {
	text, html := buildBodies(newTestNeed(), "https://www.givefood.org.uk",
		"https://www.givefood.org.uk/needs/at/sid-valley/updates/unsubscribe/?key=abc")

	assert.Contains(t, text, "Sid Valley is asking for:")
	assert.Contains(t, text, "Tinned Tomatoes\nPasta\nRice\nUHT Milk")
	assert.Contains(t, text, "Unsubscribe: https://www.givefood.org.uk/needs/at/sid-valley/updates/unsubscribe/?key=abc")

	assert.Contains(t, html, "<li>Tinned Tomatoes</li>")
	assert.Contains(t, html, `<a href="https://www.givefood.org.uk/needs/at/sid-valley/">`)
}
