package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/config"
	"go.uber.org/zap"
)

func newTestClient(serverURL string) *Client {
	c := NewClient(config.GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/oauth/google/callback",
		AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     serverURL + "/token",
		RevokeURL:    serverURL + "/revoke",
		UserInfoURL:  serverURL + "/userinfo",
		CalendarURL:  serverURL + "/calendar/v3",
		Timeout:      2 * time.Second,
	}, zap.NewNop())
	c.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	return c
}

func TestAuthCodeURL(t *testing.T) {
	c := newTestClient("http://unused")
	u, err := url.Parse(c.AuthCodeURL("state-123"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Contains(t, q.Get("scope"), "calendar.events")
}

func TestExchangeAndUserEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
			assert.Equal(t, "the-code", r.PostForm.Get("code"))
			w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3599,"scope":"email"}`))
		case "/userinfo":
			assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
			w.Write([]byte(`{"email":"sales@example.com","email_verified":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	token, err := c.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "at-1", token.AccessToken)
	assert.Equal(t, "rt-1", token.RefreshToken)
	assert.Equal(t, time.Date(2026, 5, 1, 10, 59, 59, 0, time.UTC), token.ExpiresAt)

	email, err := c.UserEmail(context.Background(), token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "sales@example.com", email)
}

func TestRefreshKeepsRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		w.Write([]byte(`{"access_token":"at-2","expires_in":3600}`))
	}))
	defer server.Close()

	token, err := newTestClient(server.URL).Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", token.AccessToken)
	assert.Equal(t, "rt-1", token.RefreshToken)
}

func TestExchangeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Bad Request"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Exchange(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad Request")
}

func TestRevokeIgnoresInvalidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_token"}`))
	}))
	defer server.Close()

	assert.NoError(t, newTestClient(server.URL).Revoke(context.Background(), "gone"))
}

func TestUpsertCalendarEventRecreatesMissing(t *testing.T) {
	var created map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPatch && r.URL.Path == "/calendar/v3/calendars/primary/events/old-id":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/calendar/v3/calendars/primary/events":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.Write([]byte(`{"id":"new-id"}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	id, err := newTestClient(server.URL).UpsertCalendarEvent(context.Background(), "at-1", "old-id", CalendarEvent{
		Summary:   "EO-2026-0001 Wedding",
		Date:      time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
		StartTime: "18:00",
		EndTime:   "22:00",
		TimeZone:  "Asia/Jakarta",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)

	start := created["start"].(map[string]interface{})
	assert.Equal(t, "2026-06-20T18:00:00+07:00", start["dateTime"])
	assert.Equal(t, "Asia/Jakarta", start["timeZone"])
}

func TestCalendarEventAllDay(t *testing.T) {
	body, err := CalendarEvent{Summary: "Gala", Date: time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)}.body()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"date": "2026-06-20"}, body["start"])
	assert.Equal(t, map[string]string{"date": "2026-06-21"}, body["end"])
}

func TestDeleteCalendarEventIgnoresGone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	assert.NoError(t, newTestClient(server.URL).DeleteCalendarEvent(context.Background(), "at-1", "ev-1"))
}
