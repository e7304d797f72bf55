// Package google proxies the OAuth consent flow and the Calendar API for connected users.
package google

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-resty/resty/v2"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/config"
	apperrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const serviceName = "google"

// Scopes requested at consent time
var Scopes = []string{
	"openid",
	"email",
	"https://www.googleapis.com/auth/calendar.events",
}

type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
}

// CalendarEvent is an event on the user's primary calendar. Without start and end
// times it is created as an all-day event.
type CalendarEvent struct {
	Summary     string
	Description string
	Location    string
	Date        time.Time
	StartTime   string
	EndTime     string
	TimeZone    string
}

type Client struct {
	httpClient *resty.Client
	cfg        config.GoogleConfig
	logger     *zap.Logger
	now        func() time.Time
}

func NewClient(cfg config.GoogleConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{httpClient: client, cfg: cfg, logger: logger, now: time.Now}
}

// Enabled reports whether OAuth client credentials are configured.
func (c *Client) Enabled() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// AuthCodeURL builds the consent URL. Offline access with a forced prompt makes Google
// return a refresh token on every connect.
func (c *Client) AuthCodeURL(state string) string {
	v := url.Values{}
	v.Set("client_id", c.cfg.ClientID)
	v.Set("redirect_uri", c.cfg.RedirectURL)
	v.Set("response_type", "code")
	v.Set("scope", strings.Join(Scopes, " "))
	v.Set("access_type", "offline")
	v.Set("prompt", "consent")
	v.Set("include_granted_scopes", "true")
	v.Set("state", state)

	sep := "?"
	if strings.Contains(c.cfg.AuthURL, "?") {
		sep = "&"
	}
	return c.cfg.AuthURL + sep + v.Encode()
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	return c.tokenRequest(ctx, map[string]string{
		"code":          code,
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"redirect_uri":  c.cfg.RedirectURL,
		"grant_type":    "authorization_code",
	})
}

// Refresh obtains a new access token. The returned RefreshToken is the one passed in
// unless Google rotated it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	token, err := c.tokenRequest(ctx, map[string]string{
		"refresh_token": refreshToken,
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"grant_type":    "refresh_token",
	})
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}

func (c *Client) tokenRequest(ctx context.Context, form map[string]string) (*Token, error) {
	resp, err := c.httpClient.R().SetContext(ctx).SetFormData(form).Post(c.cfg.TokenURL)
	if err != nil {
		return nil, apperrors.NewExternalServiceError(serviceName, 0, err.Error())
	}
	if resp.IsError() {
		return nil, c.upstreamError("token", resp)
	}

	doc := gjson.ParseBytes(resp.Body())
	accessToken := doc.Get("access_token").String()
	if accessToken == "" {
		return nil, apperrors.NewExternalServiceError(serviceName, resp.StatusCode(), "token response without access_token")
	}
	expiresIn := doc.Get("expires_in").Int()
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return &Token{
		AccessToken:  accessToken,
		RefreshToken: doc.Get("refresh_token").String(),
		ExpiresAt:    c.now().UTC().Add(time.Duration(expiresIn) * time.Second),
		Scope:        doc.Get("scope").String(),
	}, nil
}

// Revoke invalidates a token at Google. A token Google no longer knows counts as revoked.
func (c *Client) Revoke(ctx context.Context, token string) error {
	resp, err := c.httpClient.R().SetContext(ctx).SetFormData(map[string]string{"token": token}).Post(c.cfg.RevokeURL)
	if err != nil {
		return apperrors.NewExternalServiceError(serviceName, 0, err.Error())
	}
	if resp.StatusCode() == http.StatusBadRequest && gjson.GetBytes(resp.Body(), "error").String() == "invalid_token" {
		return nil
	}
	if resp.IsError() {
		return c.upstreamError("revoke", resp)
	}
	return nil
}

// UserEmail reads the account email of the token owner.
func (c *Client) UserEmail(ctx context.Context, accessToken string) (string, error) {
	resp, err := c.httpClient.R().SetContext(ctx).SetAuthToken(accessToken).Get(c.cfg.UserInfoURL)
	if err != nil {
		return "", apperrors.NewExternalServiceError(serviceName, 0, err.Error())
	}
	if resp.IsError() {
		return "", c.upstreamError("userinfo", resp)
	}
	return gjson.GetBytes(resp.Body(), "email").String(), nil
}

// UpsertCalendarEvent creates the event, or patches it when eventID is set. A patch
// against an event deleted on Google's side recreates it. Returns the event id.
func (c *Client) UpsertCalendarEvent(ctx context.Context, accessToken, eventID string, ev CalendarEvent) (string, error) {
	body, err := ev.body()
	if err != nil {
		return "", err
	}
	base := strings.TrimRight(c.cfg.CalendarURL, "/") + "/calendars/primary/events"

	if eventID != "" {
		resp, err := c.httpClient.R().SetContext(ctx).SetAuthToken(accessToken).SetBody(body).
			SetPathParam("id", eventID).Patch(base + "/{id}")
		if err != nil {
			return "", apperrors.NewExternalServiceError(serviceName, 0, err.Error())
		}
		switch {
		case resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusGone:
			c.logger.Info("calendar event missing, recreating", zap.String("event_id", eventID))
		case resp.IsError():
			return "", c.upstreamError("calendar", resp)
		default:
			return gjson.GetBytes(resp.Body(), "id").String(), nil
		}
	}

	resp, err := c.httpClient.R().SetContext(ctx).SetAuthToken(accessToken).SetBody(body).Post(base)
	if err != nil {
		return "", apperrors.NewExternalServiceError(serviceName, 0, err.Error())
	}
	if resp.IsError() {
		return "", c.upstreamError("calendar", resp)
	}
	return gjson.GetBytes(resp.Body(), "id").String(), nil
}

// DeleteCalendarEvent removes an event; already-deleted events are ignored.
func (c *Client) DeleteCalendarEvent(ctx context.Context, accessToken, eventID string) error {
	base := strings.TrimRight(c.cfg.CalendarURL, "/") + "/calendars/primary/events/{id}"
	resp, err := c.httpClient.R().SetContext(ctx).SetAuthToken(accessToken).SetPathParam("id", eventID).Delete(base)
	if err != nil {
		return apperrors.NewExternalServiceError(serviceName, 0, err.Error())
	}
	if resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusGone {
		return nil
	}
	if resp.IsError() {
		return c.upstreamError("calendar", resp)
	}
	return nil
}

func (c *Client) upstreamError(op string, resp *resty.Response) error {
	body := resp.Body()
	message := gjson.GetBytes(body, "error_description").String()
	if message == "" {
		message = gjson.GetBytes(body, "error.message").String()
	}
	if message == "" {
		message = gjson.GetBytes(body, "error").String()
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode())
	}
	c.logger.Warn("google returned error",
		zap.String("operation", op),
		zap.Int("status_code", resp.StatusCode()),
		zap.String("message", message),
	)
	return apperrors.NewExternalServiceError(serviceName, resp.StatusCode(), op+": "+message)
}

func (ev CalendarEvent) body() (map[string]interface{}, error) {
	body := map[string]interface{}{
		"summary":     ev.Summary,
		"description": ev.Description,
		"location":    ev.Location,
	}
	date := ev.Date.Format("2006-01-02")
	if ev.StartTime == "" || ev.EndTime == "" {
		body["start"] = map[string]string{"date": date}
		body["end"] = map[string]string{"date": ev.Date.AddDate(0, 0, 1).Format("2006-01-02")}
		return body, nil
	}

	tz := ev.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("calendar time zone %q: %w", tz, err)
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+ev.StartTime, loc)
	if err != nil {
		return nil, fmt.Errorf("calendar start time %q: %w", ev.StartTime, err)
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", date+" "+ev.EndTime, loc)
	if err != nil {
		return nil, fmt.Errorf("calendar end time %q: %w", ev.EndTime, err)
	}
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	body["start"] = map[string]string{"dateTime": start.Format(time.RFC3339), "timeZone": tz}
	body["end"] = map[string]string{"dateTime": end.Format(time.RFC3339), "timeZone": tz}
	return body, nil
}
