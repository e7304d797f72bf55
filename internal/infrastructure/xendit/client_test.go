package xendit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/config"
	apperrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"go.uber.org/zap"
)

func newTestClient(serverURL string) *Client {
	return NewClient(config.XenditConfig{
		BaseURL:            serverURL,
		SecretKey:          "xnd_development_secret",
		CallbackToken:      "callback-token",
		SuccessRedirectURL: "https://crm.example.com/paid",
		InvoiceDuration:    72 * time.Hour,
		Timeout:            2 * time.Second,
	}, zap.NewNop())
}

func TestCreateInvoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/invoices", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "xnd_development_secret", user)
		assert.Empty(t, pass)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pay-1", body["external_id"])
		assert.Equal(t, 1500000.0, body["amount"])
		assert.Equal(t, float64(72*3600), body["invoice_duration"])
		assert.Equal(t, "https://crm.example.com/paid", body["success_redirect_url"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"inv-1","external_id":"pay-1","status":"PENDING","amount":1500000,
			"currency":"IDR","invoice_url":"https://checkout.xendit.co/web/inv-1","expiry_date":"2026-05-04T10:00:00.000Z"}`))
	}))
	defer server.Close()

	invoice, err := newTestClient(server.URL).CreateInvoice(context.Background(), CreateInvoiceRequest{
		ExternalID:  "pay-1",
		Amount:      1500000,
		Description: "EO-2026-0001 down payment",
		Currency:    "IDR",
	})
	require.NoError(t, err)
	assert.Equal(t, "inv-1", invoice.ID)
	assert.Equal(t, StatusPending, invoice.Status)
	assert.Equal(t, "https://checkout.xendit.co/web/inv-1", invoice.InvoiceURL)
	require.NotNil(t, invoice.ExpiresAt)
	assert.Equal(t, 2026, invoice.ExpiresAt.Year())
	assert.Nil(t, invoice.PaidAt)
}

func TestCreateInvoiceUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_code":"API_VALIDATION_ERROR","message":"amount must be at least 10000"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).CreateInvoice(context.Background(), CreateInvoiceRequest{ExternalID: "pay-1", Amount: 1})
	require.Error(t, err)

	var extErr *apperrors.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, http.StatusBadRequest, extErr.StatusCode)
	assert.Equal(t, "amount must be at least 10000", extErr.Message)
	assert.Equal(t, http.StatusBadGateway, apperrors.GetHTTPStatus(err))
}

func TestGetAndExpireInvoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v2/invoices/inv-1":
			w.Write([]byte(`{"id":"inv-1","external_id":"pay-1","status":"SETTLED","amount":500000,"paid_at":"2026-05-01T08:30:00Z"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/invoices/inv-1/expire!":
			w.Write([]byte(`{"id":"inv-1","external_id":"pay-1","status":"EXPIRED","amount":500000}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	invoice, err := client.GetInvoice(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.True(t, invoice.IsPaid())
	require.NotNil(t, invoice.PaidAt)

	expired, err := client.ExpireInvoice(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, expired.Status)
	assert.False(t, expired.IsPaid())
}

func TestVerifyCallbackToken(t *testing.T) {
	client := newTestClient("http://unused")
	assert.True(t, client.VerifyCallbackToken("callback-token"))
	assert.False(t, client.VerifyCallbackToken("callback-tokeN"))
	assert.False(t, client.VerifyCallbackToken(""))

	unconfigured := NewClient(config.XenditConfig{}, zap.NewNop())
	assert.False(t, unconfigured.VerifyCallbackToken(""))
	assert.False(t, unconfigured.Enabled())
}

func TestParseInvoiceRejectsGarbage(t *testing.T) {
	_, err := ParseInvoice([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseInvoice([]byte(`{"status":"PAID"}`))
	assert.Error(t, err)
}
