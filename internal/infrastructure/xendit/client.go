// Package xendit is a small client for the Xendit invoice API and its callbacks.
package xendit

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/config"
	apperrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const serviceName = "xendit"

// Invoice statuses reported by Xendit
const (
	StatusPending = "PENDING"
	StatusPaid    = "PAID"
	StatusSettled = "SETTLED"
	StatusExpired = "EXPIRED"
)

type Invoice struct {
	ID         string
	ExternalID string
	Status     string
	Amount     float64
	Currency   string
	InvoiceURL string
	ExpiresAt  *time.Time
	PaidAt     *time.Time
}

// IsPaid reports whether the invoice reached a paid state.
func (i *Invoice) IsPaid() bool {
	return i.Status == StatusPaid || i.Status == StatusSettled
}

type CreateInvoiceRequest struct {
	ExternalID         string  `json:"external_id"`
	Amount             float64 `json:"amount"`
	PayerEmail         string  `json:"payer_email,omitempty"`
	Description        string  `json:"description"`
	Currency           string  `json:"currency"`
	InvoiceDuration    int     `json:"invoice_duration,omitempty"`
	SuccessRedirectURL string  `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string  `json:"failure_redirect_url,omitempty"`
}

type Client struct {
	httpClient *resty.Client
	cfg        config.XenditConfig
	logger     *zap.Logger
}

func NewClient(cfg config.XenditConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetBasicAuth(cfg.SecretKey, "").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// only reads are retried; a repeated create would open a second invoice
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{httpClient: client, cfg: cfg, logger: logger}
}

// Enabled reports whether a secret key is configured.
func (c *Client) Enabled() bool {
	return c.cfg.SecretKey != ""
}

// CreateInvoice creates a hosted invoice. Redirect URLs and duration default from configuration.
func (c *Client) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	if req.SuccessRedirectURL == "" {
		req.SuccessRedirectURL = c.cfg.SuccessRedirectURL
	}
	if req.FailureRedirectURL == "" {
		req.FailureRedirectURL = c.cfg.FailureRedirectURL
	}
	if req.InvoiceDuration == 0 && c.cfg.InvoiceDuration > 0 {
		req.InvoiceDuration = int(c.cfg.InvoiceDuration.Seconds())
	}

	resp, err := c.httpClient.R().SetContext(ctx).SetBody(req).Post("/v2/invoices")
	if err != nil {
		c.logger.Error("xendit create invoice failed", zap.String("external_id", req.ExternalID), zap.Error(err))
		return nil, apperrors.NewExternalServiceError(serviceName, 0, err.Error())
	}
	if resp.IsError() {
		return nil, c.upstreamError(resp)
	}

	invoice, err := ParseInvoice(resp.Body())
	if err != nil {
		return nil, err
	}
	c.logger.Info("xendit invoice created",
		zap.String("invoice_id", invoice.ID),
		zap.String("external_id", invoice.ExternalID),
		zap.Float64("amount", invoice.Amount),
	)
	return invoice, nil
}

func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	resp, err := c.httpClient.R().SetContext(ctx).SetPathParam("id", invoiceID).Get("/v2/invoices/{id}")
	if err != nil {
		return nil, apperrors.NewExternalServiceError(serviceName, 0, err.Error())
	}
	if resp.IsError() {
		return nil, c.upstreamError(resp)
	}
	return ParseInvoice(resp.Body())
}

// ExpireInvoice cancels an unpaid invoice.
func (c *Client) ExpireInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	resp, err := c.httpClient.R().SetContext(ctx).SetPathParam("id", invoiceID).Post("/invoices/{id}/expire!")
	if err != nil {
		return nil, apperrors.NewExternalServiceError(serviceName, 0, err.Error())
	}
	if resp.IsError() {
		return nil, c.upstreamError(resp)
	}
	return ParseInvoice(resp.Body())
}

// VerifyCallbackToken compares the x-callback-token header in constant time.
func (c *Client) VerifyCallbackToken(token string) bool {
	if c.cfg.CallbackToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.cfg.CallbackToken), []byte(token)) == 1
}

func (c *Client) upstreamError(resp *resty.Response) error {
	body := resp.Body()
	message := gjson.GetBytes(body, "message").String()
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	c.logger.Warn("xendit returned error",
		zap.Int("status_code", resp.StatusCode()),
		zap.String("error_code", gjson.GetBytes(body, "error_code").String()),
		zap.String("message", message),
	)
	return apperrors.NewExternalServiceError(serviceName, resp.StatusCode(), message)
}

// ParseInvoice reads an invoice object. Invoice responses and invoice callbacks share these fields.
func ParseInvoice(body []byte) (*Invoice, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperrors.NewExternalServiceError(serviceName, 0, "malformed invoice payload")
	}
	doc := gjson.ParseBytes(body)
	invoice := &Invoice{
		ID:         doc.Get("id").String(),
		ExternalID: doc.Get("external_id").String(),
		Status:     strings.ToUpper(doc.Get("status").String()),
		Amount:     doc.Get("amount").Float(),
		Currency:   doc.Get("currency").String(),
		InvoiceURL: doc.Get("invoice_url").String(),
		ExpiresAt:  parseTime(doc.Get("expiry_date")),
		PaidAt:     parseTime(doc.Get("paid_at")),
	}
	if invoice.ID == "" && invoice.ExternalID == "" {
		return nil, apperrors.NewExternalServiceError(serviceName, 0, fmt.Sprintf("invoice payload without id: %s", doc.Raw))
	}
	return invoice, nil
}

func parseTime(v gjson.Result) *time.Time {
	if !v.Exists() || v.String() == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String())
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
