package models

import "time"

type Payment struct {
	ID                string     `json:"id"`
	CompanyID         string     `json:"company_id"`
	EventOrderID      string     `json:"event_order_id"`
	CustomerID        string     `json:"customer_id"`
	Amount            float64    `json:"amount"`
	Currency          string     `json:"currency"`
	Method            string     `json:"method"`
	Status            string     `json:"status"`
	Reference         string     `json:"reference"`
	ExternalID        string     `json:"external_id,omitempty"`
	ProviderInvoiceID string     `json:"provider_invoice_id,omitempty"`
	InvoiceURL        string     `json:"invoice_url,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	RecordedBy        string     `json:"recorded_by"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type ManualPaymentInput struct {
	EventOrderID string     `json:"event_order_id"`
	Amount       float64    `json:"amount"`
	Method       string     `json:"method"`
	Reference    string     `json:"reference"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
}

type InvoiceInput struct {
	EventOrderID string  `json:"event_order_id"`
	Amount       float64 `json:"amount"`
	PayerEmail   string  `json:"payer_email"`
	Description  string  `json:"description"`
}

type PaymentFilter struct {
	EventOrderID string
	Status       string
	Method       string
	Limit        int
	Offset       int
}
