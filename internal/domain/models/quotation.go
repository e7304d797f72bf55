package models

import "time"

type LineItemInput struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type QuotationItem struct {
	ID          string  `json:"id"`
	QuotationID string  `json:"quotation_id"`
	Position    int     `json:"position"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

type Quotation struct {
	ID             string          `json:"id"`
	CompanyID      string          `json:"company_id"`
	OwnerID        string          `json:"owner_id"`
	CustomerID     string          `json:"customer_id"`
	LeadID         *string         `json:"lead_id,omitempty"`
	Number         string          `json:"number"`
	Title          string          `json:"title"`
	Status         string          `json:"status"`
	Currency       string          `json:"currency"`
	ValidUntil     time.Time       `json:"valid_until"`
	Items          []QuotationItem `json:"items"`
	DiscountType   string          `json:"discount_type"`
	DiscountValue  float64         `json:"discount_value"`
	Subtotal       float64         `json:"subtotal"`
	DiscountAmount float64         `json:"discount_amount"`
	TaxRate        float64         `json:"tax_rate"`
	TaxAmount      float64         `json:"tax_amount"`
	Total          float64         `json:"total"`
	Notes          string          `json:"notes"`
	Terms          string          `json:"terms"`
	TemplateID     *string         `json:"template_id,omitempty"`
	EventOrderID   *string         `json:"event_order_id,omitempty"`
	SentAt         *time.Time      `json:"sent_at,omitempty"`
	AcceptedAt     *time.Time      `json:"accepted_at,omitempty"`
	RejectedAt     *time.Time      `json:"rejected_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// QuotationRef identifies a quotation row picked up by a cross-tenant sweep.
type QuotationRef struct {
	CompanyID string
	ID        string
	Status    string
}

// ToMap exposes the quotation to template rendering
func (q *Quotation) ToMap() map[string]interface{} {
	items := make([]interface{}, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, map[string]interface{}{
			"description": it.Description,
			"quantity":    it.Quantity,
			"unit_price":  it.UnitPrice,
			"amount":      it.Amount,
		})
	}
	return map[string]interface{}{
		"id":              q.ID,
		"number":          q.Number,
		"title":           q.Title,
		"status":          q.Status,
		"currency":        q.Currency,
		"valid_until":     q.ValidUntil.Format("2006-01-02"),
		"items":           items,
		"subtotal":        q.Subtotal,
		"discount_amount": q.DiscountAmount,
		"tax_rate":        q.TaxRate,
		"tax_amount":      q.TaxAmount,
		"total":           q.Total,
		"notes":           q.Notes,
	}
}

// QuotationInput is used for create and draft updates.
type QuotationInput struct {
	CustomerID    string          `json:"customer_id"`
	LeadID        *string         `json:"lead_id,omitempty"`
	Title         string          `json:"title"`
	Currency      string          `json:"currency"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
	Items         []LineItemInput `json:"items"`
	DiscountType  string          `json:"discount_type"`
	DiscountValue float64         `json:"discount_value"`
	TaxRate       *float64        `json:"tax_rate,omitempty"`
	Notes         string          `json:"notes"`
	Terms         string          `json:"terms"`
	TemplateID    *string         `json:"template_id,omitempty"`
}

type QuotationFilter struct {
	Status     string
	CustomerID string
	OwnerID    string
	Limit      int
	Offset     int
}
