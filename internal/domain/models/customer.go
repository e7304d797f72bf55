package models

import "time"

type Customer struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Organization string    `json:"organization"`
	Address      string    `json:"address"`
	TaxID        string    `json:"tax_id"`
	Notes        string    `json:"notes"`
	SourceLeadID *string   `json:"source_lead_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ToMap exposes the customer to template rendering
func (c *Customer) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":           c.ID,
		"name":         c.Name,
		"email":        c.Email,
		"phone":        c.Phone,
		"organization": c.Organization,
		"address":      c.Address,
		"tax_id":       c.TaxID,
	}
}

type CustomerInput struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Organization *string `json:"organization,omitempty"`
	Address      *string `json:"address,omitempty"`
	TaxID        *string `json:"tax_id,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	OwnerID      *string `json:"owner_id,omitempty"`
}

type CustomerFilter struct {
	Search  string
	OwnerID string
	Limit   int
	Offset  int
}

type CustomerSummary struct {
	CustomerID      string  `json:"customer_id"`
	QuotationCount  int     `json:"quotation_count"`
	EventOrderCount int     `json:"event_order_count"`
	TotalPaid       float64 `json:"total_paid"`
}
