package models

import "time"

// Company is a tenant. A company with a ParentID is a business unit of that parent.
type Company struct {
	ID                    string    `json:"id"`
	ParentID              *string   `json:"parent_id,omitempty"`
	Name                  string    `json:"name"`
	Slug                  string    `json:"slug"`
	Currency              string    `json:"currency"`
	TaxRate               float64   `json:"tax_rate"`
	Timezone              string    `json:"timezone"`
	QuotationValidityDays int       `json:"quotation_validity_days"`
	IsActive              bool      `json:"is_active"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ToMap exposes the company to template rendering
func (c *Company) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":       c.ID,
		"name":     c.Name,
		"slug":     c.Slug,
		"currency": c.Currency,
		"tax_rate": c.TaxRate,
		"timezone": c.Timezone,
	}
}

type CreateCompanyInput struct {
	Name                  string  `json:"name"`
	Slug                  string  `json:"slug"`
	ParentID              *string `json:"parent_id,omitempty"`
	Currency              string  `json:"currency"`
	TaxRate               float64 `json:"tax_rate"`
	Timezone              string  `json:"timezone"`
	QuotationValidityDays int     `json:"quotation_validity_days"`
	OwnerEmail            string  `json:"owner_email"`
	OwnerName             string  `json:"owner_name"`
	OwnerPassword         string  `json:"owner_password"`
}

// UpdateCompanyInput carries tenant settings. Nil fields are left untouched.
type UpdateCompanyInput struct {
	Name                  *string  `json:"name,omitempty"`
	Currency              *string  `json:"currency,omitempty"`
	TaxRate               *float64 `json:"tax_rate,omitempty"`
	Timezone              *string  `json:"timezone,omitempty"`
	QuotationValidityDays *int     `json:"quotation_validity_days,omitempty"`
}
