package models

import "time"

type Template struct {
	ID           string          `json:"id"`
	CompanyID    string          `json:"company_id"`
	Kind         string          `json:"kind"`
	Name         string          `json:"name"`
	Subject      string          `json:"subject"`
	Body         string          `json:"body"`
	Terms        string          `json:"terms"`
	DefaultItems []LineItemInput `json:"default_items"`
	IsDefault    bool            `json:"is_default"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type TemplateInput struct {
	Kind         string          `json:"kind"`
	Name         string          `json:"name"`
	Subject      string          `json:"subject"`
	Body         string          `json:"body"`
	Terms        string          `json:"terms"`
	DefaultItems []LineItemInput `json:"default_items"`
	IsDefault    bool            `json:"is_default"`
}

type RenderedTemplate struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Terms   string `json:"terms"`
}
