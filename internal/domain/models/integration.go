package models

import "time"

// Integration stores one user's connection to an external provider. Tokens are sealed at rest.
type Integration struct {
	ID             string    `json:"id"`
	CompanyID      string    `json:"company_id"`
	UserID         string    `json:"user_id"`
	Provider       string    `json:"provider"`
	AccountEmail   string    `json:"account_email"`
	AccessToken    string    `json:"-"`
	RefreshToken   string    `json:"-"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
	Scopes         string    `json:"scopes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type IntegrationStatus struct {
	Provider     string     `json:"provider"`
	Connected    bool       `json:"connected"`
	AccountEmail string     `json:"account_email,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}
