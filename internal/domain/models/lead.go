package models

import "time"

type Lead struct {
	ID                  string     `json:"id"`
	CompanyID           string     `json:"company_id"`
	OwnerID             string     `json:"owner_id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Phone               string     `json:"phone"`
	Organization        string     `json:"organization"`
	Source              string     `json:"source"`
	Status              string     `json:"status"`
	EventType           string     `json:"event_type"`
	EventDate           *time.Time `json:"event_date,omitempty"`
	EstimatedPax        int        `json:"estimated_pax"`
	Budget              float64    `json:"budget"`
	Score               int        `json:"score"`
	LostReason          string     `json:"lost_reason,omitempty"`
	Notes               string     `json:"notes"`
	ConvertedCustomerID *string    `json:"converted_customer_id,omitempty"`
	ConvertedAt         *time.Time `json:"converted_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// ScoringEnv is the variable set lead scoring expressions are evaluated against.
func (l *Lead) ScoringEnv(now time.Time) map[string]interface{} {
	daysUntil := -1
	if l.EventDate != nil {
		daysUntil = int(l.EventDate.Sub(now.Truncate(24*time.Hour)).Hours() / 24)
	}
	return map[string]interface{}{
		"budget":           l.Budget,
		"estimated_pax":    l.EstimatedPax,
		"source":           l.Source,
		"status":           l.Status,
		"event_type":       l.EventType,
		"organization":     l.Organization,
		"has_email":        l.Email != "",
		"has_phone":        l.Phone != "",
		"days_until_event": daysUntil,
	}
}

// LeadInput is used for both create and update. Update applies non-nil fields only.
type LeadInput struct {
	Name         *string    `json:"name,omitempty"`
	Email        *string    `json:"email,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	Organization *string    `json:"organization,omitempty"`
	Source       *string    `json:"source,omitempty"`
	EventType    *string    `json:"event_type,omitempty"`
	EventDate    *time.Time `json:"event_date,omitempty"`
	EstimatedPax *int       `json:"estimated_pax,omitempty"`
	Budget       *float64   `json:"budget,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	OwnerID      *string    `json:"owner_id,omitempty"`
}

type LeadFilter struct {
	Status  string
	OwnerID string
	Source  string
	Search  string
	Limit   int
	Offset  int
}

type LeadActivity struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	LeadID      string    `json:"lead_id"`
	UserID      string    `json:"user_id"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type LeadScoringRule struct {
	ID         string    `json:"id"`
	CompanyID  string    `json:"company_id"`
	Name       string    `json:"name"`
	Expression string    `json:"expression"`
	Points     int       `json:"points"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ConvertLeadResult struct {
	Lead     *Lead     `json:"lead"`
	Customer *Customer `json:"customer"`
}
