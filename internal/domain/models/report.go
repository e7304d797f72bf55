package models

import "time"

type StatusTotal struct {
	Status string  `json:"status"`
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
}

type UpcomingEvent struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	Title     string    `json:"title"`
	EventDate time.Time `json:"event_date"`
	Status    string    `json:"status"`
}

type Dashboard struct {
	From               time.Time       `json:"from"`
	To                 time.Time       `json:"to"`
	LeadsByStatus      []StatusTotal   `json:"leads_by_status"`
	QuotationsByStatus []StatusTotal   `json:"quotations_by_status"`
	RevenueCollected   float64         `json:"revenue_collected"`
	ConversionRate     float64         `json:"conversion_rate"`
	UpcomingEvents     []UpcomingEvent `json:"upcoming_events"`
}

type QueryResult struct {
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	Truncated bool                     `json:"truncated"`
}
