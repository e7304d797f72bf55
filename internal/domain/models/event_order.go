package models

import "time"

type EventOrder struct {
	ID              string    `json:"id"`
	CompanyID       string    `json:"company_id"`
	OwnerID         string    `json:"owner_id"`
	CustomerID      string    `json:"customer_id"`
	QuotationID     *string   `json:"quotation_id,omitempty"`
	Number          string    `json:"number"`
	Title           string    `json:"title"`
	EventType       string    `json:"event_type"`
	EventDate       time.Time `json:"event_date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	Venue           string    `json:"venue"`
	Pax             int       `json:"pax"`
	Status          string    `json:"status"`
	Currency        string    `json:"currency"`
	TotalAmount     float64   `json:"total_amount"`
	PaidAmount      float64   `json:"paid_amount"`
	PaymentStatus   string    `json:"payment_status"`
	Notes           string    `json:"notes"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Balance is the amount still owed on the order.
func (e *EventOrder) Balance() float64 {
	b := e.TotalAmount - e.PaidAmount
	if b < 0 {
		return 0
	}
	return b
}

// ToMap exposes the event order to template rendering
func (e *EventOrder) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":             e.ID,
		"number":         e.Number,
		"title":          e.Title,
		"event_type":     e.EventType,
		"event_date":     e.EventDate.Format("2006-01-02"),
		"start_time":     e.StartTime,
		"end_time":       e.EndTime,
		"venue":          e.Venue,
		"pax":            e.Pax,
		"total_amount":   e.TotalAmount,
		"paid_amount":    e.PaidAmount,
		"payment_status": e.PaymentStatus,
	}
}

type EventOrderInput struct {
	CustomerID  string     `json:"customer_id"`
	Title       *string    `json:"title,omitempty"`
	EventType   *string    `json:"event_type,omitempty"`
	EventDate   *time.Time `json:"event_date,omitempty"`
	StartTime   *string    `json:"start_time,omitempty"`
	EndTime     *string    `json:"end_time,omitempty"`
	Venue       *string    `json:"venue,omitempty"`
	Pax         *int       `json:"pax,omitempty"`
	TotalAmount *float64   `json:"total_amount,omitempty"`
	Currency    *string    `json:"currency,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

type EventOrderFilter struct {
	Status     string
	CustomerID string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
