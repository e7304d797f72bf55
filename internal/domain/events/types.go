package events

// EventType defines the type of event in the system
type EventType string

const (
	LeadCreated   EventType = "lead.created"
	LeadConverted EventType = "lead.converted"

	QuotationSent     EventType = "quotation.sent"
	QuotationAccepted EventType = "quotation.accepted"
	QuotationRejected EventType = "quotation.rejected"
	QuotationExpired  EventType = "quotation.expired"

	EventOrderConfirmed EventType = "event_order.confirmed"
	EventOrderUpdated   EventType = "event_order.updated"
	EventOrderCancelled EventType = "event_order.cancelled"
	EventOrderCompleted EventType = "event_order.completed"

	PaymentPaid    EventType = "payment.paid"
	PaymentExpired EventType = "payment.expired"
	PaymentVoided  EventType = "payment.voided"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// Payload is the envelope stored in the outbox and fanned out to subscribers.
type Payload struct {
	CompanyID  string                 `json:"company_id"`
	EntityID   string                 `json:"entity_id"`
	ActorID    string                 `json:"actor_id,omitempty"`
	OccurredAt int64                  `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}
