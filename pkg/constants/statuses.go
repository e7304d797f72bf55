package constants

// Lead statuses
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusProposal  = "proposal"
	LeadStatusWon       = "won"
	LeadStatusLost      = "lost"
)

// Lead sources
const (
	LeadSourceWebsite  = "website"
	LeadSourceReferral = "referral"
	LeadSourceSocial   = "social"
	LeadSourceWalkIn   = "walk_in"
	LeadSourceAds      = "ads"
	LeadSourceOther    = "other"
)

// Lead activity kinds
const (
	ActivityNote    = "note"
	ActivityCall    = "call"
	ActivityEmail   = "email"
	ActivityMeeting = "meeting"
)

// Quotation statuses
const (
	QuotationStatusDraft    = "draft"
	QuotationStatusSent     = "sent"
	QuotationStatusAccepted = "accepted"
	QuotationStatusRejected = "rejected"
	QuotationStatusExpired  = "expired"
)

// Discount types
const (
	DiscountNone    = "none"
	DiscountPercent = "percent"
	DiscountAmount  = "amount"
)

// Event order statuses
const (
	EventOrderStatusConfirmed  = "confirmed"
	EventOrderStatusInProgress = "in_progress"
	EventOrderStatusCompleted  = "completed"
	EventOrderStatusCancelled  = "cancelled"
)

// Event order payment statuses
const (
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPartial = "partial"
	PaymentStatusPaid    = "paid"
)

// Payment statuses
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentExpired = "expired"
	PaymentFailed  = "failed"
	PaymentVoid    = "void"
)

// Payment methods
const (
	PaymentMethodCash          = "cash"
	PaymentMethodBankTransfer  = "bank_transfer"
	PaymentMethodCard          = "card"
	PaymentMethodXenditInvoice = "xendit_invoice"
)

// Template kinds
const (
	TemplateKindQuotation = "quotation"
	TemplateKindEmail     = "email"
)

// Integration providers
const (
	ProviderGoogle = "google"
)

// Document number prefixes
const (
	DocumentQuotation  = "QUO"
	DocumentEventOrder = "EO"
)

// IsValidLeadSource checks a lead source
func IsValidLeadSource(s string) bool {
	switch s {
	case LeadSourceWebsite, LeadSourceReferral, LeadSourceSocial, LeadSourceWalkIn, LeadSourceAds, LeadSourceOther:
		return true
	}
	return false
}

// IsValidActivityKind checks a lead activity kind
func IsValidActivityKind(k string) bool {
	switch k {
	case ActivityNote, ActivityCall, ActivityEmail, ActivityMeeting:
		return true
	}
	return false
}

// IsManualPaymentMethod reports whether a method is recorded by staff rather than a gateway
func IsManualPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCard:
		return true
	}
	return false
}
