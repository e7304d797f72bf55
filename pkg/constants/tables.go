package constants

// Table names
const (
	TableCompany         = "companies"
	TableUser            = "users"
	TableRole            = "roles"
	TableRolePermission  = "role_permissions"
	TableSession         = "sessions"
	TableLead            = "leads"
	TableLeadActivity    = "lead_activities"
	TableLeadScoringRule = "lead_scoring_rules"
	TableCustomer        = "customers"
	TableTemplate        = "templates"
	TableQuotation       = "quotations"
	TableQuotationItem   = "quotation_items"
	TableEventOrder      = "event_orders"
	TablePayment         = "payments"
	TableIntegration     = "integrations"
	TableDocumentCounter = "document_counters"
	TableOutboxEvent     = "outbox_events"
)

// Common column names
const (
	FieldID           = "id"
	FieldCompanyID    = "company_id"
	FieldOwnerID      = "owner_id"
	FieldName         = "name"
	FieldEmail        = "email"
	FieldStatus       = "status"
	FieldCreatedAt    = "created_at"
	FieldUpdatedAt    = "updated_at"
	FieldRoleID       = "role_id"
	FieldIsActive     = "is_active"
	FieldPasswordHash = "password_hash"
	FieldLastLoginAt  = "last_login_at"
	FieldIsRevoked    = "is_revoked"
	FieldLastActivity = "last_activity"
	FieldMessage      = "message"
)

// ReportableTables maps the tenant tables that ad-hoc report queries may read to the
// resource whose read permission guards them. Every one of them carries company_id.
var ReportableTables = map[string]string{
	TableLead:          ResourceLeads,
	TableLeadActivity:  ResourceLeads,
	TableCustomer:      ResourceCustomers,
	TableQuotation:     ResourceQuotations,
	TableQuotationItem: ResourceQuotations,
	TableEventOrder:    ResourceEventOrders,
	TablePayment:       ResourcePayments,
}

// OwnedTables are tables with an owner_id column used for own-scope filtering.
var OwnedTables = map[string]bool{
	TableLead:       true,
	TableCustomer:   true,
	TableQuotation:  true,
	TableEventOrder: true,
}
