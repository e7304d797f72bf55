package constants

// Context Keys
const (
	ContextKeyUser      = "user"
	ContextKeyToken     = "token"
	ContextKeySessionID = "session_id"
)

// HTTP and API constants
const (
	ContentTypeJSON = "application/json"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	HeaderAuthorization       = "Authorization"
	HeaderCompanyID           = "X-Company-ID"
	HeaderXenditCallbackToken = "x-callback-token"
	HeaderXRequestID          = "X-Request-ID"

	BearerPrefix = "Bearer "

	ResponseError = "error"
)

// Pagination
const (
	ParamLimit    = "limit"
	ParamOffset   = "offset"
	ParamSearch   = "search"
	DefaultLimit  = 50
	MaxLimit      = 200
	ReportMaxRows = 1000
)

// Defaults applied to new companies
const (
	DefaultCurrency              = "IDR"
	DefaultTimezone              = "Asia/Jakarta"
	DefaultQuotationValidityDays = 14
)

// Outbox
const (
	OutboxStatusPending   = "pending"
	OutboxStatusProcessed = "processed"
	OutboxStatusFailed    = "failed"
	OutboxMaxRetries      = 5
)

// SystemUserID is the actor recorded for scheduler and webhook changes
const SystemUserID = "00000000-0000-0000-0000-000000000000"
