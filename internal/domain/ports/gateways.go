package ports

import (
	"context"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/cache"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/google"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/xendit"
)

// PaymentGateway is the hosted-invoice provider.
type PaymentGateway interface {
	Enabled() bool
	CreateInvoice(ctx context.Context, req xendit.CreateInvoiceRequest) (*xendit.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*xendit.Invoice, error)
	ExpireInvoice(ctx context.Context, invoiceID string) (*xendit.Invoice, error)
	VerifyCallbackToken(token string) bool
}

// GoogleProvider covers the OAuth and Calendar calls made for connected users.
type GoogleProvider interface {
	Enabled() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*google.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*google.Token, error)
	Revoke(ctx context.Context, token string) error
	UserEmail(ctx context.Context, accessToken string) (string, error)
	UpsertCalendarEvent(ctx context.Context, accessToken, eventID string, ev google.CalendarEvent) (string, error)
	DeleteCalendarEvent(ctx context.Context, accessToken, eventID string) error
}

// OAuthStateStore keeps single-use OAuth state values.
type OAuthStateStore interface {
	Save(ctx context.Context, state string, value cache.OAuthState) error
	Consume(ctx context.Context, state string) (*cache.OAuthState, error)
}

// IdempotencyStore deduplicates external notifications.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
