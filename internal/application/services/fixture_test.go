package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

// crmFixture wires services over one sqlmock connection. The acting user is a platform
// admin so authorization never reaches the database.
type crmFixture struct {
	raw    *sql.DB
	db     sqlmock.Sqlmock
	outbox *mockEnqueuer
	tm     *persistence.TransactionManager
	access *AccessService
	user   *auth.UserSession
}

func newCRMFixture(t *testing.T) *crmFixture {
	raw, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	tm := persistence.NewTransactionManager(raw)
	return &crmFixture{
		raw:    raw,
		db:     sqlMock,
		outbox: &mockEnqueuer{},
		tm:     tm,
		access: NewAccessService(persistence.NewRoleRepository(raw), persistence.NewUserRepository(raw), tm, zap.NewNop()),
		user:   &auth.UserSession{ID: "u1", Name: "Admin", CompanyID: "c1", IsPlatformAdmin: true},
	}
}

func (f *crmFixture) eventOrderService() *EventOrderService {
	return NewEventOrderService(persistence.NewEventOrderRepository(f.raw), persistence.NewCustomerRepository(f.raw),
		persistence.NewCompanyRepository(f.raw), persistence.NewPaymentRepository(f.raw),
		persistence.NewCounterRepository(f.raw), f.access, f.outbox, f.tm, zap.NewNop())
}

func (f *crmFixture) quotationService(now time.Time) *QuotationService {
	svc := NewQuotationService(persistence.NewQuotationRepository(f.raw), persistence.NewCustomerRepository(f.raw),
		persistence.NewLeadRepository(f.raw), persistence.NewCompanyRepository(f.raw),
		persistence.NewTemplateRepository(f.raw), f.eventOrderService(), persistence.NewCounterRepository(f.raw),
		f.access, f.outbox, f.tm, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func (f *crmFixture) assertExpectations(t *testing.T) {
	assert.NoError(t, f.db.ExpectationsWereMet())
	f.outbox.AssertExpectations(t)
}

var companyRowColumns = []string{"id", "parent_id", "name", "slug", "currency", "tax_rate", "timezone",
	"quotation_validity_days", "is_active", "created_at", "updated_at"}

func companyRows() *sqlmock.Rows {
	created := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(companyRowColumns).AddRow("c1", nil, "Nusa Events", "nusa-events", "IDR", 11.0, "UTC",
		constants.DefaultQuotationValidityDays, true, created, created)
}
