package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/events"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/xendit"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Enabled() bool { return m.Called().Bool(0) }

func (m *mockGateway) CreateInvoice(ctx context.Context, req xendit.CreateInvoiceRequest) (*xendit.Invoice, error) {
	args := m.Called(ctx, req)
	inv, _ := args.Get(0).(*xendit.Invoice)
	return inv, args.Error(1)
}

func (m *mockGateway) GetInvoice(ctx context.Context, invoiceID string) (*xendit.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	inv, _ := args.Get(0).(*xendit.Invoice)
	return inv, args.Error(1)
}

func (m *mockGateway) ExpireInvoice(ctx context.Context, invoiceID string) (*xendit.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	inv, _ := args.Get(0).(*xendit.Invoice)
	return inv, args.Error(1)
}

func (m *mockGateway) VerifyCallbackToken(token string) bool { return m.Called(token).Bool(0) }

type mockIdempotency struct {
	mock.Mock
}

func (m *mockIdempotency) Claim(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdempotency) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, eventType events.EventType, payload events.Payload) error {
	return m.Called(ctx, eventType, payload).Error(0)
}

type paymentFixture struct {
	svc         *PaymentService
	db          sqlmock.Sqlmock
	gateway     *mockGateway
	idempotency *mockIdempotency
	outbox      *mockEnqueuer
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &paymentFixture{db: sqlMock, gateway: &mockGateway{}, idempotency: &mockIdempotency{}, outbox: &mockEnqueuer{}}
	f.svc = NewPaymentService(persistence.NewPaymentRepository(db), persistence.NewEventOrderRepository(db),
		persistence.NewCustomerRepository(db), f.gateway, f.idempotency, nil, f.outbox,
		persistence.NewTransactionManager(db), zap.NewNop())
	f.svc.now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *paymentFixture) assertExpectations(t *testing.T) {
	assert.NoError(t, f.db.ExpectationsWereMet())
	f.gateway.AssertExpectations(t)
	f.idempotency.AssertExpectations(t)
	f.outbox.AssertExpectations(t)
}

var paymentRowColumns = []string{"id", "company_id", "event_order_id", "customer_id", "amount", "currency", "method",
	"status", "reference", "external_id", "provider_invoice_id", "invoice_url", "paid_at", "expires_at", "recorded_by",
	"created_at", "updated_at"}

var eventOrderRowColumns = []string{"id", "company_id", "owner_id", "customer_id", "quotation_id", "number", "title",
	"event_type", "event_date", "start_time", "end_time", "venue", "pax", "status", "currency", "total_amount",
	"paid_amount", "payment_status", "notes", "calendar_event_id", "created_at", "updated_at"}

func pendingInvoicePaymentRows() *sqlmock.Rows {
	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(paymentRowColumns).AddRow("pay-1", "c1", "eo-1", "cust-1", 500000.0, "IDR",
		constants.PaymentMethodXenditInvoice, constants.PaymentPending, "", "pay-1", "inv-1",
		"https://checkout.xendit.co/inv-1", nil, created.Add(24*time.Hour), "u1", created, created)
}

func eventOrderRows(paid float64) *sqlmock.Rows {
	return eventOrderRowsWithStatus(constants.EventOrderStatusConfirmed, paid)
}

func eventOrderRowsWithStatus(status string, paid float64) *sqlmock.Rows {
	created := time.Date(2026, 4, 20, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(eventOrderRowColumns).AddRow("eo-1", "c1", "u1", "cust-1", nil, "EO-2026-0001",
		"Wedding reception", "wedding", time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), "17:00", "22:00",
		"Grand Ballroom", 200, status, "IDR", 2000000.0, paid,
		derivePaymentStatus(2000000, paid), "", "", created, created)
}

const paidCallback = `{"id":"inv-1","external_id":"pay-1","status":"PAID","amount":500000,"currency":"IDR",
	"paid_at":"2026-05-04T09:30:00.000Z"}`

func TestHandleXenditWebhook_RejectsBadToken(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.On("VerifyCallbackToken", "wrong").Return(false)

	err := f.svc.HandleXenditWebhook(context.Background(), "wrong", []byte(paidCallback))
	assert.True(t, appErrors.IsUnauthorized(err))
	f.assertExpectations(t)
}

func TestHandleXenditWebhook_RejectsMalformedBody(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.On("VerifyCallbackToken", "token").Return(true)

	err := f.svc.HandleXenditWebhook(context.Background(), "token", []byte("not json"))
	assert.True(t, appErrors.IsValidation(err))
	f.assertExpectations(t)
}

func TestHandleXenditWebhook_DuplicateIsAcknowledged(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.On("VerifyCallbackToken", "token").Return(true)
	f.idempotency.On("Claim", mock.Anything, "xendit:invoice:pay-1:PAID").Return(false, nil)

	err := f.svc.HandleXenditWebhook(context.Background(), "token", []byte(paidCallback))
	assert.NoError(t, err)
	f.assertExpectations(t)
}

func TestHandleXenditWebhook_MarksPaymentPaid(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.On("VerifyCallbackToken", "token").Return(true)
	f.idempotency.On("Claim", mock.Anything, "xendit:invoice:pay-1:PAID").Return(true, nil)
	f.outbox.On("Enqueue", mock.Anything, events.PaymentPaid, mock.MatchedBy(func(p events.Payload) bool {
		return p.CompanyID == "c1" && p.EntityID == "pay-1" && p.ActorID == constants.SystemUserID
	})).Return(nil)

	f.db.ExpectBegin()
	f.db.ExpectQuery("FROM payments WHERE external_id = \\? FOR UPDATE").
		WithArgs("pay-1").
		WillReturnRows(pendingInvoicePaymentRows())
	f.db.ExpectQuery("FROM event_orders WHERE id = \\?").
		WillReturnRows(eventOrderRows(0))
	f.db.ExpectExec("UPDATE payments SET status").
		WithArgs(constants.PaymentPaid, sqlmock.AnyArg(), "inv-1", sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), "c1", "pay-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.db.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM payments").
		WithArgs("c1", "eo-1", constants.PaymentPaid).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(500000.0))
	f.db.ExpectExec("UPDATE event_orders SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.db.ExpectCommit()

	err := f.svc.HandleXenditWebhook(context.Background(), "token", []byte(paidCallback))
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestHandleXenditWebhook_MarksPaymentExpired(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.On("VerifyCallbackToken", "token").Return(true)
	f.idempotency.On("Claim", mock.Anything, "xendit:invoice:pay-1:EXPIRED").Return(true, nil)
	f.outbox.On("Enqueue", mock.Anything, events.PaymentExpired, mock.Anything).Return(nil)

	f.db.ExpectBegin()
	f.db.ExpectQuery("FROM payments WHERE external_id").
		WithArgs("pay-1").
		WillReturnRows(pendingInvoicePaymentRows())
	f.db.ExpectExec("UPDATE payments SET status").
		WithArgs(constants.PaymentExpired, sqlmock.AnyArg(), "inv-1", sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), "c1", "pay-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.db.ExpectCommit()

	body := `{"id":"inv-1","external_id":"pay-1","status":"EXPIRED","amount":500000}`
	require.NoError(t, f.svc.HandleXenditWebhook(context.Background(), "token", []byte(body)))
	f.assertExpectations(t)
}

func TestHandleXenditWebhook_UnknownPaymentIsIgnored(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.On("VerifyCallbackToken", "token").Return(true)
	f.idempotency.On("Claim", mock.Anything, "xendit:invoice:pay-1:PAID").Return(true, nil)

	f.db.ExpectBegin()
	f.db.ExpectQuery("FROM payments WHERE external_id").
		WithArgs("pay-1").
		WillReturnRows(sqlmock.NewRows(paymentRowColumns))
	f.db.ExpectCommit()

	assert.NoError(t, f.svc.HandleXenditWebhook(context.Background(), "token", []byte(paidCallback)))
	f.assertExpectations(t)
}

func TestHandleXenditWebhook_ReleasesClaimOnFailure(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.On("VerifyCallbackToken", "token").Return(true)
	f.idempotency.On("Claim", mock.Anything, "xendit:invoice:pay-1:PAID").Return(true, nil)
	f.idempotency.On("Release", mock.Anything, "xendit:invoice:pay-1:PAID").Return(nil)

	dbErr := errors.New("connection reset")
	f.db.ExpectBegin()
	f.db.ExpectQuery("FROM payments WHERE external_id").
		WithArgs("pay-1").
		WillReturnError(dbErr)
	f.db.ExpectRollback()

	err := f.svc.HandleXenditWebhook(context.Background(), "token", []byte(paidCallback))
	assert.ErrorIs(t, err, dbErr)
	f.assertExpectations(t)
}

func TestHandleXenditWebhook_PaidOnCancelledOrderKeepsTotals(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.On("VerifyCallbackToken", "token").Return(true)
	f.idempotency.On("Claim", mock.Anything, "xendit:invoice:pay-1:PAID").Return(true, nil)
	f.outbox.On("Enqueue", mock.Anything, events.PaymentPaid, mock.Anything).Return(nil)

	f.db.ExpectBegin()
	f.db.ExpectQuery("FROM payments WHERE external_id = \\? FOR UPDATE").
		WithArgs("pay-1").
		WillReturnRows(pendingInvoicePaymentRows())
	f.db.ExpectQuery("FROM event_orders WHERE id = \\?").
		WillReturnRows(eventOrderRowsWithStatus(constants.EventOrderStatusCancelled, 0))
	f.db.ExpectExec("UPDATE payments SET status").
		WithArgs(constants.PaymentPaid, sqlmock.AnyArg(), "inv-1", sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), "c1", "pay-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.db.ExpectCommit()

	require.NoError(t, f.svc.HandleXenditWebhook(context.Background(), "token", []byte(paidCallback)))
	f.assertExpectations(t)
}
