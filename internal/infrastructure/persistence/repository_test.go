package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

var leadRowColumns = []string{"id", "company_id", "owner_id", "name", "email", "phone", "organization", "source",
	"status", "event_type", "event_date", "estimated_pax", "budget", "score", "lost_reason", "notes",
	"converted_customer_id", "converted_at", "created_at", "updated_at"}

func leadRow(rows *sqlmock.Rows, id, companyID, ownerID string) *sqlmock.Rows {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return rows.AddRow(id, companyID, ownerID, "Budi", "budi@example.com", "", "PT Maju", "website", "new", "wedding",
		nil, 200, 150000000.0, 40, "", "", nil, nil, now, now)
}

func TestScopeFilter(t *testing.T) {
	where, args := scopeFilter(domain.Scope{CompanyID: "c1"}, "", true)
	assert.Equal(t, "company_id = ?", where)
	assert.Equal(t, []interface{}{"c1"}, args)

	where, args = scopeFilter(domain.Scope{CompanyID: "c1", OwnerID: "u1"}, "l", true)
	assert.Equal(t, "l.company_id = ? AND l.owner_id = ?", where)
	assert.Equal(t, []interface{}{"c1", "u1"}, args)

	// tables without an owner column ignore the owner
	where, args = scopeFilter(domain.Scope{CompanyID: "c1", OwnerID: "u1"}, "", false)
	assert.Equal(t, "company_id = ?", where)
	assert.Equal(t, []interface{}{"c1"}, args)
}

func TestLeadRepository_GetAppliesOwnScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLeadRepository(db)
	scope := domain.Scope{CompanyID: "c1", OwnerID: "u1"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM leads WHERE id = ? AND company_id = ? AND owner_id = ?")).
		WithArgs("l1", "c1", "u1").
		WillReturnRows(leadRow(sqlmock.NewRows(leadRowColumns), "l1", "c1", "u1"))

	lead, err := repo.Get(context.Background(), scope, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Budi", lead.Name)
	assert.Nil(t, lead.EventDate)
	assert.Nil(t, lead.ConvertedCustomerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_GetOutsideScopeIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLeadRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM leads WHERE id = ? AND company_id = ?")).
		WithArgs("l1", "c2").
		WillReturnRows(sqlmock.NewRows(leadRowColumns))

	_, err = repo.Get(context.Background(), domain.CompanyScope("c2"), "l1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLeadRepository_ListEscapesSearch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLeadRepository(db)
	like := `%50\%%`

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM leads WHERE company_id = ? AND status = ? AND (name LIKE ?")).
		WithArgs("c1", "new", like, like, like).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT ? OFFSET ?")).
		WithArgs("c1", "new", like, like, like, constants.MaxLimit, 0).
		WillReturnRows(leadRow(sqlmock.NewRows(leadRowColumns), "l1", "c1", "u1"))

	leads, total, err := repo.List(context.Background(), domain.CompanyScope("c1"), models.LeadFilter{
		Status: "new",
		Search: "50%",
		Limit:  1000,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, leads, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_UpdateOutsideScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLeadRepository(db)
	mock.ExpectExec("UPDATE leads SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Update(context.Background(), domain.Scope{CompanyID: "c1", OwnerID: "u2"}, &models.Lead{ID: "l1"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserRepository_EmailExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s = ?)", constants.TableUser, constants.FieldEmail)

	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.EmailExists(context.Background(), "ana@example.com")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestCustomerRepository_CountReferences(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCustomerRepository(db)
	mock.ExpectQuery("SELECT").WithArgs("c1", "cu1", "c1", "cu1").
		WillReturnRows(sqlmock.NewRows([]string{"q", "e"}).AddRow(2, 1))

	quotations, orders, err := repo.CountReferences(context.Background(), "c1", "cu1")
	require.NoError(t, err)
	assert.Equal(t, 2, quotations)
	assert.Equal(t, 1, orders)
}

func TestCounterRepository_NextRequiresTransaction(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewCounterRepository(db).Next(context.Background(), "c1", constants.DocumentQuotation, 2026)
	assert.Error(t, err)
}

func TestCounterRepository_Next(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCounterRepository(db)
	tm := NewTransactionManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE last_value = last_value + 1")).
		WithArgs("c1", "QUO", 2026).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT last_value FROM document_counters")).
		WithArgs("c1", "QUO", 2026).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(7))
	mock.ExpectCommit()

	var next int
	err = tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		var err error
		next, err = repo.Next(ctx, "c1", constants.DocumentQuotation, 2026)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 7, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotationRepository_ListOverdueForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewQuotationRepository(db)
	today := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status IN (?, ?) AND valid_until < ? ORDER BY id FOR UPDATE")).
		WithArgs(constants.QuotationStatusDraft, constants.QuotationStatusSent, today).
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "id", "status"}).
			AddRow("c1", "q1", constants.QuotationStatusDraft).
			AddRow("c2", "q2", constants.QuotationStatusSent))

	refs, err := repo.ListOverdueForUpdate(context.Background(), today,
		constants.QuotationStatusDraft, constants.QuotationStatusSent)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, models.QuotationRef{CompanyID: "c2", ID: "q2", Status: constants.QuotationStatusSent}, refs[1])
	assert.NoError(t, mock.ExpectationsWereMet())

	// no statuses, no query
	refs, err = repo.ListOverdueForUpdate(context.Background(), today)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestQuotationRepository_SetStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewQuotationRepository(db)
	at := time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE quotations SET status = ?, updated_at = ? WHERE id IN (?, ?)")).
		WithArgs(constants.QuotationStatusExpired, at, "q1", "q2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.SetStatus(context.Background(), constants.QuotationStatusExpired, at, []string{"q1", "q2"}))
	require.NoError(t, repo.SetStatus(context.Background(), constants.QuotationStatusExpired, at, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentScope_OwnScopeFollowsEventOrderOwner(t *testing.T) {
	where, args := paymentScope(domain.Scope{CompanyID: "c1", OwnerID: "u1"})
	assert.Contains(t, where, "company_id = ?")
	assert.Contains(t, where, "event_order_id IN (SELECT id FROM event_orders WHERE company_id = ? AND owner_id = ?)")
	assert.Equal(t, []interface{}{"c1", "c1", "u1"}, args)
}

func TestPaymentRepository_SumByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("status IN (?)")).
		WithArgs("c1", "eo1", constants.PaymentPaid).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(2500000.0))

	total, err := NewPaymentRepository(db).SumByStatus(context.Background(), "c1", "eo1", constants.PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, 2500000.0, total)
}

func TestOutboxRepository_EnqueueUsesTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOutboxRepository(db)
	tm := NewTransactionManager(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(sqlmock.AnyArg(), "quotation.sent", sqlmock.AnyArg(), constants.OutboxStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		id, err := repo.Enqueue(ctx, "quotation.sent", map[string]string{"entity_id": "q1"})
		assert.NotEmpty(t, id)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ClaimEventAlreadyTaken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs("e1", constants.OutboxStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	id, err := NewOutboxRepository(db).ClaimEvent(context.Background(), "e1")
	assert.NoError(t, err)
	assert.Empty(t, id)
}

func TestOutboxRepository_UpdateStatusRejectsUnknown(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = NewOutboxRepository(db).UpdateStatus(context.Background(), "e1", "weird", "")
	assert.Error(t, err)
}

func TestReportRepository_RunQueryTruncates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name FROM leads").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow([]byte("a")).AddRow([]byte("b")).AddRow([]byte("c")))

	result, err := NewReportRepository(db).RunQuery(context.Background(), "SELECT name FROM leads", nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, result.Columns)
	assert.Len(t, result.Rows, 2)
	assert.Equal(t, "a", result.Rows[0]["name"])
	assert.True(t, result.Truncated)
}

func TestIntegrationRepository_DeleteMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM integrations").WithArgs("u1", constants.ProviderGoogle).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewIntegrationRepository(db).Delete(context.Background(), "u1", constants.ProviderGoogle)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
