package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/events"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

var quotationRowColumns = []string{"id", "company_id", "owner_id", "customer_id", "lead_id", "number", "title", "status",
	"currency", "valid_until", "discount_type", "discount_value", "subtotal", "discount_amount", "tax_rate", "tax_amount",
	"total", "notes", "terms", "template_id", "event_order_id", "sent_at", "accepted_at", "rejected_at", "created_at",
	"updated_at"}

var quotationItemColumns = []string{"id", "quotation_id", "position", "description", "quantity", "unit_price", "amount"}

var quotationNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type quotationRow struct {
	status       string
	validUntil   time.Time
	eventOrderID interface{}
}

func (r quotationRow) rows() *sqlmock.Rows {
	created := time.Date(2026, 4, 20, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(quotationRowColumns).AddRow("q1", "c1", "u1", "cust-1", nil, "QUO-2026-0001",
		"Wedding reception", r.status, "IDR", r.validUntil, constants.DiscountNone, 0.0, 2000000.0, 0.0, 0.0, 0.0,
		2000000.0, "", "", nil, r.eventOrderID, nil, nil, nil, created, created)
}

func quotationItemRows() *sqlmock.Rows {
	return sqlmock.NewRows(quotationItemColumns).AddRow("qi-1", "q1", 1, "Ballroom package", 1.0, 2000000.0, 2000000.0)
}

// expectLockedQuotation expects the company lookup, BEGIN and the locked quotation read.
func expectLockedQuotation(f *crmFixture, row quotationRow, withCompany bool) {
	if withCompany {
		f.db.ExpectQuery(regexp.QuoteMeta("FROM companies WHERE id = ?")).WithArgs("c1").WillReturnRows(companyRows())
	}
	f.db.ExpectBegin()
	f.db.ExpectQuery(regexp.QuoteMeta("FROM quotations WHERE id = ? AND company_id = ? FOR UPDATE")).
		WithArgs("q1", "c1").
		WillReturnRows(row.rows())
	f.db.ExpectQuery(regexp.QuoteMeta("FROM quotation_items")).WithArgs("c1", "q1").WillReturnRows(quotationItemRows())
}

func TestQuotationAccept_WithinValidity(t *testing.T) {
	f := newCRMFixture(t)
	svc := f.quotationService(quotationNow)

	expectLockedQuotation(f, quotationRow{status: constants.QuotationStatusSent,
		validUntil: time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)}, true)
	f.db.ExpectExec(regexp.QuoteMeta("UPDATE quotations SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	f.outbox.On("Enqueue", mock.Anything, events.QuotationAccepted, mock.Anything).Return(nil)
	f.db.ExpectCommit()

	q, err := svc.Accept(context.Background(), f.user, "q1")
	require.NoError(t, err)
	assert.Equal(t, constants.QuotationStatusAccepted, q.Status)
	require.NotNil(t, q.AcceptedAt)
	f.assertExpectations(t)
}

func TestQuotationAcceptReject_AfterValidUntil(t *testing.T) {
	for _, action := range []string{"accept", "reject"} {
		t.Run(action, func(t *testing.T) {
			f := newCRMFixture(t)
			svc := f.quotationService(quotationNow)

			expectLockedQuotation(f, quotationRow{status: constants.QuotationStatusSent,
				validUntil: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}, true)
			f.db.ExpectRollback()

			var err error
			if action == "accept" {
				_, err = svc.Accept(context.Background(), f.user, "q1")
			} else {
				_, err = svc.Reject(context.Background(), f.user, "q1")
			}
			assert.True(t, appErrors.IsInvalidState(err), "got %v", err)
			f.assertExpectations(t)
		})
	}
}

func TestQuotationUpdate_OnlyDraft(t *testing.T) {
	f := newCRMFixture(t)
	svc := f.quotationService(quotationNow)

	expectLockedQuotation(f, quotationRow{status: constants.QuotationStatusSent,
		validUntil: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}, true)
	f.db.ExpectRollback()

	_, err := svc.UpdateQuotation(context.Background(), f.user, "q1", models.QuotationInput{Title: "New title"})
	assert.True(t, appErrors.IsInvalidState(err), "got %v", err)
	f.assertExpectations(t)
}

func TestQuotationDelete_OnlyDraft(t *testing.T) {
	f := newCRMFixture(t)
	svc := f.quotationService(quotationNow)

	expectLockedQuotation(f, quotationRow{status: constants.QuotationStatusAccepted,
		validUntil: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}, false)
	f.db.ExpectRollback()

	err := svc.DeleteQuotation(context.Background(), f.user, "q1")
	assert.True(t, appErrors.IsInvalidState(err), "got %v", err)
	f.assertExpectations(t)
}

func TestQuotationConvert_AlreadyLinked(t *testing.T) {
	f := newCRMFixture(t)
	svc := f.quotationService(quotationNow)

	expectLockedQuotation(f, quotationRow{status: constants.QuotationStatusAccepted,
		validUntil: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), eventOrderID: "eo-1"}, true)
	f.db.ExpectRollback()

	_, err := svc.ConvertToEventOrder(context.Background(), f.user, "q1", models.EventOrderInput{})
	assert.True(t, appErrors.IsConflict(err), "got %v", err)
	f.assertExpectations(t)
}

func TestQuotationConvert_ExistingOrderForQuotation(t *testing.T) {
	f := newCRMFixture(t)
	svc := f.quotationService(quotationNow)

	expectLockedQuotation(f, quotationRow{status: constants.QuotationStatusAccepted,
		validUntil: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}, true)
	f.db.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM event_orders WHERE company_id = ? AND quotation_id = ?)")).
		WithArgs("c1", "q1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	f.db.ExpectRollback()

	_, err := svc.ConvertToEventOrder(context.Background(), f.user, "q1", models.EventOrderInput{})
	assert.True(t, appErrors.IsConflict(err), "got %v", err)
	f.assertExpectations(t)
}

func TestQuotationConvert_RequiresAccepted(t *testing.T) {
	f := newCRMFixture(t)
	svc := f.quotationService(quotationNow)

	expectLockedQuotation(f, quotationRow{status: constants.QuotationStatusSent,
		validUntil: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}, true)
	f.db.ExpectRollback()

	_, err := svc.ConvertToEventOrder(context.Background(), f.user, "q1", models.EventOrderInput{})
	assert.True(t, appErrors.IsInvalidState(err), "got %v", err)
	f.assertExpectations(t)
}

func TestQuotationExpireOverdue_DraftAndSent(t *testing.T) {
	f := newCRMFixture(t)
	svc := f.quotationService(quotationNow)
	today := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	f.db.ExpectBegin()
	f.db.ExpectQuery(regexp.QuoteMeta("FROM quotations WHERE status IN (?, ?) AND valid_until < ?")).
		WithArgs(constants.QuotationStatusDraft, constants.QuotationStatusSent, today).
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "id", "status"}).
			AddRow("c1", "q1", constants.QuotationStatusDraft).
			AddRow("c2", "q2", constants.QuotationStatusSent))
	f.db.ExpectExec(regexp.QuoteMeta("UPDATE quotations SET status = ?, updated_at = ? WHERE id IN (?, ?)")).
		WithArgs(constants.QuotationStatusExpired, quotationNow, "q1", "q2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	f.outbox.On("Enqueue", mock.Anything, events.QuotationExpired, mock.MatchedBy(func(p events.Payload) bool {
		return p.CompanyID == "c1" && p.EntityID == "q1" && p.Data["from"] == constants.QuotationStatusDraft
	})).Return(nil).Once()
	f.outbox.On("Enqueue", mock.Anything, events.QuotationExpired, mock.MatchedBy(func(p events.Payload) bool {
		return p.CompanyID == "c2" && p.EntityID == "q2" && p.ActorID == constants.SystemUserID
	})).Return(nil).Once()
	f.db.ExpectCommit()

	n, err := svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	f.assertExpectations(t)
}

func TestQuotationExpireOverdue_NothingDue(t *testing.T) {
	f := newCRMFixture(t)
	svc := f.quotationService(quotationNow)

	f.db.ExpectBegin()
	f.db.ExpectQuery(regexp.QuoteMeta("FROM quotations WHERE status IN")).
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "id", "status"}))
	f.db.ExpectCommit()

	n, err := svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	f.assertExpectations(t)
}
