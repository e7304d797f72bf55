package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

var leadRowColumns = []string{"id", "company_id", "owner_id", "name", "email", "phone", "organization", "source",
	"status", "event_type", "event_date", "estimated_pax", "budget", "score", "lost_reason", "notes",
	"converted_customer_id", "converted_at", "created_at", "updated_at"}

// convertedLeadRows is a lead that ConvertLead already turned into customer cust-9.
func convertedLeadRows() *sqlmock.Rows {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	converted := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(leadRowColumns).AddRow("lead-1", "c1", "u1", "Budi", "budi@example.com", "", "PT Maju",
		constants.LeadSourceWebsite, constants.LeadStatusWon, "wedding", nil, 200, 150000000.0, 70, "", "",
		"cust-9", converted, created, converted)
}

func (f *crmFixture) leadService() *LeadService {
	return NewLeadService(persistence.NewLeadRepository(f.raw), persistence.NewCustomerRepository(f.raw), nil, nil,
		f.access, f.outbox, f.tm, zap.NewNop())
}

func expectLockedLead(f *crmFixture, rows *sqlmock.Rows) {
	f.db.ExpectBegin()
	f.db.ExpectQuery(regexp.QuoteMeta("FROM leads WHERE id = ? AND company_id = ? FOR UPDATE")).
		WithArgs("lead-1", "c1").
		WillReturnRows(rows)
}

func TestConvertLead_SecondConversionConflicts(t *testing.T) {
	f := newCRMFixture(t)
	svc := f.leadService()

	expectLockedLead(f, convertedLeadRows())
	f.db.ExpectRollback()

	_, err := svc.ConvertLead(context.Background(), f.user, "lead-1")
	assert.True(t, appErrors.IsConflict(err), "got %v", err)
	f.assertExpectations(t)
}

func TestUpdateLead_RejectsConvertedLead(t *testing.T) {
	f := newCRMFixture(t)
	svc := f.leadService()

	expectLockedLead(f, convertedLeadRows())
	f.db.ExpectRollback()

	_, err := svc.UpdateLead(context.Background(), f.user, "lead-1", models.LeadInput{Name: strPtr("Budi Santoso")})
	assert.True(t, appErrors.IsInvalidState(err), "got %v", err)
	f.assertExpectations(t)
}

func TestChangeLeadStatus_RejectsConvertedLead(t *testing.T) {
	f := newCRMFixture(t)
	svc := f.leadService()

	expectLockedLead(f, convertedLeadRows())
	f.db.ExpectRollback()

	_, err := svc.ChangeStatus(context.Background(), f.user, "lead-1", constants.LeadStatusLost, "went with a competitor")
	assert.True(t, appErrors.IsInvalidState(err), "got %v", err)
	f.assertExpectations(t)
}

func TestChangeLeadStatus_WonOnlyThroughConversion(t *testing.T) {
	f := newCRMFixture(t)
	svc := f.leadService()

	_, err := svc.ChangeStatus(context.Background(), f.user, "lead-1", constants.LeadStatusWon, "")
	assert.True(t, appErrors.IsValidation(err), "got %v", err)
	f.assertExpectations(t)
}
