package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

var customerRowColumns = []string{"id", "company_id", "owner_id", "name", "email", "phone", "organization", "address",
	"tax_id", "notes", "source_lead_id", "created_at", "updated_at"}

func customerRows() *sqlmock.Rows {
	created := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(customerRowColumns).AddRow("cust-1", "c1", "u1", "PT Sinar", "billing@sinar.co.id", "",
		"PT Sinar", "", "", "", nil, created, created)
}

func (f *crmFixture) customerService() *CustomerService {
	return NewCustomerService(persistence.NewCustomerRepository(f.raw), nil, f.access, zap.NewNop())
}

func expectCustomerReferences(f *crmFixture, quotations, orders int) {
	f.db.ExpectQuery(regexp.QuoteMeta("FROM customers WHERE id = ? AND company_id = ?")).
		WithArgs("cust-1", "c1").
		WillReturnRows(customerRows())
	f.db.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM quotations WHERE company_id = ? AND customer_id = ?")).
		WithArgs("c1", "cust-1", "c1", "cust-1").
		WillReturnRows(sqlmock.NewRows([]string{"quotations", "event_orders"}).AddRow(quotations, orders))
}

func TestDeleteCustomer_ReferencedConflicts(t *testing.T) {
	tests := []struct {
		name               string
		quotations, orders int
	}{
		{"quotation", 1, 0},
		{"event order", 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCRMFixture(t)
			expectCustomerReferences(f, tt.quotations, tt.orders)

			err := f.customerService().DeleteCustomer(context.Background(), f.user, "cust-1")
			assert.True(t, appErrors.IsConflict(err), "got %v", err)
			f.assertExpectations(t)
		})
	}
}

func TestDeleteCustomer_Unreferenced(t *testing.T) {
	f := newCRMFixture(t)
	expectCustomerReferences(f, 0, 0)
	f.db.ExpectExec(regexp.QuoteMeta("DELETE FROM customers WHERE id = ? AND company_id = ?")).
		WithArgs("cust-1", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, f.customerService().DeleteCustomer(context.Background(), f.user, "cust-1"))
	f.assertExpectations(t)
}

func TestDeleteCustomer_OutOfScope(t *testing.T) {
	f := newCRMFixture(t)
	f.db.ExpectQuery(regexp.QuoteMeta("FROM customers WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows(customerRowColumns))

	err := f.customerService().DeleteCustomer(context.Background(), f.user, "cust-1")
	assert.True(t, appErrors.IsNotFound(err), "got %v", err)
	f.assertExpectations(t)
}
