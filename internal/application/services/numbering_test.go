package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

func TestDocumentYearUsesCompanyTimezone(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	newYearsEve := time.Date(2026, 12, 31, 17, 30, 0, 0, time.UTC)

	assert.Equal(t, 2027, documentYear(newYearsEve, jakarta))
	assert.Equal(t, 2026, documentYear(newYearsEve, time.UTC))
	assert.Equal(t, 2026, documentYear(newYearsEve, nil))
}

func TestNextDocumentNumberCountsInLocalYear(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_counters")).
		WithArgs("c1", constants.DocumentQuotation, 2027).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT last_value FROM document_counters")).
		WithArgs("c1", constants.DocumentQuotation, 2027).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(1))
	mock.ExpectCommit()

	var number string
	err = persistence.NewTransactionManager(db).WithTransaction(context.Background(), func(ctx context.Context) error {
		var err error
		number, err = nextDocumentNumber(ctx, persistence.NewCounterRepository(db), "c1", constants.DocumentQuotation,
			time.Date(2026, 12, 31, 17, 30, 0, 0, time.UTC), time.FixedZone("WIB", 7*3600))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "QUO-2027-0001", number)
	assert.NoError(t, mock.ExpectationsWereMet())
}
