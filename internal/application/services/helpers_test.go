package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

func TestPastValidity(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	validUntil := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	assert.False(t, pastValidity(validUntil, time.Date(2026, 3, 10, 16, 59, 0, 0, time.UTC), jakarta))
	assert.True(t, pastValidity(validUntil, time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC), jakarta))
	assert.False(t, pastValidity(validUntil, time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC), time.UTC))
	assert.False(t, pastValidity(validUntil, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.UTC))
}

func TestFormatDocumentNumber(t *testing.T) {
	assert.Equal(t, "QT-2026-0001", formatDocumentNumber("QT", 2026, 1))
	assert.Equal(t, "EO-2026-0420", formatDocumentNumber("EO", 2026, 420))
	assert.Equal(t, "QT-2027-12345", formatDocumentNumber("QT", 2027, 12345))
}

func TestDerivePaymentStatus(t *testing.T) {
	assert.Equal(t, constants.PaymentStatusUnpaid, derivePaymentStatus(1000, 0))
	assert.Equal(t, constants.PaymentStatusPartial, derivePaymentStatus(1000, 250))
	assert.Equal(t, constants.PaymentStatusPaid, derivePaymentStatus(1000, 1000))
	assert.Equal(t, constants.PaymentStatusPaid, derivePaymentStatus(0, 10))
}

func TestConversionRate(t *testing.T) {
	assert.Equal(t, 0.0, conversionRate(nil))
	assert.Equal(t, 33.33, conversionRate([]models.StatusTotal{
		{Status: constants.LeadStatusWon, Count: 1},
		{Status: constants.LeadStatusLost, Count: 1},
		{Status: constants.LeadStatusNew, Count: 1},
	}))
	assert.Equal(t, 100.0, conversionRate([]models.StatusTotal{{Status: constants.LeadStatusWon, Count: 4}}))
}

func TestValidateEventOrder(t *testing.T) {
	valid := func() *models.EventOrder {
		return &models.EventOrder{
			Title:     "Annual gala",
			EventDate: time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC),
			StartTime: "18:00",
			EndTime:   "23:30",
			Pax:       300,
			Currency:  "IDR",
		}
	}
	require.NoError(t, validateEventOrder(valid()))

	tests := []struct {
		name string
		mutate func(e *models.EventOrder)
	}{
		{"missing title", func(e *models.EventOrder) { e.Title = "" }},
		{"missing date", func(e *models.EventOrder) { e.EventDate = time.Time{} }},
		{"bad start time", func(e *models.EventOrder) { e.StartTime = "24:00" }},
		{"bad end time", func(e *models.EventOrder) { e.EndTime = "7pm" }},
		{"negative pax", func(e *models.EventOrder) { e.Pax = -1 }},
		{"negative total", func(e *models.EventOrder) { e.TotalAmount = -5 }},
		{"bad currency", func(e *models.EventOrder) { e.Currency = "rupiah" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			assert.True(t, appErrors.IsValidation(validateEventOrder(e)))
		})
	}
}

func TestBuildWorkbook(t *testing.T) {
	content, err := buildWorkbook("Leads", []string{"Name", "Budget"}, [][]interface{}{
		{"Acme Corp", 15000000.0},
		{"Globex", 2500000.0},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Leads"}, f.GetSheetList())
	rows, err := f.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Name", "Budget"}, rows[0])
	assert.Equal(t, "Acme Corp", rows[1][0])
	assert.Equal(t, "Globex", rows[2][0])
}
