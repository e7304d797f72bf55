package services

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

// Export kinds
const (
	ExportLeads     = "leads"
	ExportCustomers = "customers"
	ExportPayments  = "payments"
)

const exportMaxRows = 10000

// ExportFile is a generated workbook.
type ExportFile struct {
	Filename string
	Content  []byte
}

type ExportService struct {
	leads     *persistence.LeadRepository
	customers *persistence.CustomerRepository
	payments  *persistence.PaymentRepository
	access    *AccessService
	logger    *zap.Logger
	now       func() time.Time
}

func NewExportService(leads *persistence.LeadRepository, customers *persistence.CustomerRepository,
	payments *persistence.PaymentRepository, access *AccessService, logger *zap.Logger) *ExportService {
	return &ExportService{
		leads:     leads,
		customers: customers,
		payments:  payments,
		access:    access,
		logger:    logger,
		now:       time.Now,
	}
}

// Export writes the caller's visible rows of one kind to an xlsx workbook.
func (s *ExportService) Export(ctx context.Context, user *auth.UserSession, kind string) (*ExportFile, error) {
	var headers []string
	var rows [][]interface{}

	switch kind {
	case ExportLeads:
		scope, err := s.access.Authorize(ctx, user, constants.ResourceLeads, constants.PermRead)
		if err != nil {
			return nil, err
		}
		leads, err := s.leads.ListForExport(ctx, scope, exportMaxRows)
		if err != nil {
			return nil, err
		}
		headers = []string{"Name", "Email", "Phone", "Organization", "Source", "Status", "Event Type", "Event Date",
			"Estimated Pax", "Budget", "Score", "Created At"}
		for _, l := range leads {
			eventDate := ""
			if l.EventDate != nil {
				eventDate = l.EventDate.Format("2006-01-02")
			}
			rows = append(rows, []interface{}{l.Name, l.Email, l.Phone, l.Organization, l.Source, l.Status, l.EventType,
				eventDate, l.EstimatedPax, l.Budget, l.Score, l.CreatedAt.Format(time.RFC3339)})
		}
	case ExportCustomers:
		scope, err := s.access.Authorize(ctx, user, constants.ResourceCustomers, constants.PermRead)
		if err != nil {
			return nil, err
		}
		customers, err := s.customers.ListForExport(ctx, scope, exportMaxRows)
		if err != nil {
			return nil, err
		}
		headers = []string{"Name", "Email", "Phone", "Organization", "Address", "Tax ID", "Created At"}
		for _, c := range customers {
			rows = append(rows, []interface{}{c.Name, c.Email, c.Phone, c.Organization, c.Address, c.TaxID,
				c.CreatedAt.Format(time.RFC3339)})
		}
	case ExportPayments:
		scope, err := s.access.Authorize(ctx, user, constants.ResourcePayments, constants.PermRead)
		if err != nil {
			return nil, err
		}
		payments, err := s.payments.ListForExport(ctx, scope, exportMaxRows)
		if err != nil {
			return nil, err
		}
		headers = []string{"Payment ID", "Event Order ID", "Amount", "Currency", "Method", "Status", "Reference",
			"Paid At", "Created At"}
		for _, p := range payments {
			paidAt := ""
			if p.PaidAt != nil {
				paidAt = p.PaidAt.Format(time.RFC3339)
			}
			rows = append(rows, []interface{}{p.ID, p.EventOrderID, p.Amount, p.Currency, p.Method, p.Status,
				p.Reference, paidAt, p.CreatedAt.Format(time.RFC3339)})
		}
	default:
		return nil, appErrors.NewValidationError("kind", "export kind must be leads, customers or payments")
	}

	content, err := buildWorkbook(kind, headers, rows)
	if err != nil {
		return nil, appErrors.NewInternalError("failed to build export", err)
	}
	s.logger.Info("Export generated", zap.String("kind", kind), zap.Int("rows", len(rows)), zap.String("user_id", user.ID))
	return &ExportFile{
		Filename: fmt.Sprintf("%s-%s.xlsx", kind, s.now().UTC().Format("20060102-150405")),
		Content:  content,
	}, nil
}

func buildWorkbook(sheetName string, headers []string, rows [][]interface{}) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetRowStyle(sheetName, 1, 1, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &rows[i]); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "A", lastCol, 20); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
