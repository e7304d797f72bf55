package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

const paymentColumns = `id, company_id, event_order_id, customer_id, amount, currency, method, status, reference,
	external_id, provider_invoice_id, invoice_url, paid_at, expires_at, recorded_by, created_at, updated_at`

type PaymentRepository struct {
	repo
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{repo{db: db}}
}

func scanPayment(row interface{ Scan(...interface{}) error }) (*models.Payment, error) {
	var p models.Payment
	var externalID, invoiceID sql.NullString
	var paidAt, expiresAt sql.NullTime
	if err := row.Scan(&p.ID, &p.CompanyID, &p.EventOrderID, &p.CustomerID, &p.Amount, &p.Currency, &p.Method, &p.Status,
		&p.Reference, &externalID, &invoiceID, &p.InvoiceURL, &paidAt, &expiresAt, &p.RecordedBy, &p.CreatedAt,
		&p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ExternalID = externalID.String
	p.ProviderInvoiceID = invoiceID.String
	p.PaidAt = timePtrFromNull(paidAt)
	p.ExpiresAt = timePtrFromNull(expiresAt)
	return &p, nil
}

// paymentScope restricts own-scope callers to payments of event orders they own.
func paymentScope(scope domain.Scope) (string, []interface{}) {
	where, args := scopeFilter(scope, "", false)
	if scope.OwnerID != "" {
		where += fmt.Sprintf(" AND event_order_id IN (SELECT id FROM %s WHERE company_id = ? AND owner_id = ?)", constants.TableEventOrder)
		args = append(args, scope.CompanyID, scope.OwnerID)
	}
	return where, args
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TablePayment, paymentColumns)
	_, err := r.exec(ctx).ExecContext(ctx, query, p.ID, p.CompanyID, p.EventOrderID, p.CustomerID, p.Amount, p.Currency,
		p.Method, p.Status, p.Reference, nullString(p.ExternalID), nullString(p.ProviderInvoiceID), p.InvoiceURL,
		nullTime(p.PaidAt), nullTime(p.ExpiresAt), p.RecordedBy, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *PaymentRepository) Get(ctx context.Context, scope domain.Scope, id string) (*models.Payment, error) {
	where, args := paymentScope(scope)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND %s", paymentColumns, constants.TablePayment, where)
	return scanPayment(r.exec(ctx).QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
}

func (r *PaymentRepository) GetForUpdate(ctx context.Context, scope domain.Scope, id string) (*models.Payment, error) {
	where, args := paymentScope(scope)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND %s FOR UPDATE", paymentColumns, constants.TablePayment, where)
	return scanPayment(r.exec(ctx).QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
}

// GetByExternalIDForUpdate resolves a gateway callback to its payment regardless of tenant.
func (r *PaymentRepository) GetByExternalIDForUpdate(ctx context.Context, externalID string) (*models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE external_id = ? FOR UPDATE", paymentColumns, constants.TablePayment)
	return scanPayment(r.exec(ctx).QueryRowContext(ctx, query, externalID))
}

func (r *PaymentRepository) List(ctx context.Context, scope domain.Scope, f models.PaymentFilter) ([]*models.Payment, int, error) {
	where, args := paymentScope(scope)
	clauses := []string{where}
	if f.EventOrderID != "" {
		clauses = append(clauses, "event_order_id = ?")
		args = append(args, f.EventOrderID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Method != "" {
		clauses = append(clauses, "method = ?")
		args = append(args, f.Method)
	}
	whereSQL := strings.Join(clauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", constants.TablePayment, whereSQL)
	if err := r.exec(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := clampPage(f.Limit, f.Offset)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT ? OFFSET ?", paymentColumns, constants.TablePayment, whereSQL)
	rows, err := r.exec(ctx).QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	payments := make([]*models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, p)
	}
	return payments, total, rows.Err()
}

// UpdateStatus persists status, paid_at and provider fields of a payment.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, p *models.Payment) error {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, paid_at = ?, provider_invoice_id = ?, invoice_url = ?, expires_at = ?,
		updated_at = ? WHERE company_id = ? AND id = ?`, constants.TablePayment)
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, p.Status, nullTime(p.PaidAt), nullString(p.ProviderInvoiceID),
		p.InvoiceURL, nullTime(p.ExpiresAt), p.UpdatedAt, p.CompanyID, p.ID))
}

// SumByStatus totals an event order's payments in the given statuses.
func (r *PaymentRepository) SumByStatus(ctx context.Context, companyID, eventOrderID string, statuses ...string) (float64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf("SELECT COALESCE(SUM(amount), 0) FROM %s WHERE company_id = ? AND event_order_id = ? AND status IN (%s)",
		constants.TablePayment, placeholders(len(statuses)))
	args := []interface{}{companyID, eventOrderID}
	for _, s := range statuses {
		args = append(args, s)
	}
	var total float64
	err := r.exec(ctx).QueryRowContext(ctx, query, args...).Scan(&total)
	return total, err
}

// ListPendingInvoices returns gateway invoices still pending that were created before cutoff, across tenants.
func (r *PaymentRepository) ListPendingInvoices(ctx context.Context, cutoff time.Time, limit int) ([]*models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE method = ? AND status = ? AND created_at < ? ORDER BY created_at ASC LIMIT ?",
		paymentColumns, constants.TablePayment)
	rows, err := r.exec(ctx).QueryContext(ctx, query, constants.PaymentMethodXenditInvoice, constants.PaymentPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ListForExport returns paid and pending payments in scope, newest first.
func (r *PaymentRepository) ListForExport(ctx context.Context, scope domain.Scope, max int) ([]*models.Payment, error) {
	where, args := paymentScope(scope)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT ?", paymentColumns, constants.TablePayment, where)
	rows, err := r.exec(ctx).QueryContext(ctx, query, append(args, max)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
