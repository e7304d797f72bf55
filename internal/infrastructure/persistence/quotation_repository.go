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

const quotationColumns = `id, company_id, owner_id, customer_id, lead_id, number, title, status, currency, valid_until,
	discount_type, discount_value, subtotal, discount_amount, tax_rate, tax_amount, total, COALESCE(notes, ''),
	COALESCE(terms, ''), template_id, event_order_id, sent_at, accepted_at, rejected_at, created_at, updated_at`

const quotationInsertColumns = `id, company_id, owner_id, customer_id, lead_id, number, title, status, currency, valid_until,
	discount_type, discount_value, subtotal, discount_amount, tax_rate, tax_amount, total, notes,
	terms, template_id, event_order_id, sent_at, accepted_at, rejected_at, created_at, updated_at`

type QuotationRepository struct {
	repo
}

func NewQuotationRepository(db *sql.DB) *QuotationRepository {
	return &QuotationRepository{repo{db: db}}
}

func scanQuotation(row interface{ Scan(...interface{}) error }) (*models.Quotation, error) {
	var q models.Quotation
	var leadID, templateID, eventOrderID sql.NullString
	var sentAt, acceptedAt, rejectedAt sql.NullTime
	if err := row.Scan(&q.ID, &q.CompanyID, &q.OwnerID, &q.CustomerID, &leadID, &q.Number, &q.Title, &q.Status,
		&q.Currency, &q.ValidUntil, &q.DiscountType, &q.DiscountValue, &q.Subtotal, &q.DiscountAmount, &q.TaxRate,
		&q.TaxAmount, &q.Total, &q.Notes, &q.Terms, &templateID, &eventOrderID, &sentAt, &acceptedAt, &rejectedAt,
		&q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	q.LeadID = ptrFromNull(leadID)
	q.TemplateID = ptrFromNull(templateID)
	q.EventOrderID = ptrFromNull(eventOrderID)
	q.SentAt = timePtrFromNull(sentAt)
	q.AcceptedAt = timePtrFromNull(acceptedAt)
	q.RejectedAt = timePtrFromNull(rejectedAt)
	q.Items = []models.QuotationItem{}
	return &q, nil
}

// Create inserts the quotation header and its items. Call inside a transaction.
func (r *QuotationRepository) Create(ctx context.Context, q *models.Quotation) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		constants.TableQuotation, quotationInsertColumns)
	if _, err := r.exec(ctx).ExecContext(ctx, query, q.ID, q.CompanyID, q.OwnerID, q.CustomerID, nullStringPtr(q.LeadID),
		q.Number, q.Title, q.Status, q.Currency, q.ValidUntil, q.DiscountType, q.DiscountValue, q.Subtotal,
		q.DiscountAmount, q.TaxRate, q.TaxAmount, q.Total, q.Notes, q.Terms, nullStringPtr(q.TemplateID),
		nullStringPtr(q.EventOrderID), nullTime(q.SentAt), nullTime(q.AcceptedAt), nullTime(q.RejectedAt),
		q.CreatedAt, q.UpdatedAt); err != nil {
		return err
	}
	return r.insertItems(ctx, q)
}

func (r *QuotationRepository) insertItems(ctx context.Context, q *models.Quotation) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, company_id, quotation_id, position, description, quantity, unit_price, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableQuotationItem)
	for _, it := range q.Items {
		if _, err := r.exec(ctx).ExecContext(ctx, query, it.ID, q.CompanyID, q.ID, it.Position, it.Description,
			it.Quantity, it.UnitPrice, it.Amount); err != nil {
			return fmt.Errorf("failed to insert quotation item: %w", err)
		}
	}
	return nil
}

func (r *QuotationRepository) loadItems(ctx context.Context, q *models.Quotation) error {
	query := fmt.Sprintf(`SELECT id, quotation_id, position, description, quantity, unit_price, amount
		FROM %s WHERE company_id = ? AND quotation_id = ? ORDER BY position ASC`, constants.TableQuotationItem)
	rows, err := r.exec(ctx).QueryContext(ctx, query, q.CompanyID, q.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	items := make([]models.QuotationItem, 0)
	for rows.Next() {
		var it models.QuotationItem
		if err := rows.Scan(&it.ID, &it.QuotationID, &it.Position, &it.Description, &it.Quantity, &it.UnitPrice, &it.Amount); err != nil {
			return err
		}
		items = append(items, it)
	}
	q.Items = items
	return rows.Err()
}

// Get returns the quotation with items, or sql.ErrNoRows when outside scope.
func (r *QuotationRepository) Get(ctx context.Context, scope domain.Scope, id string) (*models.Quotation, error) {
	return r.get(ctx, scope, id, false)
}

// GetForUpdate locks the quotation row for the rest of the transaction.
func (r *QuotationRepository) GetForUpdate(ctx context.Context, scope domain.Scope, id string) (*models.Quotation, error) {
	return r.get(ctx, scope, id, true)
}

func (r *QuotationRepository) get(ctx context.Context, scope domain.Scope, id string, lock bool) (*models.Quotation, error) {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND %s", quotationColumns, constants.TableQuotation, where)
	if lock {
		query += " FOR UPDATE"
	}
	q, err := scanQuotation(r.exec(ctx).QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// List returns headers only; items are loaded by Get.
func (r *QuotationRepository) List(ctx context.Context, scope domain.Scope, f models.QuotationFilter) ([]*models.Quotation, int, error) {
	where, args := scopeFilter(scope, "", true)
	clauses := []string{where}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.CustomerID != "" {
		clauses = append(clauses, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	whereSQL := strings.Join(clauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", constants.TableQuotation, whereSQL)
	if err := r.exec(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := clampPage(f.Limit, f.Offset)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT ? OFFSET ?", quotationColumns, constants.TableQuotation, whereSQL)
	rows, err := r.exec(ctx).QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	quotations := make([]*models.Quotation, 0)
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		quotations = append(quotations, q)
	}
	return quotations, total, rows.Err()
}

// Update writes the header. When replaceItems is set the item rows are rewritten too.
func (r *QuotationRepository) Update(ctx context.Context, scope domain.Scope, q *models.Quotation, replaceItems bool) error {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf(`UPDATE %s SET customer_id = ?, lead_id = ?, title = ?, status = ?, currency = ?, valid_until = ?,
		discount_type = ?, discount_value = ?, subtotal = ?, discount_amount = ?, tax_rate = ?, tax_amount = ?, total = ?,
		notes = ?, terms = ?, template_id = ?, event_order_id = ?, sent_at = ?, accepted_at = ?, rejected_at = ?,
		updated_at = ? WHERE id = ? AND %s`, constants.TableQuotation, where)
	values := []interface{}{q.CustomerID, nullStringPtr(q.LeadID), q.Title, q.Status, q.Currency, q.ValidUntil,
		q.DiscountType, q.DiscountValue, q.Subtotal, q.DiscountAmount, q.TaxRate, q.TaxAmount, q.Total, q.Notes, q.Terms,
		nullStringPtr(q.TemplateID), nullStringPtr(q.EventOrderID), nullTime(q.SentAt), nullTime(q.AcceptedAt),
		nullTime(q.RejectedAt), q.UpdatedAt, q.ID}
	if err := affectedOne(r.exec(ctx).ExecContext(ctx, query, append(values, args...)...)); err != nil {
		return err
	}
	if !replaceItems {
		return nil
	}
	del := fmt.Sprintf("DELETE FROM %s WHERE company_id = ? AND quotation_id = ?", constants.TableQuotationItem)
	if _, err := r.exec(ctx).ExecContext(ctx, del, q.CompanyID, q.ID); err != nil {
		return err
	}
	return r.insertItems(ctx, q)
}

func (r *QuotationRepository) Delete(ctx context.Context, scope domain.Scope, id string) error {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND %s", constants.TableQuotation, where)
	if err := affectedOne(r.exec(ctx).ExecContext(ctx, query, append([]interface{}{id}, args...)...)); err != nil {
		return err
	}
	del := fmt.Sprintf("DELETE FROM %s WHERE company_id = ? AND quotation_id = ?", constants.TableQuotationItem)
	_, err := r.exec(ctx).ExecContext(ctx, del, scope.CompanyID, id)
	return err
}

// ListOverdueForUpdate locks quotations in one of statuses whose valid_until is before today, across tenants.
func (r *QuotationRepository) ListOverdueForUpdate(ctx context.Context, today time.Time, statuses ...string) ([]models.QuotationRef, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT company_id, id, status FROM %s WHERE status IN (%s) AND valid_until < ? ORDER BY id FOR UPDATE",
		constants.TableQuotation, placeholders(len(statuses)))
	args := make([]interface{}, 0, len(statuses)+1)
	for _, st := range statuses {
		args = append(args, st)
	}
	args = append(args, today)

	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []models.QuotationRef
	for rows.Next() {
		var ref models.QuotationRef
		if err := rows.Scan(&ref.CompanyID, &ref.ID, &ref.Status); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// SetStatus moves the given quotations to status, across tenants.
func (r *QuotationRepository) SetStatus(ctx context.Context, status string, at time.Time, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	update := fmt.Sprintf("UPDATE %s SET status = ?, updated_at = ? WHERE id IN (%s)", constants.TableQuotation, placeholders(len(ids)))
	args := []interface{}{status, at}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := r.exec(ctx).ExecContext(ctx, update, args...)
	return err
}
