package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

const leadColumns = `id, company_id, owner_id, name, email, phone, organization, source, status, event_type,
	event_date, estimated_pax, budget, score, lost_reason, COALESCE(notes, ''), converted_customer_id, converted_at,
	created_at, updated_at`

const leadInsertColumns = `id, company_id, owner_id, name, email, phone, organization, source, status, event_type,
	event_date, estimated_pax, budget, score, lost_reason, notes, converted_customer_id, converted_at,
	created_at, updated_at`

type LeadRepository struct {
	repo
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{repo{db: db}}
}

func scanLead(row interface{ Scan(...interface{}) error }) (*models.Lead, error) {
	var l models.Lead
	var eventDate, convertedAt sql.NullTime
	var convertedID sql.NullString
	if err := row.Scan(&l.ID, &l.CompanyID, &l.OwnerID, &l.Name, &l.Email, &l.Phone, &l.Organization, &l.Source,
		&l.Status, &l.EventType, &eventDate, &l.EstimatedPax, &l.Budget, &l.Score, &l.LostReason, &l.Notes,
		&convertedID, &convertedAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.EventDate = timePtrFromNull(eventDate)
	l.ConvertedCustomerID = ptrFromNull(convertedID)
	l.ConvertedAt = timePtrFromNull(convertedAt)
	return &l, nil
}

func (r *LeadRepository) Create(ctx context.Context, l *models.Lead) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		constants.TableLead, leadInsertColumns)
	_, err := r.exec(ctx).ExecContext(ctx, query, l.ID, l.CompanyID, l.OwnerID, l.Name, l.Email, l.Phone,
		l.Organization, l.Source, l.Status, l.EventType, nullTime(l.EventDate), l.EstimatedPax, l.Budget, l.Score,
		l.LostReason, l.Notes, nullStringPtr(l.ConvertedCustomerID), nullTime(l.ConvertedAt), l.CreatedAt, l.UpdatedAt)
	return err
}

// Get returns sql.ErrNoRows when the lead is outside the scope.
func (r *LeadRepository) Get(ctx context.Context, scope domain.Scope, id string) (*models.Lead, error) {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND %s", leadColumns, constants.TableLead, where)
	return scanLead(r.exec(ctx).QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
}

// GetForUpdate locks the lead row for the rest of the transaction.
func (r *LeadRepository) GetForUpdate(ctx context.Context, scope domain.Scope, id string) (*models.Lead, error) {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND %s FOR UPDATE", leadColumns, constants.TableLead, where)
	return scanLead(r.exec(ctx).QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
}

// List returns one page of leads plus the total matching count.
func (r *LeadRepository) List(ctx context.Context, scope domain.Scope, f models.LeadFilter) ([]*models.Lead, int, error) {
	where, args := scopeFilter(scope, "", true)
	clauses := []string{where}

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, f.Source)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(s) + "%"
		clauses = append(clauses, "(name LIKE ? OR email LIKE ? OR organization LIKE ?)")
		args = append(args, like, like, like)
	}
	whereSQL := strings.Join(clauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", constants.TableLead, whereSQL)
	if err := r.exec(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := clampPage(f.Limit, f.Offset)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		leadColumns, constants.TableLead, whereSQL)
	rows, err := r.exec(ctx).QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]*models.Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, l)
	}
	return leads, total, rows.Err()
}

// Update writes every mutable column of the lead.
func (r *LeadRepository) Update(ctx context.Context, scope domain.Scope, l *models.Lead) error {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf(`UPDATE %s SET owner_id = ?, name = ?, email = ?, phone = ?, organization = ?, source = ?,
		status = ?, event_type = ?, event_date = ?, estimated_pax = ?, budget = ?, score = ?, lost_reason = ?, notes = ?,
		converted_customer_id = ?, converted_at = ?, updated_at = ? WHERE id = ? AND %s`, constants.TableLead, where)
	values := []interface{}{l.OwnerID, l.Name, l.Email, l.Phone, l.Organization, l.Source, l.Status, l.EventType,
		nullTime(l.EventDate), l.EstimatedPax, l.Budget, l.Score, l.LostReason, l.Notes,
		nullStringPtr(l.ConvertedCustomerID), nullTime(l.ConvertedAt), l.UpdatedAt, l.ID}
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, append(values, args...)...))
}

func (r *LeadRepository) Delete(ctx context.Context, scope domain.Scope, id string) error {
	where, args := scopeFilter(scope, "", true)
	del := fmt.Sprintf("DELETE FROM %s WHERE company_id = ? AND lead_id = ?", constants.TableLeadActivity)
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND %s", constants.TableLead, where)
	if err := affectedOne(r.exec(ctx).ExecContext(ctx, query, append([]interface{}{id}, args...)...)); err != nil {
		return err
	}
	_, err := r.exec(ctx).ExecContext(ctx, del, scope.CompanyID, id)
	return err
}

func (r *LeadRepository) AddActivity(ctx context.Context, a *models.LeadActivity) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, company_id, lead_id, user_id, kind, description, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableLeadActivity)
	_, err := r.exec(ctx).ExecContext(ctx, query, a.ID, a.CompanyID, a.LeadID, a.UserID, a.Kind, a.Description,
		a.OccurredAt, a.CreatedAt)
	return err
}

func (r *LeadRepository) ListActivities(ctx context.Context, companyID, leadID string) ([]*models.LeadActivity, error) {
	query := fmt.Sprintf(`SELECT id, company_id, lead_id, user_id, kind, COALESCE(description, ''), occurred_at, created_at
		FROM %s WHERE company_id = ? AND lead_id = ? ORDER BY occurred_at DESC`, constants.TableLeadActivity)
	rows, err := r.exec(ctx).QueryContext(ctx, query, companyID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]*models.LeadActivity, 0)
	for rows.Next() {
		var a models.LeadActivity
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.LeadID, &a.UserID, &a.Kind, &a.Description, &a.OccurredAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		activities = append(activities, &a)
	}
	return activities, rows.Err()
}

// ListForExport returns leads in scope, newest first, capped at max rows.
func (r *LeadRepository) ListForExport(ctx context.Context, scope domain.Scope, max int) ([]*models.Lead, error) {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT ?", leadColumns, constants.TableLead, where)
	rows, err := r.exec(ctx).QueryContext(ctx, query, append(args, max)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]*models.Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
