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

const eventOrderColumns = `id, company_id, owner_id, customer_id, quotation_id, number, title, event_type, event_date,
	start_time, end_time, venue, pax, status, currency, total_amount, paid_amount, payment_status, COALESCE(notes, ''),
	calendar_event_id, created_at, updated_at`

const eventOrderInsertColumns = `id, company_id, owner_id, customer_id, quotation_id, number, title, event_type, event_date,
	start_time, end_time, venue, pax, status, currency, total_amount, paid_amount, payment_status, notes,
	calendar_event_id, created_at, updated_at`

type EventOrderRepository struct {
	repo
}

func NewEventOrderRepository(db *sql.DB) *EventOrderRepository {
	return &EventOrderRepository{repo{db: db}}
}

func scanEventOrder(row interface{ Scan(...interface{}) error }) (*models.EventOrder, error) {
	var e models.EventOrder
	var quotationID sql.NullString
	if err := row.Scan(&e.ID, &e.CompanyID, &e.OwnerID, &e.CustomerID, &quotationID, &e.Number, &e.Title, &e.EventType,
		&e.EventDate, &e.StartTime, &e.EndTime, &e.Venue, &e.Pax, &e.Status, &e.Currency, &e.TotalAmount, &e.PaidAmount,
		&e.PaymentStatus, &e.Notes, &e.CalendarEventID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.QuotationID = ptrFromNull(quotationID)
	return &e, nil
}

func (r *EventOrderRepository) Create(ctx context.Context, e *models.EventOrder) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		constants.TableEventOrder, eventOrderInsertColumns)
	_, err := r.exec(ctx).ExecContext(ctx, query, e.ID, e.CompanyID, e.OwnerID, e.CustomerID, nullStringPtr(e.QuotationID),
		e.Number, e.Title, e.EventType, e.EventDate, e.StartTime, e.EndTime, e.Venue, e.Pax, e.Status, e.Currency,
		e.TotalAmount, e.PaidAmount, e.PaymentStatus, e.Notes, e.CalendarEventID, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *EventOrderRepository) Get(ctx context.Context, scope domain.Scope, id string) (*models.EventOrder, error) {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND %s", eventOrderColumns, constants.TableEventOrder, where)
	return scanEventOrder(r.exec(ctx).QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
}

// GetForUpdate locks the row; payment changes serialize on it.
func (r *EventOrderRepository) GetForUpdate(ctx context.Context, scope domain.Scope, id string) (*models.EventOrder, error) {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND %s FOR UPDATE", eventOrderColumns, constants.TableEventOrder, where)
	return scanEventOrder(r.exec(ctx).QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
}

func (r *EventOrderRepository) ExistsForQuotation(ctx context.Context, companyID, quotationID string) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE company_id = ? AND quotation_id = ?)", constants.TableEventOrder)
	err := r.exec(ctx).QueryRowContext(ctx, query, companyID, quotationID).Scan(&exists)
	return exists, err
}

func (r *EventOrderRepository) List(ctx context.Context, scope domain.Scope, f models.EventOrderFilter) ([]*models.EventOrder, int, error) {
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
	if f.From != nil {
		clauses = append(clauses, "event_date >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		clauses = append(clauses, "event_date <= ?")
		args = append(args, *f.To)
	}
	whereSQL := strings.Join(clauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", constants.TableEventOrder, whereSQL)
	if err := r.exec(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := clampPage(f.Limit, f.Offset)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY event_date ASC LIMIT ? OFFSET ?", eventOrderColumns, constants.TableEventOrder, whereSQL)
	rows, err := r.exec(ctx).QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := make([]*models.EventOrder, 0)
	for rows.Next() {
		e, err := scanEventOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, e)
	}
	return orders, total, rows.Err()
}

func (r *EventOrderRepository) Update(ctx context.Context, scope domain.Scope, e *models.EventOrder) error {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf(`UPDATE %s SET title = ?, event_type = ?, event_date = ?, start_time = ?, end_time = ?, venue = ?,
		pax = ?, status = ?, currency = ?, total_amount = ?, paid_amount = ?, payment_status = ?, notes = ?,
		calendar_event_id = ?, updated_at = ? WHERE id = ? AND %s`, constants.TableEventOrder, where)
	values := []interface{}{e.Title, e.EventType, e.EventDate, e.StartTime, e.EndTime, e.Venue, e.Pax, e.Status,
		e.Currency, e.TotalAmount, e.PaidAmount, e.PaymentStatus, e.Notes, e.CalendarEventID, e.UpdatedAt, e.ID}
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, append(values, args...)...))
}

// SetCalendarEventID is written by the calendar sync outside any user scope.
func (r *EventOrderRepository) SetCalendarEventID(ctx context.Context, companyID, id, calendarEventID string) error {
	query := fmt.Sprintf("UPDATE %s SET calendar_event_id = ?, updated_at = ? WHERE company_id = ? AND id = ?", constants.TableEventOrder)
	_, err := r.exec(ctx).ExecContext(ctx, query, calendarEventID, time.Now().UTC(), companyID, id)
	return err
}

// Upcoming lists non-cancelled orders with an event date in [from, to].
func (r *EventOrderRepository) Upcoming(ctx context.Context, scope domain.Scope, from, to time.Time, limit int) ([]models.UpcomingEvent, error) {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf(`SELECT id, number, title, event_date, status FROM %s
		WHERE %s AND event_date BETWEEN ? AND ? AND status <> ? ORDER BY event_date ASC LIMIT ?`, constants.TableEventOrder, where)
	args = append(args, from, to, constants.EventOrderStatusCancelled, limit)
	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.UpcomingEvent, 0)
	for rows.Next() {
		var u models.UpcomingEvent
		if err := rows.Scan(&u.ID, &u.Number, &u.Title, &u.EventDate, &u.Status); err != nil {
			return nil, err
		}
		events = append(events, u)
	}
	return events, rows.Err()
}
