package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

// ReportRepository serves dashboard aggregates and validated ad-hoc queries.
type ReportRepository struct {
	repo
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{repo{db: db}}
}

// LeadsByStatus counts leads created in [from, to) per status.
func (r *ReportRepository) LeadsByStatus(ctx context.Context, scope domain.Scope, from, to time.Time) ([]models.StatusTotal, error) {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf(`SELECT status, COUNT(*), 0 FROM %s WHERE %s AND created_at >= ? AND created_at < ?
		GROUP BY status ORDER BY status`, constants.TableLead, where)
	return r.statusTotals(ctx, query, append(args, from, to)...)
}

// QuotationsByStatus counts and totals quotations created in [from, to) per status.
func (r *ReportRepository) QuotationsByStatus(ctx context.Context, scope domain.Scope, from, to time.Time) ([]models.StatusTotal, error) {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf(`SELECT status, COUNT(*), COALESCE(SUM(total), 0) FROM %s WHERE %s AND created_at >= ? AND created_at < ?
		GROUP BY status ORDER BY status`, constants.TableQuotation, where)
	return r.statusTotals(ctx, query, append(args, from, to)...)
}

func (r *ReportRepository) statusTotals(ctx context.Context, query string, args ...interface{}) ([]models.StatusTotal, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make([]models.StatusTotal, 0)
	for rows.Next() {
		var t models.StatusTotal
		if err := rows.Scan(&t.Status, &t.Count, &t.Total); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// RevenueCollected sums paid payments with paid_at in [from, to).
func (r *ReportRepository) RevenueCollected(ctx context.Context, scope domain.Scope, from, to time.Time) (float64, error) {
	where, args := paymentScope(scope)
	query := fmt.Sprintf("SELECT COALESCE(SUM(amount), 0) FROM %s WHERE %s AND status = ? AND paid_at >= ? AND paid_at < ?",
		constants.TablePayment, where)
	var total float64
	err := r.exec(ctx).QueryRowContext(ctx, query, append(args, constants.PaymentPaid, from, to)...).Scan(&total)
	return total, err
}

// RunQuery executes an already tenant-rewritten SELECT, reading at most maxRows rows.
// Truncated is set when more rows were available.
func (r *ReportRepository) RunQuery(ctx context.Context, query string, args []interface{}, maxRows int) (*models.QueryResult, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &models.QueryResult{Columns: columns, Rows: make([]map[string]interface{}, 0)}
	for rows.Next() {
		if len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}
