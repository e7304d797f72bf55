package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

// CounterRepository hands out per-company, per-year document sequence values.
type CounterRepository struct {
	repo
}

func NewCounterRepository(db *sql.DB) *CounterRepository {
	return &CounterRepository{repo{db: db}}
}

// Next increments and returns the counter. It must run inside a transaction so the
// upsert's row lock is held until the read.
func (r *CounterRepository) Next(ctx context.Context, companyID, docType string, year int) (int, error) {
	if ExtractTx(ctx) == nil {
		return 0, fmt.Errorf("counter %s: transaction required", docType)
	}
	upsert := fmt.Sprintf(`INSERT INTO %s (company_id, doc_type, year, last_value) VALUES (?, ?, ?, 1)
		ON DUPLICATE KEY UPDATE last_value = last_value + 1`, constants.TableDocumentCounter)
	if _, err := r.exec(ctx).ExecContext(ctx, upsert, companyID, docType, year); err != nil {
		return 0, err
	}

	var value int
	query := fmt.Sprintf("SELECT last_value FROM %s WHERE company_id = ? AND doc_type = ? AND year = ?", constants.TableDocumentCounter)
	if err := r.exec(ctx).QueryRowContext(ctx, query, companyID, docType, year).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}
