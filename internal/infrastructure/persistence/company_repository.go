package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

const companyColumns = "id, parent_id, name, slug, currency, tax_rate, timezone, quotation_validity_days, is_active, created_at, updated_at"

type CompanyRepository struct {
	repo
}

func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{repo{db: db}}
}

func scanCompany(row interface{ Scan(...interface{}) error }) (*models.Company, error) {
	var c models.Company
	var parentID sql.NullString
	if err := row.Scan(&c.ID, &parentID, &c.Name, &c.Slug, &c.Currency, &c.TaxRate, &c.Timezone,
		&c.QuotationValidityDays, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ParentID = ptrFromNull(parentID)
	return &c, nil
}

func (r *CompanyRepository) Create(ctx context.Context, c *models.Company) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableCompany, companyColumns)
	_, err := r.exec(ctx).ExecContext(ctx, query,
		c.ID, nullStringPtr(c.ParentID), c.Name, c.Slug, c.Currency, c.TaxRate, c.Timezone,
		c.QuotationValidityDays, c.IsActive, c.CreatedAt, c.UpdatedAt)
	return err
}

// GetByID returns sql.ErrNoRows when the company does not exist.
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*models.Company, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", companyColumns, constants.TableCompany)
	return scanCompany(r.exec(ctx).QueryRowContext(ctx, query, id))
}

func (r *CompanyRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE slug = ?)", constants.TableCompany)
	err := r.exec(ctx).QueryRowContext(ctx, query, slug).Scan(&exists)
	return exists, err
}

func (r *CompanyRepository) Update(ctx context.Context, c *models.Company) error {
	query := fmt.Sprintf(`UPDATE %s SET name = ?, currency = ?, tax_rate = ?, timezone = ?,
		quotation_validity_days = ?, updated_at = ? WHERE id = ?`, constants.TableCompany)
	return affectedOne(r.exec(ctx).ExecContext(ctx, query,
		c.Name, c.Currency, c.TaxRate, c.Timezone, c.QuotationValidityDays, c.UpdatedAt, c.ID))
}

func (r *CompanyRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := fmt.Sprintf("UPDATE %s SET is_active = ?, updated_at = ? WHERE id = ?", constants.TableCompany)
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, active, time.Now().UTC(), id))
}

// ListChildren returns the business units of a company.
func (r *CompanyRepository) ListChildren(ctx context.Context, parentID string) ([]*models.Company, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE parent_id = ? ORDER BY name ASC", companyColumns, constants.TableCompany)
	rows, err := r.exec(ctx).QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	companies := make([]*models.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// ListAll is used by platform admins.
func (r *CompanyRepository) ListAll(ctx context.Context, limit, offset int) ([]*models.Company, error) {
	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC LIMIT ? OFFSET ?", companyColumns, constants.TableCompany)
	rows, err := r.exec(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	companies := make([]*models.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}
