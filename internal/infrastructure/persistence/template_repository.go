package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

const templateColumns = "id, company_id, kind, name, subject, COALESCE(body, ''), COALESCE(terms, ''), default_items, is_default, created_at, updated_at"

type TemplateRepository struct {
	repo
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{repo{db: db}}
}

func scanTemplate(row interface{ Scan(...interface{}) error }) (*models.Template, error) {
	var t models.Template
	var items []byte
	if err := row.Scan(&t.ID, &t.CompanyID, &t.Kind, &t.Name, &t.Subject, &t.Body, &t.Terms, &items, &t.IsDefault,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.DefaultItems = []models.LineItemInput{}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &t.DefaultItems); err != nil {
			return nil, fmt.Errorf("invalid default_items for template %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

func (r *TemplateRepository) Create(ctx context.Context, t *models.Template) error {
	items, err := json.Marshal(t.DefaultItems)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, company_id, kind, name, subject, body, terms, default_items, is_default,
		created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableTemplate)
	_, err = r.exec(ctx).ExecContext(ctx, query, t.ID, t.CompanyID, t.Kind, t.Name, t.Subject, t.Body, t.Terms,
		string(items), t.IsDefault, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *TemplateRepository) Get(ctx context.Context, companyID, id string) (*models.Template, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE company_id = ? AND id = ?", templateColumns, constants.TableTemplate)
	return scanTemplate(r.exec(ctx).QueryRowContext(ctx, query, companyID, id))
}

// GetDefault returns the default template of a kind, or sql.ErrNoRows.
func (r *TemplateRepository) GetDefault(ctx context.Context, companyID, kind string) (*models.Template, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE company_id = ? AND kind = ? AND is_default = TRUE LIMIT 1", templateColumns, constants.TableTemplate)
	return scanTemplate(r.exec(ctx).QueryRowContext(ctx, query, companyID, kind))
}

func (r *TemplateRepository) List(ctx context.Context, companyID, kind string) ([]*models.Template, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE company_id = ?", templateColumns, constants.TableTemplate)
	args := []interface{}{companyID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY kind ASC, name ASC"

	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]*models.Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *TemplateRepository) Update(ctx context.Context, t *models.Template) error {
	items, err := json.Marshal(t.DefaultItems)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET kind = ?, name = ?, subject = ?, body = ?, terms = ?, default_items = ?,
		is_default = ?, updated_at = ? WHERE company_id = ? AND id = ?`, constants.TableTemplate)
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, t.Kind, t.Name, t.Subject, t.Body, t.Terms, string(items),
		t.IsDefault, t.UpdatedAt, t.CompanyID, t.ID))
}

// ClearDefault unsets is_default on every template of the kind except keepID.
func (r *TemplateRepository) ClearDefault(ctx context.Context, companyID, kind, keepID string) error {
	query := fmt.Sprintf("UPDATE %s SET is_default = FALSE WHERE company_id = ? AND kind = ? AND id <> ? AND is_default = TRUE", constants.TableTemplate)
	_, err := r.exec(ctx).ExecContext(ctx, query, companyID, kind, keepID)
	return err
}

func (r *TemplateRepository) Delete(ctx context.Context, companyID, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE company_id = ? AND id = ?", constants.TableTemplate)
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, companyID, id))
}
