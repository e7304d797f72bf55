package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

const scoringRuleColumns = "id, company_id, name, expression, points, is_active, created_at, updated_at"

type ScoringRuleRepository struct {
	repo
}

func NewScoringRuleRepository(db *sql.DB) *ScoringRuleRepository {
	return &ScoringRuleRepository{repo{db: db}}
}

func scanScoringRule(row interface{ Scan(...interface{}) error }) (*models.LeadScoringRule, error) {
	var rule models.LeadScoringRule
	if err := row.Scan(&rule.ID, &rule.CompanyID, &rule.Name, &rule.Expression, &rule.Points, &rule.IsActive,
		&rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ScoringRuleRepository) Create(ctx context.Context, rule *models.LeadScoringRule) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", constants.TableLeadScoringRule, scoringRuleColumns)
	_, err := r.exec(ctx).ExecContext(ctx, query, rule.ID, rule.CompanyID, rule.Name, rule.Expression, rule.Points,
		rule.IsActive, rule.CreatedAt, rule.UpdatedAt)
	return err
}

func (r *ScoringRuleRepository) Get(ctx context.Context, companyID, id string) (*models.LeadScoringRule, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE company_id = ? AND id = ?", scoringRuleColumns, constants.TableLeadScoringRule)
	return scanScoringRule(r.exec(ctx).QueryRowContext(ctx, query, companyID, id))
}

// List returns a company's rules; activeOnly filters disabled ones.
func (r *ScoringRuleRepository) List(ctx context.Context, companyID string, activeOnly bool) ([]*models.LeadScoringRule, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE company_id = ?", scoringRuleColumns, constants.TableLeadScoringRule)
	if activeOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.exec(ctx).QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]*models.LeadScoringRule, 0)
	for rows.Next() {
		rule, err := scanScoringRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *ScoringRuleRepository) Update(ctx context.Context, rule *models.LeadScoringRule) error {
	query := fmt.Sprintf("UPDATE %s SET name = ?, expression = ?, points = ?, is_active = ?, updated_at = ? WHERE company_id = ? AND id = ?",
		constants.TableLeadScoringRule)
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, rule.Name, rule.Expression, rule.Points, rule.IsActive,
		rule.UpdatedAt, rule.CompanyID, rule.ID))
}

func (r *ScoringRuleRepository) Delete(ctx context.Context, companyID, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE company_id = ? AND id = ?", constants.TableLeadScoringRule)
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, companyID, id))
}
