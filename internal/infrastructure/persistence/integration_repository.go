package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

const integrationColumns = `id, company_id, user_id, provider, account_email, access_token, refresh_token,
	token_expires_at, scopes, created_at, updated_at`

// IntegrationRepository stores per-user provider connections. Token columns hold sealed values only.
type IntegrationRepository struct {
	repo
}

func NewIntegrationRepository(db *sql.DB) *IntegrationRepository {
	return &IntegrationRepository{repo{db: db}}
}

func scanIntegration(row interface{ Scan(...interface{}) error }) (*models.Integration, error) {
	var i models.Integration
	if err := row.Scan(&i.ID, &i.CompanyID, &i.UserID, &i.Provider, &i.AccountEmail, &i.AccessToken, &i.RefreshToken,
		&i.TokenExpiresAt, &i.Scopes, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

// Upsert replaces the connection for (user, provider); the original id and created_at are kept.
func (r *IntegrationRepository) Upsert(ctx context.Context, i *models.Integration) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE account_email = VALUES(account_email), access_token = VALUES(access_token),
		refresh_token = VALUES(refresh_token), token_expires_at = VALUES(token_expires_at), scopes = VALUES(scopes),
		updated_at = VALUES(updated_at)`, constants.TableIntegration, integrationColumns)
	_, err := r.exec(ctx).ExecContext(ctx, query, i.ID, i.CompanyID, i.UserID, i.Provider, i.AccountEmail, i.AccessToken,
		i.RefreshToken, i.TokenExpiresAt, i.Scopes, i.CreatedAt, i.UpdatedAt)
	return err
}

func (r *IntegrationRepository) Get(ctx context.Context, userID, provider string) (*models.Integration, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = ? AND provider = ?", integrationColumns, constants.TableIntegration)
	return scanIntegration(r.exec(ctx).QueryRowContext(ctx, query, userID, provider))
}

func (r *IntegrationRepository) UpdateTokens(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET access_token = ?, token_expires_at = ?, updated_at = ? WHERE id = ?", constants.TableIntegration)
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, accessToken, expiresAt, time.Now().UTC(), id))
}

func (r *IntegrationRepository) Delete(ctx context.Context, userID, provider string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = ? AND provider = ?", constants.TableIntegration)
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, userID, provider))
}

// ListExpiring returns connections whose access token expires before the given time.
func (r *IntegrationRepository) ListExpiring(ctx context.Context, provider string, before time.Time, limit int) ([]*models.Integration, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE provider = ? AND token_expires_at < ? ORDER BY token_expires_at ASC LIMIT ?",
		integrationColumns, constants.TableIntegration)
	rows, err := r.exec(ctx).QueryContext(ctx, query, provider, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]*models.Integration, 0)
	for rows.Next() {
		i, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, i)
	}
	return list, rows.Err()
}
