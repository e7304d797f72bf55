package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

type SessionRepository struct {
	repo
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{repo{db: db}}
}

func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, company_id, expires_at, ip_address, user_agent, is_revoked,
		last_activity, created_at) VALUES (?, ?, ?, ?, ?, ?, FALSE, ?, ?)`, constants.TableSession)
	_, err := r.exec(ctx).ExecContext(ctx, query, s.ID, s.UserID, s.CompanyID, s.ExpiresAt, s.IPAddress,
		s.UserAgent, s.LastActivity, s.CreatedAt)
	return err
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT id, user_id, company_id, expires_at, ip_address, user_agent, is_revoked,
		last_activity, created_at FROM %s WHERE id = ?`, constants.TableSession)
	var s models.Session
	err := r.exec(ctx).QueryRowContext(ctx, query, id).Scan(&s.ID, &s.UserID, &s.CompanyID, &s.ExpiresAt,
		&s.IPAddress, &s.UserAgent, &s.IsRevoked, &s.LastActivity, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) Revoke(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET %s = TRUE WHERE id = ?", constants.TableSession, constants.FieldIsRevoked)
	_, err := r.exec(ctx).ExecContext(ctx, query, id)
	return err
}

// RevokeAllForUser revokes every session of a user except keepID.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID, keepID string) (int64, error) {
	query := fmt.Sprintf("UPDATE %s SET %s = TRUE WHERE user_id = ? AND id <> ? AND %s = FALSE",
		constants.TableSession, constants.FieldIsRevoked, constants.FieldIsRevoked)
	res, err := r.exec(ctx).ExecContext(ctx, query, userID, keepID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", constants.TableSession, constants.FieldLastActivity)
	_, err := r.exec(ctx).ExecContext(ctx, query, at, id)
	return err
}

// PurgeExpired deletes sessions that expired before cutoff.
func (r *SessionRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", constants.TableSession)
	res, err := r.exec(ctx).ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
