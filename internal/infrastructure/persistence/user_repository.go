package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

const userColumns = "u.id, u.company_id, u.email, u.password_hash, u.full_name, u.role_id, COALESCE(r.name, ''), u.is_active, u.is_platform_admin, u.last_login_at, u.created_at, u.updated_at"

type UserRepository struct {
	repo
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{repo{db: db}}
}

func userSelect() string {
	return fmt.Sprintf("SELECT %s FROM %s u LEFT JOIN %s r ON r.id = u.role_id", userColumns, constants.TableUser, constants.TableRole)
}

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.CompanyID, &u.Email, &u.PasswordHash, &u.FullName, &u.RoleID, &u.RoleName,
		&u.IsActive, &u.IsPlatformAdmin, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.LastLoginAt = timePtrFromNull(lastLogin)
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, company_id, email, password_hash, full_name, role_id, is_active,
		is_platform_admin, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableUser)
	_, err := r.exec(ctx).ExecContext(ctx, query, u.ID, u.CompanyID, u.Email, u.PasswordHash, u.FullName,
		u.RoleID, u.IsActive, u.IsPlatformAdmin, u.CreatedAt, u.UpdatedAt)
	return err
}

// GetByID looks a user up inside a company.
func (r *UserRepository) GetByID(ctx context.Context, companyID, id string) (*models.User, error) {
	query := userSelect() + " WHERE u.company_id = ? AND u.id = ?"
	return scanUser(r.exec(ctx).QueryRowContext(ctx, query, companyID, id))
}

// GetByEmail is tenant-agnostic: emails are globally unique and used for login.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := userSelect() + " WHERE u.email = ?"
	return scanUser(r.exec(ctx).QueryRowContext(ctx, query, email))
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s = ?)", constants.TableUser, constants.FieldEmail)
	err := r.exec(ctx).QueryRowContext(ctx, query, email).Scan(&exists)
	return exists, err
}

func (r *UserRepository) List(ctx context.Context, companyID string, limit, offset int) ([]*models.User, error) {
	limit, offset = clampPage(limit, offset)
	query := userSelect() + " WHERE u.company_id = ? ORDER BY u.created_at DESC LIMIT ? OFFSET ?"
	rows, err := r.exec(ctx).QueryContext(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	query := fmt.Sprintf("UPDATE %s SET full_name = ?, role_id = ?, is_active = ?, updated_at = ? WHERE company_id = ? AND id = ?", constants.TableUser)
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, u.FullName, u.RoleID, u.IsActive, u.UpdatedAt, u.CompanyID, u.ID))
}

func (r *UserRepository) UpdatePassword(ctx context.Context, companyID, id, hash string) error {
	query := fmt.Sprintf("UPDATE %s SET password_hash = ?, updated_at = ? WHERE company_id = ? AND id = ?", constants.TableUser)
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, hash, time.Now().UTC(), companyID, id))
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET last_login_at = ? WHERE id = ?", constants.TableUser)
	_, err := r.exec(ctx).ExecContext(ctx, query, at, id)
	return err
}

func (r *UserRepository) Delete(ctx context.Context, companyID, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE company_id = ? AND id = ?", constants.TableUser)
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, companyID, id))
}

// CountActiveByRole counts active users holding a role.
func (r *UserRepository) CountActiveByRole(ctx context.Context, companyID, roleID string) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE company_id = ? AND role_id = ? AND is_active = TRUE", constants.TableUser)
	err := r.exec(ctx).QueryRowContext(ctx, query, companyID, roleID).Scan(&n)
	return n, err
}

// CountByRole counts all users holding a role, active or not.
func (r *UserRepository) CountByRole(ctx context.Context, companyID, roleID string) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE company_id = ? AND role_id = ?", constants.TableUser)
	err := r.exec(ctx).QueryRowContext(ctx, query, companyID, roleID).Scan(&n)
	return n, err
}
