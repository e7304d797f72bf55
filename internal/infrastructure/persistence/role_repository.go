package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

const roleColumns = "id, company_id, name, description, is_system, created_at, updated_at"

type RoleRepository struct {
	repo
}

func NewRoleRepository(db *sql.DB) *RoleRepository {
	return &RoleRepository{repo{db: db}}
}

func scanRole(row interface{ Scan(...interface{}) error }) (*models.Role, error) {
	var role models.Role
	if err := row.Scan(&role.ID, &role.CompanyID, &role.Name, &role.Description, &role.IsSystem,
		&role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}
	return &role, nil
}

// Create inserts the role and its permissions. Call inside a transaction.
func (r *RoleRepository) Create(ctx context.Context, role *models.Role) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?)", constants.TableRole, roleColumns)
	if _, err := r.exec(ctx).ExecContext(ctx, query, role.ID, role.CompanyID, role.Name, role.Description,
		role.IsSystem, role.CreatedAt, role.UpdatedAt); err != nil {
		return err
	}
	return r.insertPermissions(ctx, role.ID, role.Permissions)
}

func (r *RoleRepository) insertPermissions(ctx context.Context, roleID string, perms []models.Permission) error {
	query := fmt.Sprintf("INSERT INTO %s (role_id, resource, action, scope) VALUES (?, ?, ?, ?)", constants.TableRolePermission)
	for _, p := range perms {
		if _, err := r.exec(ctx).ExecContext(ctx, query, roleID, p.Resource, p.Action, p.Scope); err != nil {
			return fmt.Errorf("failed to insert permission %s:%s: %w", p.Resource, p.Action, err)
		}
	}
	return nil
}

// GetByID returns the role with its permissions.
func (r *RoleRepository) GetByID(ctx context.Context, companyID, id string) (*models.Role, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE company_id = ? AND id = ?", roleColumns, constants.TableRole)
	role, err := scanRole(r.exec(ctx).QueryRowContext(ctx, query, companyID, id))
	if err != nil {
		return nil, err
	}
	role.Permissions, err = r.Permissions(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (r *RoleRepository) GetByName(ctx context.Context, companyID, name string) (*models.Role, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE company_id = ? AND name = ?", roleColumns, constants.TableRole)
	return scanRole(r.exec(ctx).QueryRowContext(ctx, query, companyID, name))
}

func (r *RoleRepository) List(ctx context.Context, companyID string) ([]*models.Role, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE company_id = ? ORDER BY is_system DESC, name ASC", roleColumns, constants.TableRole)
	rows, err := r.exec(ctx).QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]*models.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, role := range roles {
		if role.Permissions, err = r.Permissions(ctx, role.ID); err != nil {
			return nil, err
		}
	}
	return roles, nil
}

func (r *RoleRepository) Permissions(ctx context.Context, roleID string) ([]models.Permission, error) {
	query := fmt.Sprintf("SELECT resource, action, scope FROM %s WHERE role_id = ? ORDER BY resource, action", constants.TableRolePermission)
	rows, err := r.exec(ctx).QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := make([]models.Permission, 0)
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.Resource, &p.Action, &p.Scope); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// Update changes name/description and replaces the permission set. Call inside a transaction.
func (r *RoleRepository) Update(ctx context.Context, role *models.Role) error {
	query := fmt.Sprintf("UPDATE %s SET name = ?, description = ?, updated_at = ? WHERE company_id = ? AND id = ?", constants.TableRole)
	if err := affectedOne(r.exec(ctx).ExecContext(ctx, query, role.Name, role.Description, role.UpdatedAt,
		role.CompanyID, role.ID)); err != nil {
		return err
	}
	del := fmt.Sprintf("DELETE FROM %s WHERE role_id = ?", constants.TableRolePermission)
	if _, err := r.exec(ctx).ExecContext(ctx, del, role.ID); err != nil {
		return err
	}
	return r.insertPermissions(ctx, role.ID, role.Permissions)
}

func (r *RoleRepository) Delete(ctx context.Context, companyID, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE company_id = ? AND id = ?", constants.TableRole)
	if err := affectedOne(r.exec(ctx).ExecContext(ctx, query, companyID, id)); err != nil {
		return err
	}
	del := fmt.Sprintf("DELETE FROM %s WHERE role_id = ?", constants.TableRolePermission)
	_, err := r.exec(ctx).ExecContext(ctx, del, id)
	return err
}
