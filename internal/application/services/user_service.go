package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/utils"
)

// UserService manages the users of a company.
type UserService struct {
	users    *persistence.UserRepository
	roles    *persistence.RoleRepository
	sessions *persistence.SessionRepository
	access   *AccessService
	logger   *zap.Logger
}

func NewUserService(users *persistence.UserRepository, roles *persistence.RoleRepository,
	sessions *persistence.SessionRepository, access *AccessService, logger *zap.Logger) *UserService {
	return &UserService{users: users, roles: roles, sessions: sessions, access: access, logger: logger}
}

// InviteUser creates an active user with an initial password.
func (s *UserService) InviteUser(ctx context.Context, user *auth.UserSession, input models.InviteUserInput) (*models.User, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceUsers, constants.PermCreate)
	if err != nil {
		return nil, err
	}
	email := auth.NormalizeEmail(input.Email)
	if !auth.IsValidEmail(email) {
		return nil, appErrors.NewValidationError("email", "a valid email is required")
	}
	name := strings.TrimSpace(input.FullName)
	if name == "" {
		return nil, appErrors.NewValidationError("full_name", "full name is required")
	}
	if err := auth.ValidatePasswordStrength(input.Password); err != nil {
		return nil, appErrors.NewValidationError("password", err.Error())
	}
	role, err := s.roles.GetByID(ctx, scope.CompanyID, input.RoleID)
	if err != nil {
		return nil, appErrors.NewValidationError("role_id", "role does not exist")
	}
	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, appErrors.NewConflictError("user", "email", email)
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, appErrors.NewInternalError("failed to hash password", err)
	}

	now := time.Now().UTC()
	u := &models.User{
		ID:           utils.GenerateID(),
		CompanyID:    scope.CompanyID,
		Email:        email,
		PasswordHash: hash,
		FullName:     name,
		RoleID:       role.ID,
		RoleName:     role.Name,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, duplicateOr(err, "user", "email", email)
	}
	s.logger.Info("user invited", zap.String("company_id", u.CompanyID), zap.String("user_id", u.ID))
	return u, nil
}

func (s *UserService) ListUsers(ctx context.Context, user *auth.UserSession, limit, offset int) ([]*models.User, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceUsers, constants.PermRead)
	if err != nil {
		return nil, err
	}
	return s.users.List(ctx, scope.CompanyID, limit, offset)
}

func (s *UserService) GetUser(ctx context.Context, user *auth.UserSession, id string) (*models.User, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceUsers, constants.PermRead)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	return u, nil
}

// UpdateUser changes name, role or active flag. The company always keeps one active owner.
func (s *UserService) UpdateUser(ctx context.Context, user *auth.UserSession, id string, input models.UpdateUserInput) (*models.User, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceUsers, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	target, err := s.users.GetByID(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, notFoundOr(err, "user", id)
	}

	if input.FullName != nil {
		if target.FullName = strings.TrimSpace(*input.FullName); target.FullName == "" {
			return nil, appErrors.NewValidationError("full_name", "full name is required")
		}
	}
	losesOwner := false
	if input.RoleID != nil && *input.RoleID != target.RoleID {
		role, err := s.roles.GetByID(ctx, scope.CompanyID, *input.RoleID)
		if err != nil {
			return nil, appErrors.NewValidationError("role_id", "role does not exist")
		}
		losesOwner = target.RoleName == constants.RoleOwner
		target.RoleID, target.RoleName = role.ID, role.Name
	}
	if input.IsActive != nil && *input.IsActive != target.IsActive {
		if !*input.IsActive && target.ID == user.ID {
			return nil, appErrors.NewConflictReason("user", "you cannot deactivate yourself")
		}
		losesOwner = losesOwner || (!*input.IsActive && target.RoleName == constants.RoleOwner)
		target.IsActive = *input.IsActive
	}
	if losesOwner {
		if err := s.ensureAnotherOwner(ctx, scope.CompanyID); err != nil {
			return nil, err
		}
	}

	target.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, target); err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	if !target.IsActive {
		if _, err := s.sessions.RevokeAllForUser(ctx, target.ID, ""); err != nil {
			s.logger.Warn("failed to revoke sessions", zap.String("user_id", target.ID), zap.Error(err))
		}
	}
	return target, nil
}

// DeleteUser removes a user. Users cannot delete themselves or the last owner.
func (s *UserService) DeleteUser(ctx context.Context, user *auth.UserSession, id string) error {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceUsers, constants.PermDelete)
	if err != nil {
		return err
	}
	if id == user.ID {
		return appErrors.NewConflictReason("user", "you cannot delete yourself")
	}
	target, err := s.users.GetByID(ctx, scope.CompanyID, id)
	if err != nil {
		return notFoundOr(err, "user", id)
	}
	if target.RoleName == constants.RoleOwner && target.IsActive {
		if err := s.ensureAnotherOwner(ctx, scope.CompanyID); err != nil {
			return err
		}
	}
	if err := s.users.Delete(ctx, scope.CompanyID, id); err != nil {
		return notFoundOr(err, "user", id)
	}
	if _, err := s.sessions.RevokeAllForUser(ctx, id, ""); err != nil {
		s.logger.Warn("failed to revoke sessions", zap.String("user_id", id), zap.Error(err))
	}
	s.logger.Info("user deleted", zap.String("company_id", scope.CompanyID), zap.String("user_id", id))
	return nil
}

// ResetPassword sets a new password for another user and signs them out everywhere.
func (s *UserService) ResetPassword(ctx context.Context, user *auth.UserSession, id, password string) error {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceUsers, constants.PermUpdate)
	if err != nil {
		return err
	}
	return s.SetPassword(ctx, scope.CompanyID, id, password)
}

// SetPassword is the unauthenticated core of ResetPassword, used by the CLI.
func (s *UserService) SetPassword(ctx context.Context, companyID, id, password string) error {
	if err := auth.ValidatePasswordStrength(password); err != nil {
		return appErrors.NewValidationError("password", err.Error())
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return appErrors.NewInternalError("failed to hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, companyID, id, hash); err != nil {
		return notFoundOr(err, "user", id)
	}
	if _, err := s.sessions.RevokeAllForUser(ctx, id, ""); err != nil {
		return appErrors.NewInternalError("failed to revoke sessions", err)
	}
	return nil
}

// FindByEmail looks a user up by login email.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = auth.NormalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, notFoundOr(err, "user", email)
	}
	return u, nil
}

// EnsureAssignable checks that userID is an active user of the company.
func (s *UserService) EnsureAssignable(ctx context.Context, companyID, userID string) error {
	u, err := s.users.GetByID(ctx, companyID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NewValidationError("owner_id", "owner must be a user of this company")
		}
		return err
	}
	if !u.IsActive {
		return appErrors.NewValidationError("owner_id", "owner must be an active user")
	}
	return nil
}

func (s *UserService) ensureAnotherOwner(ctx context.Context, companyID string) error {
	ownerRole, err := s.roles.GetByName(ctx, companyID, constants.RoleOwner)
	if err != nil {
		return notFoundOr(err, "role", constants.RoleOwner)
	}
	n, err := s.users.CountActiveByRole(ctx, companyID, ownerRole.ID)
	if err != nil {
		return err
	}
	if n <= 1 {
		return appErrors.NewConflictReason("user", "the company must keep at least one active owner")
	}
	return nil
}
