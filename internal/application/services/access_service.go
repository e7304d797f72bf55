package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/utils"
)

const permissionCacheTTL = 5 * time.Minute

type permissionCacheEntry struct {
	perms   []models.Permission
	expires time.Time
}

// AccessService resolves role permissions into row scopes and manages roles.
type AccessService struct {
	roles     *persistence.RoleRepository
	users     *persistence.UserRepository
	txManager *persistence.TransactionManager
	logger    *zap.Logger

	mu    sync.RWMutex
	cache map[string]permissionCacheEntry
	now   func() time.Time
}

func NewAccessService(roles *persistence.RoleRepository, users *persistence.UserRepository,
	txManager *persistence.TransactionManager, logger *zap.Logger) *AccessService {
	return &AccessService{
		roles:     roles,
		users:     users,
		txManager: txManager,
		logger:    logger,
		cache:     make(map[string]permissionCacheEntry),
		now:       time.Now,
	}
}

// Authorize checks that user may perform action on resource and returns the row scope
// every repository call for this request must use. An "all" grant wins over "own".
func (s *AccessService) Authorize(ctx context.Context, user *auth.UserSession, resource, action string) (domain.Scope, error) {
	if err := requireUser(user); err != nil {
		return domain.Scope{}, err
	}
	if user.CompanyID == "" {
		return domain.Scope{}, appErrors.NewValidationError(constants.HeaderCompanyID, "company context is required")
	}
	if user.IsPlatformAdmin {
		return domain.CompanyScope(user.CompanyID), nil
	}

	perms, err := s.rolePermissions(ctx, user.RoleID)
	if err != nil {
		return domain.Scope{}, err
	}
	return scopeFor(perms, user, resource, action)
}

func scopeFor(perms []models.Permission, user *auth.UserSession, resource, action string) (domain.Scope, error) {
	granted := lo.Filter(perms, func(p models.Permission, _ int) bool {
		return p.Resource == resource && p.Action == action
	})
	if len(granted) == 0 {
		return domain.Scope{}, appErrors.NewPermissionError(action, resource)
	}
	if lo.ContainsBy(granted, func(p models.Permission) bool { return p.Scope == constants.ScopeAll }) {
		return domain.CompanyScope(user.CompanyID), nil
	}
	return domain.Scope{CompanyID: user.CompanyID, OwnerID: user.ID}, nil
}

// Can reports whether user holds a grant for resource/action in any scope.
func (s *AccessService) Can(ctx context.Context, user *auth.UserSession, resource, action string) bool {
	_, err := s.Authorize(ctx, user, resource, action)
	return err == nil
}

// EffectivePermissions lists the grants of the user's role. Platform admins hold every grant.
func (s *AccessService) EffectivePermissions(ctx context.Context, user *auth.UserSession) ([]models.Permission, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	if user.IsPlatformAdmin {
		var all []models.Permission
		for _, r := range constants.AllResources() {
			for _, a := range constants.AllActions() {
				all = append(all, models.Permission{Resource: r, Action: a, Scope: constants.ScopeAll})
			}
		}
		return all, nil
	}
	return s.rolePermissions(ctx, user.RoleID)
}

func (s *AccessService) rolePermissions(ctx context.Context, roleID string) ([]models.Permission, error) {
	if roleID == "" {
		return nil, nil
	}
	s.mu.RLock()
	entry, ok := s.cache[roleID]
	s.mu.RUnlock()
	if ok && s.now().Before(entry.expires) {
		return entry.perms, nil
	}

	perms, err := s.roles.Permissions(ctx, roleID)
	if err != nil {
		return nil, appErrors.NewInternalError("failed to load permissions", err)
	}

	s.mu.Lock()
	s.cache[roleID] = permissionCacheEntry{perms: perms, expires: s.now().Add(permissionCacheTTL)}
	s.mu.Unlock()
	return perms, nil
}

// Invalidate drops the cached permissions of a role.
func (s *AccessService) Invalidate(roleID string) {
	s.mu.Lock()
	delete(s.cache, roleID)
	s.mu.Unlock()
}

// ListRoles returns the roles of the caller's company with their permissions.
func (s *AccessService) ListRoles(ctx context.Context, user *auth.UserSession) ([]*models.Role, error) {
	scope, err := s.Authorize(ctx, user, constants.ResourceRoles, constants.PermRead)
	if err != nil {
		return nil, err
	}
	return s.roles.List(ctx, scope.CompanyID)
}

func (s *AccessService) GetRole(ctx context.Context, user *auth.UserSession, id string) (*models.Role, error) {
	scope, err := s.Authorize(ctx, user, constants.ResourceRoles, constants.PermRead)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.GetByID(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, notFoundOr(err, "role", id)
	}
	return role, nil
}

func (s *AccessService) CreateRole(ctx context.Context, user *auth.UserSession, input models.RoleInput) (*models.Role, error) {
	scope, err := s.Authorize(ctx, user, constants.ResourceRoles, constants.PermCreate)
	if err != nil {
		return nil, err
	}
	perms, err := normalizePermissions(input.Permissions)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, appErrors.NewValidationError("name", "name is required")
	}

	now := time.Now().UTC()
	role := &models.Role{
		ID:          utils.GenerateID(),
		CompanyID:   scope.CompanyID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Permissions: perms,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.roles.Create(txCtx, role)
	})
	if err != nil {
		return nil, duplicateOr(err, "role", "name", name)
	}
	s.logger.Info("role created", zap.String("company_id", role.CompanyID), zap.String("role_id", role.ID))
	return role, nil
}

// UpdateRole replaces a role's description and permissions. System roles keep their
// name, and the Owner role's grants are fixed.
func (s *AccessService) UpdateRole(ctx context.Context, user *auth.UserSession, id string, input models.RoleInput) (*models.Role, error) {
	scope, err := s.Authorize(ctx, user, constants.ResourceRoles, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.GetByID(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, notFoundOr(err, "role", id)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = role.Name
	}
	if role.IsSystem && name != role.Name {
		return nil, appErrors.NewConflictReason("role", "system roles cannot be renamed")
	}
	if role.IsSystem && role.Name == constants.RoleOwner {
		return nil, appErrors.NewConflictReason("role", "the Owner role cannot be changed")
	}
	perms, err := normalizePermissions(input.Permissions)
	if err != nil {
		return nil, err
	}

	role.Name = name
	role.Description = strings.TrimSpace(input.Description)
	role.Permissions = perms
	role.UpdatedAt = time.Now().UTC()
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.roles.Update(txCtx, role)
	})
	if err != nil {
		return nil, duplicateOr(notFoundOr(err, "role", id), "role", "name", name)
	}
	s.Invalidate(role.ID)
	return role, nil
}

// DeleteRole removes a custom role nobody holds.
func (s *AccessService) DeleteRole(ctx context.Context, user *auth.UserSession, id string) error {
	scope, err := s.Authorize(ctx, user, constants.ResourceRoles, constants.PermDelete)
	if err != nil {
		return err
	}
	role, err := s.roles.GetByID(ctx, scope.CompanyID, id)
	if err != nil {
		return notFoundOr(err, "role", id)
	}
	if role.IsSystem {
		return appErrors.NewConflictReason("role", "system roles cannot be deleted")
	}
	inUse, err := s.users.CountByRole(ctx, scope.CompanyID, id)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return appErrors.NewConflictReason("role", "role is assigned to users")
	}
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.roles.Delete(txCtx, scope.CompanyID, id)
	})
	if err != nil {
		return notFoundOr(err, "role", id)
	}
	s.Invalidate(id)
	return nil
}

// normalizePermissions validates grants and collapses duplicates.
// When both scopes are granted for the same resource/action only "all" is kept.
func normalizePermissions(perms []models.Permission) ([]models.Permission, error) {
	for _, p := range perms {
		if !constants.IsValidResource(p.Resource) {
			return nil, appErrors.NewValidationError("permissions", "unknown resource "+p.Resource)
		}
		if !constants.IsValidAction(p.Action) {
			return nil, appErrors.NewValidationError("permissions", "unknown action "+p.Action)
		}
		if !constants.IsValidScope(p.Scope) {
			return nil, appErrors.NewValidationError("permissions", "scope must be own or all")
		}
	}
	byKey := lo.GroupBy(perms, func(p models.Permission) string { return p.Resource + ":" + p.Action })
	out := make([]models.Permission, 0, len(byKey))
	for _, group := range byKey {
		best := group[0]
		if lo.ContainsBy(group, func(p models.Permission) bool { return p.Scope == constants.ScopeAll }) {
			best.Scope = constants.ScopeAll
		}
		out = append(out, best)
	}
	sortPermissions(out)
	return out, nil
}

func sortPermissions(perms []models.Permission) {
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Resource != perms[j].Resource {
			return perms[i].Resource < perms[j].Resource
		}
		return perms[i].Action < perms[j].Action
	})
}
