package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/bootstrap"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/utils"
)

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// CompanyService manages tenants, their settings and business units.
type CompanyService struct {
	companies *persistence.CompanyRepository
	roles     *persistence.RoleRepository
	users     *persistence.UserRepository
	access    *AccessService
	txManager *persistence.TransactionManager
	logger    *zap.Logger
}

func NewCompanyService(companies *persistence.CompanyRepository, roles *persistence.RoleRepository,
	users *persistence.UserRepository, access *AccessService, txManager *persistence.TransactionManager,
	logger *zap.Logger) *CompanyService {
	return &CompanyService{
		companies: companies,
		roles:     roles,
		users:     users,
		access:    access,
		txManager: txManager,
		logger:    logger,
	}
}

// CreateCompany provisions a tenant with the default roles and an owner user. Platform admins only.
func (s *CompanyService) CreateCompany(ctx context.Context, user *auth.UserSession, input models.CreateCompanyInput) (*models.Company, *models.User, error) {
	if err := requireUser(user); err != nil {
		return nil, nil, err
	}
	if !user.IsPlatformAdmin {
		return nil, nil, appErrors.NewPermissionError(constants.PermCreate, "companies")
	}
	input.ParentID = nil
	return s.Provision(ctx, input)
}

// Provision creates a tenant without an acting user. It backs CreateCompany and the CLI.
func (s *CompanyService) Provision(ctx context.Context, input models.CreateCompanyInput) (*models.Company, *models.User, error) {
	company, err := newCompany(input, nil)
	if err != nil {
		return nil, nil, err
	}

	email := auth.NormalizeEmail(input.OwnerEmail)
	if !auth.IsValidEmail(email) {
		return nil, nil, appErrors.NewValidationError("owner_email", "a valid email is required")
	}
	if err := auth.ValidatePasswordStrength(input.OwnerPassword); err != nil {
		return nil, nil, appErrors.NewValidationError("owner_password", err.Error())
	}
	ownerName := strings.TrimSpace(input.OwnerName)
	if ownerName == "" {
		return nil, nil, appErrors.NewValidationError("owner_name", "owner name is required")
	}
	hash, err := auth.HashPassword(input.OwnerPassword)
	if err != nil {
		return nil, nil, appErrors.NewInternalError("failed to hash password", err)
	}

	var owner *models.User
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.insertCompany(txCtx, company); err != nil {
			return err
		}
		ownerRoleID, err := s.seedRoles(txCtx, company.ID)
		if err != nil {
			return err
		}
		exists, err := s.users.EmailExists(txCtx, email)
		if err != nil {
			return err
		}
		if exists {
			return appErrors.NewConflictError("user", "email", email)
		}
		owner = &models.User{
			ID:           utils.GenerateID(),
			CompanyID:    company.ID,
			Email:        email,
			PasswordHash: hash,
			FullName:     ownerName,
			RoleID:       ownerRoleID,
			RoleName:     constants.RoleOwner,
			IsActive:     true,
			CreatedAt:    company.CreatedAt,
			UpdatedAt:    company.CreatedAt,
		}
		return s.users.Create(txCtx, owner)
	})
	if err != nil {
		return nil, nil, duplicateOr(err, "company", "slug", company.Slug)
	}
	s.logger.Info("company provisioned", zap.String("company_id", company.ID), zap.String("slug", company.Slug))
	return company, owner, nil
}

// CreateBusinessUnit creates a child company of the caller's company. The unit gets its own
// default roles; the parent's administrators act in it through the company header.
func (s *CompanyService) CreateBusinessUnit(ctx context.Context, user *auth.UserSession, input models.CreateCompanyInput) (*models.Company, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceSettings, constants.PermCreate)
	if err != nil {
		return nil, err
	}
	parent, err := s.companies.GetByID(ctx, scope.CompanyID)
	if err != nil {
		return nil, notFoundOr(err, "company", scope.CompanyID)
	}
	if parent.ParentID != nil {
		return nil, appErrors.NewValidationError("parent_id", "business units cannot have business units")
	}

	if input.Currency == "" {
		input.Currency = parent.Currency
	}
	if input.Timezone == "" {
		input.Timezone = parent.Timezone
	}
	if input.QuotationValidityDays == 0 {
		input.QuotationValidityDays = parent.QuotationValidityDays
	}
	unit, err := newCompany(input, &parent.ID)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.insertCompany(txCtx, unit); err != nil {
			return err
		}
		_, err := s.seedRoles(txCtx, unit.ID)
		return err
	})
	if err != nil {
		return nil, duplicateOr(err, "company", "slug", unit.Slug)
	}
	s.logger.Info("business unit created", zap.String("company_id", unit.ID), zap.String("parent_id", parent.ID))
	return unit, nil
}

func (s *CompanyService) insertCompany(ctx context.Context, c *models.Company) error {
	taken, err := s.companies.SlugExists(ctx, c.Slug)
	if err != nil {
		return err
	}
	if taken {
		return appErrors.NewConflictError("company", "slug", c.Slug)
	}
	return s.companies.Create(ctx, c)
}

// seedRoles inserts the system roles and returns the Owner role id.
func (s *CompanyService) seedRoles(ctx context.Context, companyID string) (string, error) {
	var ownerRoleID string
	now := time.Now().UTC()
	for _, def := range bootstrap.DefaultRoles() {
		role := &models.Role{
			ID:          utils.GenerateID(),
			CompanyID:   companyID,
			Name:        def.Name,
			Description: def.Description,
			IsSystem:    true,
			Permissions: def.Permissions,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.roles.Create(ctx, role); err != nil {
			return "", err
		}
		if role.Name == constants.RoleOwner {
			ownerRoleID = role.ID
		}
	}
	return ownerRoleID, nil
}

func newCompany(input models.CreateCompanyInput, parentID *string) (*models.Company, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, appErrors.NewValidationError("name", "name is required")
	}
	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = utils.Slugify(name)
	}
	if !slugPattern.MatchString(slug) {
		return nil, appErrors.NewValidationError("slug", "slug may only contain a-z, 0-9 and dashes")
	}

	now := time.Now().UTC()
	c := &models.Company{
		ID:                    utils.GenerateID(),
		ParentID:              parentID,
		Name:                  name,
		Slug:                  slug,
		Currency:              strings.ToUpper(strings.TrimSpace(input.Currency)),
		TaxRate:               input.TaxRate,
		Timezone:              strings.TrimSpace(input.Timezone),
		QuotationValidityDays: input.QuotationValidityDays,
		IsActive:              true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if c.Currency == "" {
		c.Currency = constants.DefaultCurrency
	}
	if c.Timezone == "" {
		c.Timezone = constants.DefaultTimezone
	}
	if c.QuotationValidityDays == 0 {
		c.QuotationValidityDays = constants.DefaultQuotationValidityDays
	}
	if err := validateCompanySettings(c); err != nil {
		return nil, err
	}
	return c, nil
}

func validateCompanySettings(c *models.Company) error {
	if !currencyPattern.MatchString(c.Currency) {
		return appErrors.NewValidationError("currency", "currency must be an ISO 4217 code")
	}
	if c.TaxRate < 0 || c.TaxRate > 100 {
		return appErrors.NewValidationError("tax_rate", "tax rate must be between 0 and 100")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil || c.Timezone == "Local" {
		return appErrors.NewValidationError("timezone", "unknown IANA timezone")
	}
	if c.QuotationValidityDays < 1 || c.QuotationValidityDays > 365 {
		return appErrors.NewValidationError("quotation_validity_days", "must be between 1 and 365")
	}
	return nil
}

// GetCompany returns the caller's acting company.
func (s *CompanyService) GetCompany(ctx context.Context, user *auth.UserSession) (*models.Company, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	c, err := s.companies.GetByID(ctx, user.CompanyID)
	if err != nil {
		return nil, notFoundOr(err, "company", user.CompanyID)
	}
	return c, nil
}

// UpdateCompany changes tenant settings.
func (s *CompanyService) UpdateCompany(ctx context.Context, user *auth.UserSession, input models.UpdateCompanyInput) (*models.Company, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceSettings, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	c, err := s.companies.GetByID(ctx, scope.CompanyID)
	if err != nil {
		return nil, notFoundOr(err, "company", scope.CompanyID)
	}

	if input.Name != nil {
		if c.Name = strings.TrimSpace(*input.Name); c.Name == "" {
			return nil, appErrors.NewValidationError("name", "name is required")
		}
	}
	if input.Currency != nil {
		c.Currency = strings.ToUpper(strings.TrimSpace(*input.Currency))
	}
	if input.TaxRate != nil {
		c.TaxRate = *input.TaxRate
	}
	if input.Timezone != nil {
		c.Timezone = strings.TrimSpace(*input.Timezone)
	}
	if input.QuotationValidityDays != nil {
		c.QuotationValidityDays = *input.QuotationValidityDays
	}
	if err := validateCompanySettings(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()
	if err := s.companies.Update(ctx, c); err != nil {
		return nil, notFoundOr(err, "company", c.ID)
	}
	return c, nil
}

func (s *CompanyService) ListBusinessUnits(ctx context.Context, user *auth.UserSession) ([]*models.Company, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceSettings, constants.PermRead)
	if err != nil {
		return nil, err
	}
	return s.companies.ListChildren(ctx, scope.CompanyID)
}

// ListCompanies pages through every tenant. Platform admins only.
func (s *CompanyService) ListCompanies(ctx context.Context, user *auth.UserSession, limit, offset int) ([]*models.Company, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	if !user.IsPlatformAdmin {
		return nil, appErrors.NewPermissionError(constants.PermRead, "companies")
	}
	return s.companies.ListAll(ctx, limit, offset)
}

// SetCompanyActive activates or deactivates a tenant. Platform admins only.
func (s *CompanyService) SetCompanyActive(ctx context.Context, user *auth.UserSession, id string, active bool) error {
	if err := requireUser(user); err != nil {
		return err
	}
	if !user.IsPlatformAdmin {
		return appErrors.NewPermissionError(constants.PermUpdate, "companies")
	}
	if err := s.companies.SetActive(ctx, id, active); err != nil {
		return notFoundOr(err, "company", id)
	}
	s.logger.Info("company active flag changed", zap.String("company_id", id), zap.Bool("active", active))
	return nil
}

func (s *CompanyService) DeactivateCompany(ctx context.Context, user *auth.UserSession, id string) error {
	return s.SetCompanyActive(ctx, user, id, false)
}

// ResolveActingCompany returns the session to use when the request names a company.
// Platform admins may act in any company; administrators of a parent company may act
// in its business units with their own role.
func (s *CompanyService) ResolveActingCompany(ctx context.Context, user *auth.UserSession, companyID string) (*auth.UserSession, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	companyID = strings.TrimSpace(companyID)
	if companyID == "" || companyID == user.CompanyID {
		return user, nil
	}

	target, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, notFoundOr(err, "company", companyID)
	}
	acting := *user
	acting.CompanyID = target.ID
	if user.IsPlatformAdmin {
		return &acting, nil
	}

	if target.ParentID == nil || *target.ParentID != user.CompanyID || !target.IsActive {
		return nil, appErrors.NewPermissionError("access", "company "+companyID)
	}
	if !s.access.Can(ctx, user, constants.ResourceSettings, constants.PermUpdate) {
		return nil, appErrors.NewPermissionError("access", "company "+companyID)
	}
	return &acting, nil
}
