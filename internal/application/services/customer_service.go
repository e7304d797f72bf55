package services

import (
	"context"
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

type CustomerService struct {
	customers *persistence.CustomerRepository
	users     *UserService
	access    *AccessService
	logger    *zap.Logger
}

func NewCustomerService(customers *persistence.CustomerRepository, users *UserService, access *AccessService,
	logger *zap.Logger) *CustomerService {
	return &CustomerService{customers: customers, users: users, access: access, logger: logger}
}

func (s *CustomerService) CreateCustomer(ctx context.Context, user *auth.UserSession, input models.CustomerInput) (*models.Customer, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceCustomers, constants.PermCreate)
	if err != nil {
		return nil, err
	}
	ownerID, err := resolveOwner(ctx, s.users, scope, user, constants.ResourceCustomers, utils.Deref(input.OwnerID))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c := &models.Customer{
		ID:        utils.GenerateID(),
		CompanyID: scope.CompanyID,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyCustomerInput(c, input)
	if err := validateCustomer(c); err != nil {
		return nil, err
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, user *auth.UserSession, id string) (*models.Customer, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceCustomers, constants.PermRead)
	if err != nil {
		return nil, err
	}
	c, err := s.customers.Get(ctx, scope, id)
	if err != nil {
		return nil, notFoundOr(err, "customer", id)
	}
	return c, nil
}

func (s *CustomerService) ListCustomers(ctx context.Context, user *auth.UserSession, filter models.CustomerFilter) ([]*models.Customer, int, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceCustomers, constants.PermRead)
	if err != nil {
		return nil, 0, err
	}
	return s.customers.List(ctx, scope, filter)
}

func (s *CustomerService) UpdateCustomer(ctx context.Context, user *auth.UserSession, id string, input models.CustomerInput) (*models.Customer, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceCustomers, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	c, err := s.customers.Get(ctx, scope, id)
	if err != nil {
		return nil, notFoundOr(err, "customer", id)
	}
	if input.OwnerID != nil && *input.OwnerID != c.OwnerID {
		if c.OwnerID, err = resolveOwner(ctx, s.users, scope, user, constants.ResourceCustomers, *input.OwnerID); err != nil {
			return nil, err
		}
	}
	applyCustomerInput(c, input)
	if err := validateCustomer(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()
	if err := s.customers.Update(ctx, scope, c); err != nil {
		return nil, notFoundOr(err, "customer", id)
	}
	return c, nil
}

// DeleteCustomer refuses while quotations or event orders still reference the customer.
func (s *CustomerService) DeleteCustomer(ctx context.Context, user *auth.UserSession, id string) error {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceCustomers, constants.PermDelete)
	if err != nil {
		return err
	}
	if _, err := s.customers.Get(ctx, scope, id); err != nil {
		return notFoundOr(err, "customer", id)
	}
	quotations, orders, err := s.customers.CountReferences(ctx, scope.CompanyID, id)
	if err != nil {
		return err
	}
	if quotations > 0 || orders > 0 {
		return appErrors.NewConflictReason("customer", "customer is referenced by quotations or event orders")
	}
	return notFoundOr(s.customers.Delete(ctx, scope, id), "customer", id)
}

func (s *CustomerService) CustomerSummary(ctx context.Context, user *auth.UserSession, id string) (*models.CustomerSummary, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceCustomers, constants.PermRead)
	if err != nil {
		return nil, err
	}
	if _, err := s.customers.Get(ctx, scope, id); err != nil {
		return nil, notFoundOr(err, "customer", id)
	}
	quotations, orders, err := s.customers.CountReferences(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, err
	}
	paid, err := s.customers.TotalPaid(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, err
	}
	return &models.CustomerSummary{
		CustomerID:      id,
		QuotationCount:  quotations,
		EventOrderCount: orders,
		TotalPaid:       utils.RoundMoney(paid),
	}, nil
}

func applyCustomerInput(c *models.Customer, in models.CustomerInput) {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		c.Email = auth.NormalizeEmail(*in.Email)
	}
	if in.Phone != nil {
		c.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Organization != nil {
		c.Organization = strings.TrimSpace(*in.Organization)
	}
	if in.Address != nil {
		c.Address = strings.TrimSpace(*in.Address)
	}
	if in.TaxID != nil {
		c.TaxID = strings.TrimSpace(*in.TaxID)
	}
	if in.Notes != nil {
		c.Notes = strings.TrimSpace(*in.Notes)
	}
}

func validateCustomer(c *models.Customer) error {
	if c.Name == "" {
		return appErrors.NewValidationError("name", "name is required")
	}
	if c.Email != "" && !auth.IsValidEmail(c.Email) {
		return appErrors.NewValidationError("email", "invalid email format")
	}
	return nil
}
