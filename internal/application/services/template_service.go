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
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/expression"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/utils"
)

// RenderRequest names the records whose fields a template may reference.
type RenderRequest struct {
	CustomerID   string `json:"customer_id"`
	QuotationID  string `json:"quotation_id"`
	EventOrderID string `json:"event_order_id"`
}

type TemplateService struct {
	templates   *persistence.TemplateRepository
	companies   *persistence.CompanyRepository
	customers   *persistence.CustomerRepository
	quotations  *persistence.QuotationRepository
	eventOrders *persistence.EventOrderRepository
	engine      *expression.Engine
	access      *AccessService
	txManager   *persistence.TransactionManager
	logger      *zap.Logger
}

func NewTemplateService(templates *persistence.TemplateRepository, companies *persistence.CompanyRepository,
	customers *persistence.CustomerRepository, quotations *persistence.QuotationRepository,
	eventOrders *persistence.EventOrderRepository, engine *expression.Engine, access *AccessService,
	txManager *persistence.TransactionManager, logger *zap.Logger) *TemplateService {
	return &TemplateService{
		templates:   templates,
		companies:   companies,
		customers:   customers,
		quotations:  quotations,
		eventOrders: eventOrders,
		engine:      engine,
		access:      access,
		txManager:   txManager,
		logger:      logger,
	}
}

func (s *TemplateService) ListTemplates(ctx context.Context, user *auth.UserSession, kind string) ([]*models.Template, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceTemplates, constants.PermRead)
	if err != nil {
		return nil, err
	}
	return s.templates.List(ctx, scope.CompanyID, kind)
}

func (s *TemplateService) GetTemplate(ctx context.Context, user *auth.UserSession, id string) (*models.Template, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceTemplates, constants.PermRead)
	if err != nil {
		return nil, err
	}
	t, err := s.templates.Get(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, notFoundOr(err, "template", id)
	}
	return t, nil
}

// CreateTemplate stores a template. Marking it default clears the previous default of the
// same kind in the same transaction.
func (s *TemplateService) CreateTemplate(ctx context.Context, user *auth.UserSession, input models.TemplateInput) (*models.Template, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceTemplates, constants.PermCreate)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	t := &models.Template{
		ID:        utils.GenerateID(),
		CompanyID: scope.CompanyID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyTemplateInput(t, input)
	if err := validateTemplate(t); err != nil {
		return nil, err
	}
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if t.IsDefault {
			if err := s.templates.ClearDefault(txCtx, t.CompanyID, t.Kind, t.ID); err != nil {
				return err
			}
		}
		return s.templates.Create(txCtx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateService) UpdateTemplate(ctx context.Context, user *auth.UserSession, id string, input models.TemplateInput) (*models.Template, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceTemplates, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	var t *models.Template
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if t, err = s.templates.Get(txCtx, scope.CompanyID, id); err != nil {
			return notFoundOr(err, "template", id)
		}
		applyTemplateInput(t, input)
		if err := validateTemplate(t); err != nil {
			return err
		}
		t.UpdatedAt = time.Now().UTC()
		if t.IsDefault {
			if err := s.templates.ClearDefault(txCtx, t.CompanyID, t.Kind, t.ID); err != nil {
				return err
			}
		}
		return notFoundOr(s.templates.Update(txCtx, t), "template", id)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateService) DeleteTemplate(ctx context.Context, user *auth.UserSession, id string) error {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceTemplates, constants.PermDelete)
	if err != nil {
		return err
	}
	return notFoundOr(s.templates.Delete(ctx, scope.CompanyID, id), "template", id)
}

// Render fills the template placeholders from the referenced records. Each record is read
// with the caller's own permissions, so a template cannot leak rows outside their scope.
func (s *TemplateService) Render(ctx context.Context, user *auth.UserSession, id string, req RenderRequest) (*models.RenderedTemplate, error) {
	t, err := s.GetTemplate(ctx, user, id)
	if err != nil {
		return nil, err
	}
	env, err := s.renderEnv(ctx, user, req)
	if err != nil {
		return nil, err
	}
	return s.RenderTemplate(t, env), nil
}

// RenderTemplate substitutes {{ path }} placeholders; unknown paths render empty.
func (s *TemplateService) RenderTemplate(t *models.Template, env map[string]interface{}) *models.RenderedTemplate {
	return &models.RenderedTemplate{
		Subject: s.engine.Substitute(t.Subject, env),
		Body:    s.engine.Substitute(t.Body, env),
		Terms:   s.engine.Substitute(t.Terms, env),
	}
}

func (s *TemplateService) renderEnv(ctx context.Context, user *auth.UserSession, req RenderRequest) (map[string]interface{}, error) {
	empty := map[string]interface{}{}
	env := map[string]interface{}{
		"company":     empty,
		"customer":    empty,
		"quotation":   empty,
		"event_order": empty,
	}
	company, err := s.companies.GetByID(ctx, user.CompanyID)
	if err != nil {
		return nil, notFoundOr(err, "company", user.CompanyID)
	}
	env["company"] = company.ToMap()

	if req.QuotationID != "" {
		scope, err := s.access.Authorize(ctx, user, constants.ResourceQuotations, constants.PermRead)
		if err != nil {
			return nil, err
		}
		q, err := s.quotations.Get(ctx, scope, req.QuotationID)
		if err != nil {
			return nil, notFoundOr(err, "quotation", req.QuotationID)
		}
		env["quotation"] = q.ToMap()
		if req.CustomerID == "" {
			req.CustomerID = q.CustomerID
		}
	}
	if req.EventOrderID != "" {
		scope, err := s.access.Authorize(ctx, user, constants.ResourceEventOrders, constants.PermRead)
		if err != nil {
			return nil, err
		}
		e, err := s.eventOrders.Get(ctx, scope, req.EventOrderID)
		if err != nil {
			return nil, notFoundOr(err, "event order", req.EventOrderID)
		}
		env["event_order"] = e.ToMap()
		if req.CustomerID == "" {
			req.CustomerID = e.CustomerID
		}
	}
	if req.CustomerID != "" {
		scope, err := s.access.Authorize(ctx, user, constants.ResourceCustomers, constants.PermRead)
		if err != nil {
			return nil, err
		}
		c, err := s.customers.Get(ctx, scope, req.CustomerID)
		if err != nil {
			return nil, notFoundOr(err, "customer", req.CustomerID)
		}
		env["customer"] = c.ToMap()
	}
	return env, nil
}

func applyTemplateInput(t *models.Template, in models.TemplateInput) {
	t.Kind = strings.TrimSpace(in.Kind)
	t.Name = strings.TrimSpace(in.Name)
	t.Subject = in.Subject
	t.Body = in.Body
	t.Terms = in.Terms
	t.DefaultItems = in.DefaultItems
	if t.DefaultItems == nil {
		t.DefaultItems = []models.LineItemInput{}
	}
	t.IsDefault = in.IsDefault
}

func validateTemplate(t *models.Template) error {
	if t.Kind != constants.TemplateKindQuotation && t.Kind != constants.TemplateKindEmail {
		return appErrors.NewValidationError("kind", "kind must be quotation or email")
	}
	if t.Name == "" {
		return appErrors.NewValidationError("name", "name is required")
	}
	if t.Kind == constants.TemplateKindEmail && len(t.DefaultItems) > 0 {
		return appErrors.NewValidationError("default_items", "email templates have no items")
	}
	if _, err := lineItems(t.DefaultItems); err != nil {
		return err
	}
	return nil
}
