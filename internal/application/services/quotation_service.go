package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/events"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/ports"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/utils"
)

// QuotationService owns quotation pricing, numbering and the draft/sent/accepted lifecycle.
type QuotationService struct {
	quotations  *persistence.QuotationRepository
	customers   *persistence.CustomerRepository
	leads       *persistence.LeadRepository
	companies   *persistence.CompanyRepository
	templates   *persistence.TemplateRepository
	eventOrders *EventOrderService
	counters    *persistence.CounterRepository
	access      *AccessService
	outbox      ports.EventEnqueuer
	txManager   *persistence.TransactionManager
	lifecycle   *domain.StateMachine
	logger      *zap.Logger
	now         func() time.Time
}

func NewQuotationService(quotations *persistence.QuotationRepository, customers *persistence.CustomerRepository,
	leads *persistence.LeadRepository, companies *persistence.CompanyRepository, templates *persistence.TemplateRepository,
	eventOrders *EventOrderService, counters *persistence.CounterRepository, access *AccessService,
	outbox ports.EventEnqueuer, txManager *persistence.TransactionManager, logger *zap.Logger) *QuotationService {
	return &QuotationService{
		quotations:  quotations,
		customers:   customers,
		leads:       leads,
		companies:   companies,
		templates:   templates,
		eventOrders: eventOrders,
		counters:    counters,
		access:      access,
		outbox:      outbox,
		txManager:   txManager,
		lifecycle:   domain.NewQuotationStateMachine(),
		logger:      logger,
		now:         time.Now,
	}
}

// CreateQuotation prices and numbers a new draft. Missing items are taken from the named
// template, then from the company's default quotation template.
func (s *QuotationService) CreateQuotation(ctx context.Context, user *auth.UserSession, input models.QuotationInput) (*models.Quotation, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceQuotations, constants.PermCreate)
	if err != nil {
		return nil, err
	}
	customerScope, err := s.access.Authorize(ctx, user, constants.ResourceCustomers, constants.PermRead)
	if err != nil {
		return nil, err
	}
	if _, err := s.customers.Get(ctx, customerScope, input.CustomerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewValidationError("customer_id", "customer does not exist")
		}
		return nil, err
	}
	if err := s.checkLead(ctx, scope.CompanyID, input.LeadID); err != nil {
		return nil, err
	}
	company, err := s.companies.GetByID(ctx, scope.CompanyID)
	if err != nil {
		return nil, notFoundOr(err, "company", scope.CompanyID)
	}

	now := s.now().UTC()
	q := &models.Quotation{
		ID:            utils.GenerateID(),
		CompanyID:     scope.CompanyID,
		OwnerID:       user.ID,
		CustomerID:    input.CustomerID,
		LeadID:        input.LeadID,
		Title:         strings.TrimSpace(input.Title),
		Status:        constants.QuotationStatusDraft,
		Currency:      company.Currency,
		TaxRate:       company.TaxRate,
		DiscountType:  input.DiscountType,
		DiscountValue: input.DiscountValue,
		Notes:         strings.TrimSpace(input.Notes),
		Terms:         strings.TrimSpace(input.Terms),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if c := strings.TrimSpace(input.Currency); c != "" {
		q.Currency = strings.ToUpper(c)
	}
	if input.TaxRate != nil {
		q.TaxRate = *input.TaxRate
	}
	loc := companyLocation(company.Timezone)
	if input.ValidUntil != nil {
		q.ValidUntil = *input.ValidUntil
	} else {
		q.ValidUntil = startOfDay(now, loc).AddDate(0, 0, company.QuotationValidityDays)
	}

	itemInputs := input.Items
	if len(itemInputs) == 0 {
		tmpl, err := s.quotationTemplate(ctx, scope.CompanyID, input.TemplateID)
		if err != nil {
			return nil, err
		}
		itemInputs = tmpl.DefaultItems
		q.TemplateID = &tmpl.ID
		if q.Terms == "" {
			q.Terms = tmpl.Terms
		}
	} else {
		q.TemplateID = input.TemplateID
	}
	if q.Items, err = lineItems(itemInputs); err != nil {
		return nil, err
	}
	if err := s.validate(q, loc); err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		number, err := nextDocumentNumber(txCtx, s.counters, q.CompanyID, constants.DocumentQuotation, now, loc)
		if err != nil {
			return err
		}
		q.Number = number
		setItemOwner(q)
		return s.quotations.Create(txCtx, q)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Quotation created", zap.String("quotation_id", q.ID), zap.String("number", q.Number))
	return q, nil
}

func (s *QuotationService) checkLead(ctx context.Context, companyID string, leadID *string) error {
	if leadID == nil || *leadID == "" {
		return nil
	}
	if _, err := s.leads.Get(ctx, domain.CompanyScope(companyID), *leadID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NewValidationError("lead_id", "lead does not exist")
		}
		return err
	}
	return nil
}

// quotationTemplate resolves the named template, or the default one when id is nil.
func (s *QuotationService) quotationTemplate(ctx context.Context, companyID string, id *string) (*models.Template, error) {
	var tmpl *models.Template
	var err error
	if id != nil && *id != "" {
		tmpl, err = s.templates.Get(ctx, companyID, *id)
	} else {
		tmpl, err = s.templates.GetDefault(ctx, companyID, constants.TemplateKindQuotation)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewValidationError("items", "at least one item or a quotation template is required")
	}
	if err != nil {
		return nil, err
	}
	if tmpl.Kind != constants.TemplateKindQuotation {
		return nil, appErrors.NewValidationError("template_id", "template is not a quotation template")
	}
	return tmpl, nil
}

func (s *QuotationService) validate(q *models.Quotation, loc *time.Location) error {
	if q.Title == "" {
		return appErrors.NewValidationError("title", "title is required")
	}
	if len(q.Items) == 0 {
		return appErrors.NewValidationError("items", "at least one item is required")
	}
	if !currencyPattern.MatchString(q.Currency) {
		return appErrors.NewValidationError("currency", "currency must be an ISO 4217 code")
	}
	if pastValidity(q.ValidUntil, s.now(), loc) {
		return appErrors.NewValidationError("valid_until", "valid_until must not be in the past")
	}
	return applyTotals(q)
}

func setItemOwner(q *models.Quotation) {
	for i := range q.Items {
		q.Items[i].QuotationID = q.ID
	}
}

func (s *QuotationService) GetQuotation(ctx context.Context, user *auth.UserSession, id string) (*models.Quotation, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceQuotations, constants.PermRead)
	if err != nil {
		return nil, err
	}
	q, err := s.quotations.Get(ctx, scope, id)
	if err != nil {
		return nil, notFoundOr(err, "quotation", id)
	}
	return q, nil
}

func (s *QuotationService) ListQuotations(ctx context.Context, user *auth.UserSession, filter models.QuotationFilter) ([]*models.Quotation, int, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceQuotations, constants.PermRead)
	if err != nil {
		return nil, 0, err
	}
	return s.quotations.List(ctx, scope, filter)
}

// UpdateQuotation rewrites a draft. Items are replaced when the input carries any.
func (s *QuotationService) UpdateQuotation(ctx context.Context, user *auth.UserSession, id string, input models.QuotationInput) (*models.Quotation, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceQuotations, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	company, err := s.companies.GetByID(ctx, scope.CompanyID)
	if err != nil {
		return nil, notFoundOr(err, "company", scope.CompanyID)
	}

	var q *models.Quotation
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if q, err = s.quotations.GetForUpdate(txCtx, scope, id); err != nil {
			return notFoundOr(err, "quotation", id)
		}
		if q.Status != constants.QuotationStatusDraft {
			return appErrors.NewInvalidStateError("quotation", q.Status, "update")
		}
		if input.CustomerID != "" && input.CustomerID != q.CustomerID {
			if _, err := s.customers.Get(txCtx, domain.CompanyScope(q.CompanyID), input.CustomerID); err != nil {
				return appErrors.NewValidationError("customer_id", "customer does not exist")
			}
			q.CustomerID = input.CustomerID
		}
		if input.LeadID != nil {
			if err := s.checkLead(txCtx, q.CompanyID, input.LeadID); err != nil {
				return err
			}
			q.LeadID = input.LeadID
			if *input.LeadID == "" {
				q.LeadID = nil
			}
		}
		if t := strings.TrimSpace(input.Title); t != "" {
			q.Title = t
		}
		if c := strings.TrimSpace(input.Currency); c != "" {
			q.Currency = strings.ToUpper(c)
		}
		if input.ValidUntil != nil {
			q.ValidUntil = *input.ValidUntil
		}
		if input.TaxRate != nil {
			q.TaxRate = *input.TaxRate
		}
		q.DiscountType = input.DiscountType
		q.DiscountValue = input.DiscountValue
		q.Notes = strings.TrimSpace(input.Notes)
		q.Terms = strings.TrimSpace(input.Terms)

		replaceItems := len(input.Items) > 0
		if replaceItems {
			if q.Items, err = lineItems(input.Items); err != nil {
				return err
			}
			setItemOwner(q)
		}
		if err := s.validate(q, companyLocation(company.Timezone)); err != nil {
			return err
		}
		q.UpdatedAt = s.now().UTC()
		return s.quotations.Update(txCtx, scope, q, replaceItems)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuotationService) DeleteQuotation(ctx context.Context, user *auth.UserSession, id string) error {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceQuotations, constants.PermDelete)
	if err != nil {
		return err
	}
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		q, err := s.quotations.GetForUpdate(txCtx, scope, id)
		if err != nil {
			return notFoundOr(err, "quotation", id)
		}
		if q.Status != constants.QuotationStatusDraft {
			return appErrors.NewInvalidStateError("quotation", q.Status, "delete")
		}
		return notFoundOr(s.quotations.Delete(txCtx, scope, id), "quotation", id)
	})
}

// Send moves a draft to sent. Sending an already expired draft is refused.
func (s *QuotationService) Send(ctx context.Context, user *auth.UserSession, id string) (*models.Quotation, error) {
	return s.transition(ctx, user, id, domain.ActionSend, func(q *models.Quotation, now time.Time) {
		q.SentAt = &now
	})
}

func (s *QuotationService) Accept(ctx context.Context, user *auth.UserSession, id string) (*models.Quotation, error) {
	return s.transition(ctx, user, id, domain.ActionAccept, func(q *models.Quotation, now time.Time) {
		q.AcceptedAt = &now
	})
}

func (s *QuotationService) Reject(ctx context.Context, user *auth.UserSession, id string) (*models.Quotation, error) {
	return s.transition(ctx, user, id, domain.ActionReject, func(q *models.Quotation, now time.Time) {
		q.RejectedAt = &now
	})
}

// Revise returns a sent quotation to draft so it can be edited and sent again.
func (s *QuotationService) Revise(ctx context.Context, user *auth.UserSession, id string) (*models.Quotation, error) {
	return s.transition(ctx, user, id, domain.ActionRevise, func(q *models.Quotation, _ time.Time) {
		q.SentAt = nil
	})
}

var quotationEvents = map[domain.Action]events.EventType{
	domain.ActionSend:   events.QuotationSent,
	domain.ActionAccept: events.QuotationAccepted,
	domain.ActionReject: events.QuotationRejected,
}

func (s *QuotationService) transition(ctx context.Context, user *auth.UserSession, id string, action domain.Action,
	apply func(q *models.Quotation, now time.Time)) (*models.Quotation, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceQuotations, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	company, err := s.companies.GetByID(ctx, scope.CompanyID)
	if err != nil {
		return nil, notFoundOr(err, "company", scope.CompanyID)
	}

	var q *models.Quotation
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if q, err = s.quotations.GetForUpdate(txCtx, scope, id); err != nil {
			return notFoundOr(err, "quotation", id)
		}
		next, err := s.lifecycle.Transition(q.Status, action)
		if err != nil {
			return appErrors.NewInvalidStateError("quotation", q.Status, string(action))
		}
		now := s.now().UTC()
		if action != domain.ActionRevise && pastValidity(q.ValidUntil, now, companyLocation(company.Timezone)) {
			return appErrors.NewInvalidStateError("quotation", "past valid_until", string(action))
		}
		q.Status = next
		apply(q, now)
		q.UpdatedAt = now
		if err := s.quotations.Update(txCtx, scope, q, false); err != nil {
			return notFoundOr(err, "quotation", id)
		}
		if eventType, ok := quotationEvents[action]; ok {
			return s.outbox.Enqueue(txCtx, eventType, eventPayload(q.CompanyID, q.ID, user.ID,
				map[string]interface{}{"number": q.Number, "total": q.Total}))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// pastValidity compares dates in the company's timezone. A quotation is valid through its valid_until day.
func pastValidity(validUntil, now time.Time, loc *time.Location) bool {
	return now.In(loc).Format("2006-01-02") > validUntil.Format("2006-01-02")
}

// Duplicate copies a quotation of any status into a new draft with a fresh number.
func (s *QuotationService) Duplicate(ctx context.Context, user *auth.UserSession, id string) (*models.Quotation, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceQuotations, constants.PermCreate)
	if err != nil {
		return nil, err
	}
	src, err := s.quotations.Get(ctx, scope, id)
	if err != nil {
		return nil, notFoundOr(err, "quotation", id)
	}
	company, err := s.companies.GetByID(ctx, scope.CompanyID)
	if err != nil {
		return nil, notFoundOr(err, "company", scope.CompanyID)
	}

	now := s.now().UTC()
	dup := *src
	dup.ID = utils.GenerateID()
	dup.OwnerID = user.ID
	dup.Status = constants.QuotationStatusDraft
	dup.EventOrderID = nil
	dup.SentAt, dup.AcceptedAt, dup.RejectedAt = nil, nil, nil
	dup.CreatedAt, dup.UpdatedAt = now, now
	loc := companyLocation(company.Timezone)
	if pastValidity(dup.ValidUntil, now, loc) {
		dup.ValidUntil = startOfDay(now, loc).AddDate(0, 0, company.QuotationValidityDays)
	}
	dup.Items = make([]models.QuotationItem, len(src.Items))
	for i, it := range src.Items {
		it.ID = utils.GenerateID()
		dup.Items[i] = it
	}
	setItemOwner(&dup)

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		number, err := nextDocumentNumber(txCtx, s.counters, dup.CompanyID, constants.DocumentQuotation, now, loc)
		if err != nil {
			return err
		}
		dup.Number = number
		return s.quotations.Create(txCtx, &dup)
	})
	if err != nil {
		return nil, err
	}
	return &dup, nil
}

// ConvertToEventOrder books the event for an accepted quotation. A quotation converts at most once.
func (s *QuotationService) ConvertToEventOrder(ctx context.Context, user *auth.UserSession, id string, input models.EventOrderInput) (*models.EventOrder, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceQuotations, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Authorize(ctx, user, constants.ResourceEventOrders, constants.PermCreate); err != nil {
		return nil, err
	}
	company, err := s.companies.GetByID(ctx, scope.CompanyID)
	if err != nil {
		return nil, notFoundOr(err, "company", scope.CompanyID)
	}

	var order *models.EventOrder
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		q, err := s.quotations.GetForUpdate(txCtx, scope, id)
		if err != nil {
			return notFoundOr(err, "quotation", id)
		}
		if q.Status != constants.QuotationStatusAccepted {
			return appErrors.NewInvalidStateError("quotation", q.Status, "convert")
		}
		if q.EventOrderID != nil {
			return appErrors.NewConflictReason("quotation", "quotation already has an event order")
		}
		exists, err := s.eventOrders.eventOrders.ExistsForQuotation(txCtx, q.CompanyID, q.ID)
		if err != nil {
			return err
		}
		if exists {
			return appErrors.NewConflictReason("quotation", "quotation already has an event order")
		}

		order = newEventOrder(q.CompanyID, q.OwnerID, q.CustomerID, q.Currency)
		order.QuotationID = &q.ID
		order.Title = q.Title
		input.TotalAmount = nil
		input.Currency = nil
		applyEventOrderInput(order, input)
		order.TotalAmount = q.Total
		if err := validateEventOrder(order); err != nil {
			return err
		}
		if err := s.eventOrders.insert(txCtx, user, order, companyLocation(company.Timezone)); err != nil {
			return err
		}

		q.EventOrderID = &order.ID
		q.UpdatedAt = s.now().UTC()
		return s.quotations.Update(txCtx, scope, q, false)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Quotation converted to event order",
		zap.String("quotation_id", id), zap.String("event_order_id", order.ID), zap.String("number", order.Number))
	return order, nil
}

// ExpireOverdue expires quotations past valid_until across all tenants. Candidates are the
// states the lifecycle allows to expire, and each row still goes through the transition.
func (s *QuotationService) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now().UTC()
	today := startOfDay(now, time.UTC)
	var count int
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		refs, err := s.quotations.ListOverdueForUpdate(txCtx, today, s.lifecycle.StatesAllowing(domain.ActionExpire)...)
		if err != nil {
			return err
		}
		byStatus := make(map[string][]string)
		var expired []models.QuotationRef
		for _, ref := range refs {
			next, err := s.lifecycle.Transition(ref.Status, domain.ActionExpire)
			if err != nil {
				s.logger.Warn("Skipping overdue quotation", zap.String("quotation_id", ref.ID), zap.Error(err))
				continue
			}
			byStatus[next] = append(byStatus[next], ref.ID)
			expired = append(expired, ref)
		}
		for status, ids := range byStatus {
			if err := s.quotations.SetStatus(txCtx, status, now, ids); err != nil {
				return err
			}
		}
		for _, ref := range expired {
			if err := s.outbox.Enqueue(txCtx, events.QuotationExpired,
				eventPayload(ref.CompanyID, ref.ID, constants.SystemUserID, map[string]interface{}{"from": ref.Status})); err != nil {
				return err
			}
		}
		count = len(expired)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("Expired overdue quotations", zap.Int("count", count))
	}
	return count, nil
}
