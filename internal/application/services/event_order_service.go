package services

import (
	"context"
	"regexp"
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

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// EventOrderBalance is the money summary of an event order.
type EventOrderBalance struct {
	EventOrderID  string  `json:"event_order_id"`
	Currency      string  `json:"currency"`
	Total         float64 `json:"total"`
	Paid          float64 `json:"paid"`
	Balance       float64 `json:"balance"`
	PaymentStatus string  `json:"payment_status"`
}

type EventOrderService struct {
	eventOrders *persistence.EventOrderRepository
	customers   *persistence.CustomerRepository
	companies   *persistence.CompanyRepository
	payments    *persistence.PaymentRepository
	counters    *persistence.CounterRepository
	access      *AccessService
	outbox      ports.EventEnqueuer
	txManager   *persistence.TransactionManager
	lifecycle   *domain.StateMachine
	logger      *zap.Logger
}

func NewEventOrderService(eventOrders *persistence.EventOrderRepository, customers *persistence.CustomerRepository,
	companies *persistence.CompanyRepository, payments *persistence.PaymentRepository,
	counters *persistence.CounterRepository, access *AccessService, outbox ports.EventEnqueuer,
	txManager *persistence.TransactionManager, logger *zap.Logger) *EventOrderService {
	return &EventOrderService{
		eventOrders: eventOrders,
		customers:   customers,
		companies:   companies,
		payments:    payments,
		counters:    counters,
		access:      access,
		outbox:      outbox,
		txManager:   txManager,
		lifecycle:   domain.NewEventOrderStateMachine(),
		logger:      logger,
	}
}

// CreateEventOrder books an event without a quotation.
func (s *EventOrderService) CreateEventOrder(ctx context.Context, user *auth.UserSession, input models.EventOrderInput) (*models.EventOrder, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceEventOrders, constants.PermCreate)
	if err != nil {
		return nil, err
	}
	company, err := s.companies.GetByID(ctx, scope.CompanyID)
	if err != nil {
		return nil, notFoundOr(err, "company", scope.CompanyID)
	}
	if _, err := s.customers.Get(ctx, domain.CompanyScope(scope.CompanyID), input.CustomerID); err != nil {
		return nil, appErrors.NewValidationError("customer_id", "customer does not exist")
	}

	order := newEventOrder(scope.CompanyID, user.ID, input.CustomerID, company.Currency)
	applyEventOrderInput(order, input)
	if err := validateEventOrder(order); err != nil {
		return nil, err
	}
	if err := s.insert(ctx, user, order, companyLocation(company.Timezone)); err != nil {
		return nil, err
	}
	return order, nil
}

// insert numbers and stores a new order and enqueues its confirmation event, in one transaction.
func (s *EventOrderService) insert(ctx context.Context, user *auth.UserSession, order *models.EventOrder, loc *time.Location) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		number, err := nextDocumentNumber(txCtx, s.counters, order.CompanyID, constants.DocumentEventOrder, order.CreatedAt, loc)
		if err != nil {
			return err
		}
		order.Number = number
		if err := s.eventOrders.Create(txCtx, order); err != nil {
			return err
		}
		return s.outbox.Enqueue(txCtx, events.EventOrderConfirmed, eventPayload(order.CompanyID, order.ID, user.ID,
			map[string]interface{}{"number": order.Number, "owner_id": order.OwnerID}))
	})
}

func newEventOrder(companyID, ownerID, customerID, currency string) *models.EventOrder {
	now := time.Now().UTC()
	return &models.EventOrder{
		ID:            utils.GenerateID(),
		CompanyID:     companyID,
		OwnerID:       ownerID,
		CustomerID:    customerID,
		Status:        constants.EventOrderStatusConfirmed,
		Currency:      currency,
		PaymentStatus: constants.PaymentStatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *EventOrderService) GetEventOrder(ctx context.Context, user *auth.UserSession, id string) (*models.EventOrder, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceEventOrders, constants.PermRead)
	if err != nil {
		return nil, err
	}
	order, err := s.eventOrders.Get(ctx, scope, id)
	if err != nil {
		return nil, notFoundOr(err, "event order", id)
	}
	return order, nil
}

func (s *EventOrderService) ListEventOrders(ctx context.Context, user *auth.UserSession, filter models.EventOrderFilter) ([]*models.EventOrder, int, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceEventOrders, constants.PermRead)
	if err != nil {
		return nil, 0, err
	}
	return s.eventOrders.List(ctx, scope, filter)
}

// UpdateEventOrder edits an active order. The total can never drop below what was paid.
func (s *EventOrderService) UpdateEventOrder(ctx context.Context, user *auth.UserSession, id string, input models.EventOrderInput) (*models.EventOrder, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceEventOrders, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	var order *models.EventOrder
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if order, err = s.eventOrders.GetForUpdate(txCtx, scope, id); err != nil {
			return notFoundOr(err, "event order", id)
		}
		if s.lifecycle.IsTerminal(order.Status) {
			return appErrors.NewInvalidStateError("event order", order.Status, "update")
		}
		if input.CustomerID != "" && input.CustomerID != order.CustomerID {
			if _, err := s.customers.Get(txCtx, domain.CompanyScope(order.CompanyID), input.CustomerID); err != nil {
				return appErrors.NewValidationError("customer_id", "customer does not exist")
			}
			order.CustomerID = input.CustomerID
		}
		applyEventOrderInput(order, input)
		if err := validateEventOrder(order); err != nil {
			return err
		}
		if order.TotalAmount < order.PaidAmount {
			return appErrors.NewValidationError("total_amount", "total cannot be less than the amount already paid")
		}
		order.PaymentStatus = derivePaymentStatus(order.TotalAmount, order.PaidAmount)
		order.UpdatedAt = time.Now().UTC()
		if err := s.eventOrders.Update(txCtx, scope, order); err != nil {
			return notFoundOr(err, "event order", id)
		}
		return s.outbox.Enqueue(txCtx, events.EventOrderUpdated, eventPayload(order.CompanyID, order.ID, user.ID, nil))
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ChangeStatus applies a lifecycle action (start, complete, cancel).
// An order with paid payments or open invoices cannot be cancelled; void them first.
func (s *EventOrderService) ChangeStatus(ctx context.Context, user *auth.UserSession, id string, action domain.Action) (*models.EventOrder, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceEventOrders, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	var order *models.EventOrder
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if order, err = s.eventOrders.GetForUpdate(txCtx, scope, id); err != nil {
			return notFoundOr(err, "event order", id)
		}
		next, err := s.lifecycle.Transition(order.Status, action)
		if err != nil {
			return appErrors.NewInvalidStateError("event order", order.Status, string(action))
		}
		if action == domain.ActionCancel {
			paid, err := s.payments.SumByStatus(txCtx, order.CompanyID, order.ID, constants.PaymentPaid)
			if err != nil {
				return err
			}
			if paid > 0 {
				return appErrors.NewConflictReason("event order", "cannot cancel an order with paid payments")
			}
			pending, err := s.payments.SumByStatus(txCtx, order.CompanyID, order.ID, constants.PaymentPending)
			if err != nil {
				return err
			}
			if pending > 0 {
				return appErrors.NewConflictReason("event order", "void the pending invoices before cancelling")
			}
		}
		order.Status = next
		order.UpdatedAt = time.Now().UTC()
		if err := s.eventOrders.Update(txCtx, scope, order); err != nil {
			return notFoundOr(err, "event order", id)
		}

		var eventType events.EventType
		switch next {
		case constants.EventOrderStatusCancelled:
			eventType = events.EventOrderCancelled
		case constants.EventOrderStatusCompleted:
			eventType = events.EventOrderCompleted
		default:
			eventType = events.EventOrderUpdated
		}
		return s.outbox.Enqueue(txCtx, eventType, eventPayload(order.CompanyID, order.ID, user.ID,
			map[string]interface{}{"status": next}))
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *EventOrderService) Balance(ctx context.Context, user *auth.UserSession, id string) (*EventOrderBalance, error) {
	order, err := s.GetEventOrder(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return &EventOrderBalance{
		EventOrderID:  order.ID,
		Currency:      order.Currency,
		Total:         order.TotalAmount,
		Paid:          order.PaidAmount,
		Balance:       utils.RoundMoney(order.Balance()),
		PaymentStatus: order.PaymentStatus,
	}, nil
}

// recalcPayments recomputes paid_amount and payment_status from the paid payments.
// The order must have been locked with GetForUpdate in the same transaction.
func recalcPayments(ctx context.Context, eventOrders *persistence.EventOrderRepository, payments *persistence.PaymentRepository, order *models.EventOrder) error {
	paid, err := payments.SumByStatus(ctx, order.CompanyID, order.ID, constants.PaymentPaid)
	if err != nil {
		return err
	}
	order.PaidAmount = utils.RoundMoney(paid)
	order.PaymentStatus = derivePaymentStatus(order.TotalAmount, order.PaidAmount)
	order.UpdatedAt = time.Now().UTC()
	return eventOrders.Update(ctx, domain.CompanyScope(order.CompanyID), order)
}

func derivePaymentStatus(total, paid float64) string {
	switch {
	case paid <= 0:
		return constants.PaymentStatusUnpaid
	case paid >= total:
		return constants.PaymentStatusPaid
	default:
		return constants.PaymentStatusPartial
	}
}

func applyEventOrderInput(e *models.EventOrder, in models.EventOrderInput) {
	if in.Title != nil {
		e.Title = strings.TrimSpace(*in.Title)
	}
	if in.EventType != nil {
		e.EventType = strings.TrimSpace(*in.EventType)
	}
	if in.EventDate != nil {
		e.EventDate = *in.EventDate
	}
	if in.StartTime != nil {
		e.StartTime = strings.TrimSpace(*in.StartTime)
	}
	if in.EndTime != nil {
		e.EndTime = strings.TrimSpace(*in.EndTime)
	}
	if in.Venue != nil {
		e.Venue = strings.TrimSpace(*in.Venue)
	}
	if in.Pax != nil {
		e.Pax = *in.Pax
	}
	if in.TotalAmount != nil {
		e.TotalAmount = utils.RoundMoney(*in.TotalAmount)
	}
	if in.Currency != nil && strings.TrimSpace(*in.Currency) != "" {
		e.Currency = strings.ToUpper(strings.TrimSpace(*in.Currency))
	}
	if in.Notes != nil {
		e.Notes = strings.TrimSpace(*in.Notes)
	}
}

func validateEventOrder(e *models.EventOrder) error {
	if e.Title == "" {
		return appErrors.NewValidationError("title", "title is required")
	}
	if e.EventDate.IsZero() {
		return appErrors.NewValidationError("event_date", "event date is required")
	}
	if e.StartTime != "" && !clockPattern.MatchString(e.StartTime) {
		return appErrors.NewValidationError("start_time", "time must be HH:MM")
	}
	if e.EndTime != "" && !clockPattern.MatchString(e.EndTime) {
		return appErrors.NewValidationError("end_time", "time must be HH:MM")
	}
	if e.Pax < 0 {
		return appErrors.NewValidationError("pax", "must not be negative")
	}
	if e.TotalAmount < 0 {
		return appErrors.NewValidationError("total_amount", "must not be negative")
	}
	if !currencyPattern.MatchString(e.Currency) {
		return appErrors.NewValidationError("currency", "currency must be an ISO 4217 code")
	}
	return nil
}
