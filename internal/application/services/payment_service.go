package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/events"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/ports"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/xendit"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/metrics"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/utils"
)

const (
	webhookProvider       = "xendit"
	reconcileBatchSize    = 100
	reconcileMinimumAge   = 15 * time.Minute
	deadlockRetryAttempts = 3
)

// PaymentService records manual payments and drives Xendit invoices through their lifecycle.
type PaymentService struct {
	payments    *persistence.PaymentRepository
	eventOrders *persistence.EventOrderRepository
	customers   *persistence.CustomerRepository
	gateway     ports.PaymentGateway
	idempotency ports.IdempotencyStore
	access      *AccessService
	outbox      ports.EventEnqueuer
	txManager   *persistence.TransactionManager
	logger      *zap.Logger
	now         func() time.Time
}

func NewPaymentService(payments *persistence.PaymentRepository, eventOrders *persistence.EventOrderRepository,
	customers *persistence.CustomerRepository, gateway ports.PaymentGateway, idempotency ports.IdempotencyStore,
	access *AccessService, outbox ports.EventEnqueuer, txManager *persistence.TransactionManager, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		payments:    payments,
		eventOrders: eventOrders,
		customers:   customers,
		gateway:     gateway,
		idempotency: idempotency,
		access:      access,
		outbox:      outbox,
		txManager:   txManager,
		logger:      logger,
		now:         time.Now,
	}
}

// RecordManualPayment stores a cash, transfer or card payment as paid and updates the order totals.
func (s *PaymentService) RecordManualPayment(ctx context.Context, user *auth.UserSession, input models.ManualPaymentInput) (*models.Payment, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourcePayments, constants.PermCreate)
	if err != nil {
		return nil, err
	}
	if !constants.IsManualPaymentMethod(input.Method) {
		return nil, appErrors.NewValidationError("method", "method must be cash, bank_transfer or card")
	}
	amount := utils.RoundMoney(input.Amount)
	if amount <= 0 {
		return nil, appErrors.NewValidationError("amount", "amount must be greater than zero")
	}

	now := s.now().UTC()
	paidAt := now
	if input.PaidAt != nil {
		if input.PaidAt.After(now) {
			return nil, appErrors.NewValidationError("paid_at", "paid_at must not be in the future")
		}
		paidAt = input.PaidAt.UTC()
	}

	var payment *models.Payment
	err = s.txManager.WithRetry(ctx, deadlockRetryAttempts, func(txCtx context.Context) error {
		order, err := s.payableOrder(txCtx, scope, input.EventOrderID, amount)
		if err != nil {
			return err
		}
		payment = &models.Payment{
			ID:           utils.GenerateID(),
			CompanyID:    order.CompanyID,
			EventOrderID: order.ID,
			CustomerID:   order.CustomerID,
			Amount:       amount,
			Currency:     order.Currency,
			Method:       input.Method,
			Status:       constants.PaymentPaid,
			Reference:    strings.TrimSpace(input.Reference),
			PaidAt:       &paidAt,
			RecordedBy:   user.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.payments.Create(txCtx, payment); err != nil {
			return err
		}
		if err := recalcPayments(txCtx, s.eventOrders, s.payments, order); err != nil {
			return err
		}
		return s.outbox.Enqueue(txCtx, events.PaymentPaid, paymentEventPayload(payment, user.ID))
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordPayment(payment.Method, payment.Status)
	s.logger.Info("Manual payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("event_order_id", payment.EventOrderID),
		zap.Float64("amount", payment.Amount))
	return payment, nil
}

// payableOrder locks the order and checks that amount fits in its balance.
func (s *PaymentService) payableOrder(ctx context.Context, scope domain.Scope, eventOrderID string, amount float64) (*models.EventOrder, error) {
	order, err := s.eventOrders.GetForUpdate(ctx, scope, eventOrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewValidationError("event_order_id", "event order does not exist")
		}
		return nil, err
	}
	if order.Status == constants.EventOrderStatusCancelled {
		return nil, appErrors.NewInvalidStateError("event order", order.Status, "pay")
	}
	if amount > utils.RoundMoney(order.Balance()) {
		return nil, appErrors.NewValidationError("amount", fmt.Sprintf("amount exceeds the outstanding balance of %.2f", order.Balance()))
	}
	return order, nil
}

// CreateXenditInvoice issues a hosted invoice for part or all of an order's balance.
// The payment id is the invoice external_id.
func (s *PaymentService) CreateXenditInvoice(ctx context.Context, user *auth.UserSession, input models.InvoiceInput) (*models.Payment, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourcePayments, constants.PermCreate)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil || !s.gateway.Enabled() {
		return nil, appErrors.NewExternalServiceError(webhookProvider, http.StatusServiceUnavailable, "payment gateway is not configured")
	}
	amount := utils.RoundMoney(input.Amount)
	if amount <= 0 {
		return nil, appErrors.NewValidationError("amount", "amount must be greater than zero")
	}

	order, err := s.eventOrders.Get(ctx, scope, input.EventOrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewValidationError("event_order_id", "event order does not exist")
		}
		return nil, err
	}
	if order.Status == constants.EventOrderStatusCancelled {
		return nil, appErrors.NewInvalidStateError("event order", order.Status, "pay")
	}
	if amount > utils.RoundMoney(order.Balance()) {
		return nil, appErrors.NewValidationError("amount", fmt.Sprintf("amount exceeds the outstanding balance of %.2f", order.Balance()))
	}

	payerEmail := strings.TrimSpace(input.PayerEmail)
	if payerEmail == "" {
		if customer, err := s.customers.Get(ctx, domain.CompanyScope(order.CompanyID), order.CustomerID); err == nil {
			payerEmail = customer.Email
		}
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = fmt.Sprintf("Payment for %s %s", order.Number, order.Title)
	}

	now := s.now().UTC()
	payment := &models.Payment{
		ID:           utils.GenerateID(),
		CompanyID:    order.CompanyID,
		EventOrderID: order.ID,
		CustomerID:   order.CustomerID,
		Amount:       amount,
		Currency:     order.Currency,
		Method:       constants.PaymentMethodXenditInvoice,
		Status:       constants.PaymentPending,
		RecordedBy:   user.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	payment.ExternalID = payment.ID

	invoice, err := s.gateway.CreateInvoice(ctx, xendit.CreateInvoiceRequest{
		ExternalID:  payment.ExternalID,
		Amount:      amount,
		PayerEmail:  payerEmail,
		Description: description,
		Currency:    order.Currency,
	})
	if err != nil {
		return nil, err
	}
	payment.ProviderInvoiceID = invoice.ID
	payment.InvoiceURL = invoice.InvoiceURL
	payment.ExpiresAt = invoice.ExpiresAt

	if err := s.payments.Create(ctx, payment); err != nil {
		s.logger.Error("Failed to store invoice payment, expiring invoice",
			zap.String("invoice_id", invoice.ID), zap.Error(err))
		if _, expErr := s.gateway.ExpireInvoice(ctx, invoice.ID); expErr != nil {
			s.logger.Error("Failed to expire orphaned invoice", zap.String("invoice_id", invoice.ID), zap.Error(expErr))
		}
		return nil, err
	}
	metrics.RecordPayment(payment.Method, payment.Status)
	return payment, nil
}

// HandleXenditWebhook applies an invoice callback. Repeated callbacks for the same
// invoice status are acknowledged without effect.
func (s *PaymentService) HandleXenditWebhook(ctx context.Context, callbackToken string, body []byte) (err error) {
	outcome := "applied"
	defer func() {
		if err != nil && outcome == "applied" {
			outcome = "error"
		}
		metrics.RecordWebhook(webhookProvider, outcome)
	}()

	if s.gateway == nil || !s.gateway.VerifyCallbackToken(callbackToken) {
		outcome = "rejected"
		return appErrors.NewUnauthorizedError("invalid callback token")
	}
	invoice, err := xendit.ParseInvoice(body)
	if err != nil {
		outcome = "rejected"
		return appErrors.NewValidationError("body", "malformed invoice callback")
	}

	key := fmt.Sprintf("xendit:invoice:%s:%s", invoice.ExternalID, invoice.Status)
	claimed, err := s.idempotency.Claim(ctx, key)
	if err != nil {
		return err
	}
	if !claimed {
		outcome = "duplicate"
		s.logger.Info("Duplicate Xendit callback ignored", zap.String("external_id", invoice.ExternalID), zap.String("status", invoice.Status))
		return nil
	}

	changed, err := s.applyInvoice(ctx, invoice)
	if err != nil {
		if relErr := s.idempotency.Release(ctx, key); relErr != nil {
			s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
		}
		return err
	}
	if !changed {
		outcome = "ignored"
	}
	return nil
}

// applyInvoice moves a pending invoice payment to paid or expired. It reports whether anything changed.
// Unknown external ids and payments no longer pending are left alone.
func (s *PaymentService) applyInvoice(ctx context.Context, invoice *xendit.Invoice) (bool, error) {
	var changed bool
	var payment *models.Payment
	err := s.txManager.WithRetry(ctx, deadlockRetryAttempts, func(txCtx context.Context) error {
		changed = false
		var err error
		payment, err = s.payments.GetByExternalIDForUpdate(txCtx, invoice.ExternalID)
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Invoice callback for unknown payment", zap.String("external_id", invoice.ExternalID))
			return nil
		}
		if err != nil {
			return err
		}
		if payment.Status != constants.PaymentPending {
			return nil
		}

		now := s.now().UTC()
		switch {
		case invoice.IsPaid():
			order, err := s.eventOrders.GetForUpdate(txCtx, domain.CompanyScope(payment.CompanyID), payment.EventOrderID)
			if err != nil {
				return err
			}
			paidAt := now
			if invoice.PaidAt != nil {
				paidAt = *invoice.PaidAt
			}
			payment.Status = constants.PaymentPaid
			payment.PaidAt = &paidAt
			payment.UpdatedAt = now
			if err := s.payments.UpdateStatus(txCtx, payment); err != nil {
				return err
			}
			changed = true
			if order.Status == constants.EventOrderStatusCancelled {
				// the money arrived; the order totals of a cancelled order stay as they were
				s.logger.Warn("Invoice paid for a cancelled event order",
					zap.String("payment_id", payment.ID),
					zap.String("event_order_id", order.ID),
					zap.Float64("amount", payment.Amount))
			} else if err := recalcPayments(txCtx, s.eventOrders, s.payments, order); err != nil {
				return err
			}
			return s.outbox.Enqueue(txCtx, events.PaymentPaid, paymentEventPayload(payment, constants.SystemUserID))
		case invoice.Status == xendit.StatusExpired:
			payment.Status = constants.PaymentExpired
			payment.UpdatedAt = now
			if err := s.payments.UpdateStatus(txCtx, payment); err != nil {
				return err
			}
			changed = true
			return s.outbox.Enqueue(txCtx, events.PaymentExpired, paymentEventPayload(payment, constants.SystemUserID))
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		metrics.RecordPayment(payment.Method, payment.Status)
		s.logger.Info("Invoice payment updated",
			zap.String("payment_id", payment.ID),
			zap.String("status", payment.Status))
	}
	return changed, nil
}

// VoidPayment cancels a payment. A pending invoice is expired at Xendit; a paid manual
// payment is voided and the order totals are reduced.
func (s *PaymentService) VoidPayment(ctx context.Context, user *auth.UserSession, id string) (*models.Payment, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourcePayments, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	payment, err := s.payments.Get(ctx, scope, id)
	if err != nil {
		return nil, notFoundOr(err, "payment", id)
	}

	switch {
	case payment.Method == constants.PaymentMethodXenditInvoice && payment.Status == constants.PaymentPending:
		if s.gateway == nil || !s.gateway.Enabled() {
			return nil, appErrors.NewExternalServiceError(webhookProvider, http.StatusServiceUnavailable, "payment gateway is not configured")
		}
		invoice, err := s.gateway.ExpireInvoice(ctx, payment.ProviderInvoiceID)
		if err != nil {
			return nil, err
		}
		invoice.ExternalID = payment.ExternalID
		if invoice.Status != xendit.StatusExpired && !invoice.IsPaid() {
			invoice.Status = xendit.StatusExpired
		}
		if _, err := s.applyInvoice(ctx, invoice); err != nil {
			return nil, err
		}
		return s.reload(ctx, scope, id)

	case constants.IsManualPaymentMethod(payment.Method) && payment.Status == constants.PaymentPaid:
		err = s.txManager.WithRetry(ctx, deadlockRetryAttempts, func(txCtx context.Context) error {
			p, err := s.payments.GetForUpdate(txCtx, scope, id)
			if err != nil {
				return notFoundOr(err, "payment", id)
			}
			if p.Status != constants.PaymentPaid {
				return appErrors.NewInvalidStateError("payment", p.Status, "void")
			}
			order, err := s.eventOrders.GetForUpdate(txCtx, domain.CompanyScope(p.CompanyID), p.EventOrderID)
			if err != nil {
				return err
			}
			p.Status = constants.PaymentVoid
			p.UpdatedAt = s.now().UTC()
			if err := s.payments.UpdateStatus(txCtx, p); err != nil {
				return err
			}
			if err := recalcPayments(txCtx, s.eventOrders, s.payments, order); err != nil {
				return err
			}
			payment = p
			return s.outbox.Enqueue(txCtx, events.PaymentVoided, paymentEventPayload(p, user.ID))
		})
		if err != nil {
			return nil, err
		}
		metrics.RecordPayment(payment.Method, payment.Status)
		return payment, nil
	}
	return nil, appErrors.NewInvalidStateError("payment", payment.Status, "void")
}

func (s *PaymentService) reload(ctx context.Context, scope domain.Scope, id string) (*models.Payment, error) {
	p, err := s.payments.Get(ctx, scope, id)
	if err != nil {
		return nil, notFoundOr(err, "payment", id)
	}
	return p, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, user *auth.UserSession, id string) (*models.Payment, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourcePayments, constants.PermRead)
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, scope, id)
}

func (s *PaymentService) ListPayments(ctx context.Context, user *auth.UserSession, filter models.PaymentFilter) ([]*models.Payment, int, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourcePayments, constants.PermRead)
	if err != nil {
		return nil, 0, err
	}
	return s.payments.List(ctx, scope, filter)
}

// SyncPendingInvoice pulls the invoice from Xendit and applies its status.
func (s *PaymentService) SyncPendingInvoice(ctx context.Context, user *auth.UserSession, id string) (*models.Payment, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourcePayments, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	payment, err := s.reload(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if payment.Method != constants.PaymentMethodXenditInvoice || payment.Status != constants.PaymentPending {
		return payment, nil
	}
	if err := s.syncInvoice(ctx, payment); err != nil {
		return nil, err
	}
	return s.reload(ctx, scope, id)
}

func (s *PaymentService) syncInvoice(ctx context.Context, payment *models.Payment) error {
	if s.gateway == nil || !s.gateway.Enabled() {
		return appErrors.NewExternalServiceError(webhookProvider, http.StatusServiceUnavailable, "payment gateway is not configured")
	}
	invoice, err := s.gateway.GetInvoice(ctx, payment.ProviderInvoiceID)
	if err != nil {
		return err
	}
	if invoice.ExternalID == "" {
		invoice.ExternalID = payment.ExternalID
	}
	_, err = s.applyInvoice(ctx, invoice)
	return err
}

// ReconcilePending syncs invoices still pending after the callback window, across tenants.
// It returns how many were checked.
func (s *PaymentService) ReconcilePending(ctx context.Context) (int, error) {
	if s.gateway == nil || !s.gateway.Enabled() {
		return 0, nil
	}
	pending, err := s.payments.ListPendingInvoices(ctx, s.now().UTC().Add(-reconcileMinimumAge), reconcileBatchSize)
	if err != nil {
		return 0, err
	}
	checked := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return checked, ctx.Err()
		}
		if err := s.syncInvoice(ctx, p); err != nil {
			s.logger.Warn("Failed to reconcile invoice", zap.String("payment_id", p.ID), zap.Error(err))
			continue
		}
		checked++
	}
	return checked, nil
}

func paymentEventPayload(p *models.Payment, actorID string) events.Payload {
	return eventPayload(p.CompanyID, p.ID, actorID, map[string]interface{}{
		"event_order_id": p.EventOrderID,
		"amount":         p.Amount,
		"method":         p.Method,
		"status":         p.Status,
	})
}
