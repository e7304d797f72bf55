package rest

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	svcMgr *services.ServiceManager
}

func NewPaymentHandler(svcMgr *services.ServiceManager) *PaymentHandler {
	return &PaymentHandler{svcMgr: svcMgr}
}

// ListPayments handles GET /api/payments?event_order_id=&status=&method=
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	limit, offset := pageParams(c)
	filter := models.PaymentFilter{
		EventOrderID: c.Query("event_order_id"),
		Status:       c.Query("status"),
		Method:       c.Query("method"),
		Limit:        limit,
		Offset:       offset,
	}
	HandleListEnvelope(c, func() (interface{}, int, error) {
		return h.svcMgr.Payments.ListPayments(c.Request.Context(), user, filter)
	})
}

// GetPayment handles GET /api/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "payment", func() (interface{}, error) {
		return h.svcMgr.Payments.GetPayment(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// RecordManualPayment handles POST /api/payments
func (h *PaymentHandler) RecordManualPayment(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.ManualPaymentInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusCreated, "payment", "Payment recorded successfully", func() (interface{}, error) {
		return h.svcMgr.Payments.RecordManualPayment(c.Request.Context(), user, input)
	})
}

// CreateInvoice handles POST /api/payments/invoices
func (h *PaymentHandler) CreateInvoice(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.InvoiceInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusCreated, "payment", "Invoice created successfully", func() (interface{}, error) {
		return h.svcMgr.Payments.CreateXenditInvoice(c.Request.Context(), user, input)
	})
}

// VoidPayment handles POST /api/payments/:id/void
func (h *PaymentHandler) VoidPayment(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "payment", "Payment voided", func() (interface{}, error) {
		return h.svcMgr.Payments.VoidPayment(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// SyncInvoice handles POST /api/payments/:id/sync
func (h *PaymentHandler) SyncInvoice(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "payment", "Payment synchronised", func() (interface{}, error) {
		return h.svcMgr.Payments.SyncPendingInvoice(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// XenditWebhook handles POST /webhooks/xendit/invoice. It is unauthenticated; the
// callback token header is verified by the payment service.
func (h *PaymentHandler) XenditWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		RespondAppError(c, appErrors.NewValidationError("body", "unable to read request body"))
		return
	}
	if err := h.svcMgr.Payments.HandleXenditWebhook(c.Request.Context(), c.GetHeader(constants.HeaderXenditCallbackToken), body); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: "ok"})
}
