package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

type QuotationHandler struct {
	svcMgr *services.ServiceManager
}

func NewQuotationHandler(svcMgr *services.ServiceManager) *QuotationHandler {
	return &QuotationHandler{svcMgr: svcMgr}
}

type quotationAction func(ctx context.Context, user *auth.UserSession, id string) (*models.Quotation, error)

// ListQuotations handles GET /api/quotations?status=&customer_id=&owner_id=
func (h *QuotationHandler) ListQuotations(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	limit, offset := pageParams(c)
	filter := models.QuotationFilter{
		Status:     c.Query("status"),
		CustomerID: c.Query("customer_id"),
		OwnerID:    c.Query("owner_id"),
		Limit:      limit,
		Offset:     offset,
	}
	HandleListEnvelope(c, func() (interface{}, int, error) {
		return h.svcMgr.Quotations.ListQuotations(c.Request.Context(), user, filter)
	})
}

// GetQuotation handles GET /api/quotations/:id
func (h *QuotationHandler) GetQuotation(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "quotation", func() (interface{}, error) {
		return h.svcMgr.Quotations.GetQuotation(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// CreateQuotation handles POST /api/quotations
func (h *QuotationHandler) CreateQuotation(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.QuotationInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusCreated, "quotation", "Quotation created successfully", func() (interface{}, error) {
		return h.svcMgr.Quotations.CreateQuotation(c.Request.Context(), user, input)
	})
}

// UpdateQuotation handles PUT /api/quotations/:id. Only drafts can be edited.
func (h *QuotationHandler) UpdateQuotation(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.QuotationInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "quotation", "Quotation updated successfully", func() (interface{}, error) {
		return h.svcMgr.Quotations.UpdateQuotation(c.Request.Context(), user, c.Param(constants.FieldID), input)
	})
}

// DeleteQuotation handles DELETE /api/quotations/:id
func (h *QuotationHandler) DeleteQuotation(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleDeleteEnvelope(c, "Quotation deleted successfully", func() error {
		return h.svcMgr.Quotations.DeleteQuotation(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// Send handles POST /api/quotations/:id/send
func (h *QuotationHandler) Send(c *gin.Context) {
	h.transition(c, http.StatusOK, "Quotation sent", h.svcMgr.Quotations.Send)
}

// Accept handles POST /api/quotations/:id/accept
func (h *QuotationHandler) Accept(c *gin.Context) {
	h.transition(c, http.StatusOK, "Quotation accepted", h.svcMgr.Quotations.Accept)
}

// Reject handles POST /api/quotations/:id/reject
func (h *QuotationHandler) Reject(c *gin.Context) {
	h.transition(c, http.StatusOK, "Quotation rejected", h.svcMgr.Quotations.Reject)
}

// Revise handles POST /api/quotations/:id/revise and returns the new revision.
func (h *QuotationHandler) Revise(c *gin.Context) {
	h.transition(c, http.StatusCreated, "Quotation revised", h.svcMgr.Quotations.Revise)
}

// Duplicate handles POST /api/quotations/:id/duplicate
func (h *QuotationHandler) Duplicate(c *gin.Context) {
	h.transition(c, http.StatusCreated, "Quotation duplicated", h.svcMgr.Quotations.Duplicate)
}

func (h *QuotationHandler) transition(c *gin.Context, status int, msg string, action quotationAction) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleWriteEnvelope(c, status, "quotation", msg, func() (interface{}, error) {
		return action(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// ConvertToEventOrder handles POST /api/quotations/:id/convert
func (h *QuotationHandler) ConvertToEventOrder(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.EventOrderInput
	if !bindOptionalJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusCreated, "event_order", "Event order created from quotation", func() (interface{}, error) {
		return h.svcMgr.Quotations.ConvertToEventOrder(c.Request.Context(), user, c.Param(constants.FieldID), input)
	})
}
