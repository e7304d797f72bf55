package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

type EventOrderHandler struct {
	svcMgr *services.ServiceManager
}

func NewEventOrderHandler(svcMgr *services.ServiceManager) *EventOrderHandler {
	return &EventOrderHandler{svcMgr: svcMgr}
}

// ListEventOrders handles GET /api/event-orders?status=&customer_id=&from=&to=
func (h *EventOrderHandler) ListEventOrders(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	from, err := dateParam(c, "from")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	to, err := dateParam(c, "to")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	limit, offset := pageParams(c)
	filter := models.EventOrderFilter{
		Status:     c.Query("status"),
		CustomerID: c.Query("customer_id"),
		From:       from,
		To:         to,
		Limit:      limit,
		Offset:     offset,
	}
	HandleListEnvelope(c, func() (interface{}, int, error) {
		return h.svcMgr.EventOrders.ListEventOrders(c.Request.Context(), user, filter)
	})
}

// GetEventOrder handles GET /api/event-orders/:id
func (h *EventOrderHandler) GetEventOrder(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "event_order", func() (interface{}, error) {
		return h.svcMgr.EventOrders.GetEventOrder(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// GetBalance handles GET /api/event-orders/:id/balance
func (h *EventOrderHandler) GetBalance(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "balance", func() (interface{}, error) {
		return h.svcMgr.EventOrders.Balance(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// CreateEventOrder handles POST /api/event-orders
func (h *EventOrderHandler) CreateEventOrder(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.EventOrderInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusCreated, "event_order", "Event order created successfully", func() (interface{}, error) {
		return h.svcMgr.EventOrders.CreateEventOrder(c.Request.Context(), user, input)
	})
}

// UpdateEventOrder handles PATCH /api/event-orders/:id
func (h *EventOrderHandler) UpdateEventOrder(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.EventOrderInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "event_order", "Event order updated successfully", func() (interface{}, error) {
		return h.svcMgr.EventOrders.UpdateEventOrder(c.Request.Context(), user, c.Param(constants.FieldID), input)
	})
}

// Start handles POST /api/event-orders/:id/start
func (h *EventOrderHandler) Start(c *gin.Context) {
	h.changeStatus(c, domain.ActionStart, "Event order started")
}

// Complete handles POST /api/event-orders/:id/complete
func (h *EventOrderHandler) Complete(c *gin.Context) {
	h.changeStatus(c, domain.ActionComplete, "Event order completed")
}

// Cancel handles POST /api/event-orders/:id/cancel
func (h *EventOrderHandler) Cancel(c *gin.Context) {
	h.changeStatus(c, domain.ActionCancel, "Event order cancelled")
}

func (h *EventOrderHandler) changeStatus(c *gin.Context, action domain.Action, msg string) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "event_order", msg, func() (interface{}, error) {
		return h.svcMgr.EventOrders.ChangeStatus(c.Request.Context(), user, c.Param(constants.FieldID), action)
	})
}
