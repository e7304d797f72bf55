package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

type CustomerHandler struct {
	svcMgr *services.ServiceManager
}

func NewCustomerHandler(svcMgr *services.ServiceManager) *CustomerHandler {
	return &CustomerHandler{svcMgr: svcMgr}
}

// ListCustomers handles GET /api/customers?search=&owner_id=
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	limit, offset := pageParams(c)
	filter := models.CustomerFilter{
		Search:  c.Query(constants.ParamSearch),
		OwnerID: c.Query("owner_id"),
		Limit:   limit,
		Offset:  offset,
	}
	HandleListEnvelope(c, func() (interface{}, int, error) {
		return h.svcMgr.Customers.ListCustomers(c.Request.Context(), user, filter)
	})
}

// GetCustomer handles GET /api/customers/:id
func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "customer", func() (interface{}, error) {
		return h.svcMgr.Customers.GetCustomer(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// GetSummary handles GET /api/customers/:id/summary
func (h *CustomerHandler) GetSummary(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "summary", func() (interface{}, error) {
		return h.svcMgr.Customers.CustomerSummary(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// CreateCustomer handles POST /api/customers
func (h *CustomerHandler) CreateCustomer(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.CustomerInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusCreated, "customer", "Customer created successfully", func() (interface{}, error) {
		return h.svcMgr.Customers.CreateCustomer(c.Request.Context(), user, input)
	})
}

// UpdateCustomer handles PATCH /api/customers/:id
func (h *CustomerHandler) UpdateCustomer(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.CustomerInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "customer", "Customer updated successfully", func() (interface{}, error) {
		return h.svcMgr.Customers.UpdateCustomer(c.Request.Context(), user, c.Param(constants.FieldID), input)
	})
}

// DeleteCustomer handles DELETE /api/customers/:id
func (h *CustomerHandler) DeleteCustomer(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleDeleteEnvelope(c, "Customer deleted successfully", func() error {
		return h.svcMgr.Customers.DeleteCustomer(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}
