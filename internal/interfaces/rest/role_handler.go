package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

type RoleHandler struct {
	svcMgr *services.ServiceManager
}

func NewRoleHandler(svcMgr *services.ServiceManager) *RoleHandler {
	return &RoleHandler{svcMgr: svcMgr}
}

// ListRoles handles GET /api/roles
func (h *RoleHandler) ListRoles(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svcMgr.Access.ListRoles(c.Request.Context(), user)
	})
}

// GetRole handles GET /api/roles/:id
func (h *RoleHandler) GetRole(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "role", func() (interface{}, error) {
		return h.svcMgr.Access.GetRole(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// CreateRole handles POST /api/roles
func (h *RoleHandler) CreateRole(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.RoleInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusCreated, "role", "Role created successfully", func() (interface{}, error) {
		return h.svcMgr.Access.CreateRole(c.Request.Context(), user, input)
	})
}

// UpdateRole handles PUT /api/roles/:id
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.RoleInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "role", "Role updated successfully", func() (interface{}, error) {
		return h.svcMgr.Access.UpdateRole(c.Request.Context(), user, c.Param(constants.FieldID), input)
	})
}

// DeleteRole handles DELETE /api/roles/:id
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleDeleteEnvelope(c, "Role deleted successfully", func() error {
		return h.svcMgr.Access.DeleteRole(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// MyPermissions handles GET /api/auth/permissions
func (h *RoleHandler) MyPermissions(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "permissions", func() (interface{}, error) {
		return h.svcMgr.Access.EffectivePermissions(c.Request.Context(), user)
	})
}
