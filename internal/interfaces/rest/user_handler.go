package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

type UserHandler struct {
	svcMgr *services.ServiceManager
}

func NewUserHandler(svcMgr *services.ServiceManager) *UserHandler {
	return &UserHandler{svcMgr: svcMgr}
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// ListUsers handles GET /api/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	limit, offset := pageParams(c)
	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svcMgr.Users.ListUsers(c.Request.Context(), user, limit, offset)
	})
}

// GetUser handles GET /api/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "user", func() (interface{}, error) {
		return h.svcMgr.Users.GetUser(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// InviteUser handles POST /api/users
func (h *UserHandler) InviteUser(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.InviteUserInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusCreated, "user", "User created successfully", func() (interface{}, error) {
		return h.svcMgr.Users.InviteUser(c.Request.Context(), user, input)
	})
}

// UpdateUser handles PATCH /api/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.UpdateUserInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "user", "User updated successfully", func() (interface{}, error) {
		return h.svcMgr.Users.UpdateUser(c.Request.Context(), user, c.Param(constants.FieldID), input)
	})
}

// DeleteUser handles DELETE /api/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleDeleteEnvelope(c, "User deleted successfully", func() error {
		return h.svcMgr.Users.DeleteUser(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// ResetPassword handles POST /api/users/:id/reset-password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req ResetPasswordRequest
	if !BindJSON(c, &req) {
		return
	}
	HandleDeleteEnvelope(c, "Password reset successfully", func() error {
		return h.svcMgr.Users.ResetPassword(c.Request.Context(), user, c.Param(constants.FieldID), req.Password)
	})
}
