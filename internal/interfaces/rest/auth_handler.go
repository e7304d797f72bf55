package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

type AuthHandler struct {
	svcMgr *services.ServiceManager
}

func NewAuthHandler(svcMgr *services.ServiceManager) *AuthHandler {
	return &AuthHandler{
		svcMgr: svcMgr,
	}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !BindJSON(c, &req) {
		return
	}
	if !auth.IsValidEmail(req.Email) {
		RespondAppError(c, appErrors.NewValidationError("email", "invalid email format"))
		return
	}

	result, err := h.svcMgr.Auth.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	HandleDeleteEnvelope(c, "Logged out successfully", func() error {
		return h.svcMgr.Auth.Logout(c.Request.Context(), c.GetString(constants.ContextKeyToken))
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	profile, perms, err := h.svcMgr.Auth.Me(c.Request.Context(), user)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":        profile,
		"company_id":  user.CompanyID,
		"permissions": perms,
	})
}

// ChangePassword handles POST /api/auth/change-password. Other sessions of the user are revoked.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req ChangePasswordRequest
	if !BindJSON(c, &req) {
		return
	}
	HandleDeleteEnvelope(c, "Password changed successfully", func() error {
		return h.svcMgr.Auth.ChangePassword(c.Request.Context(), user, c.GetString(constants.ContextKeySessionID),
			req.CurrentPassword, req.NewPassword)
	})
}
