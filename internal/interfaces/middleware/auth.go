package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

// RequireAuth validates the bearer token and its session, then resolves the company the
// request acts in. The X-Company-ID header switches company for platform admins and for
// administrators of a parent company.
func RequireAuth(authSvc *services.AuthService, companies *services.CompanyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(constants.HeaderAuthorization)
		if header == "" {
			abortWithError(c, appErrors.NewUnauthorizedError("no authorization token provided"))
			return
		}
		token, ok := strings.CutPrefix(header, constants.BearerPrefix)
		if !ok || strings.TrimSpace(token) == "" {
			abortWithError(c, appErrors.NewUnauthorizedError("invalid authorization header format"))
			return
		}

		claims, err := authSvc.ValidateSession(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		acting, err := companies.ResolveActingCompany(c.Request.Context(), &claims.User, c.GetHeader(constants.HeaderCompanyID))
		if err != nil {
			abortWithError(c, err)
			return
		}

		authSvc.TouchSession(claims.ID)

		c.Set(constants.ContextKeyUser, *acting)
		c.Set(constants.ContextKeyToken, token)
		c.Set(constants.ContextKeySessionID, claims.ID)
		c.Next()
	}
}

// RequirePlatformAdmin rejects callers that are not platform administrators.
func RequirePlatformAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(constants.ContextKeyUser)
		if !exists {
			abortWithError(c, appErrors.NewUnauthorizedError("user not authenticated"))
			return
		}
		user, ok := value.(auth.UserSession)
		if !ok || !user.IsPlatformAdmin {
			abortWithError(c, appErrors.NewPermissionError("access", "platform administration"))
			return
		}
		c.Next()
	}
}
