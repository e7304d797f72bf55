package rest

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

type IntegrationHandler struct {
	svcMgr      *services.ServiceManager
	frontendURL string
}

func NewIntegrationHandler(svcMgr *services.ServiceManager, frontendURL string) *IntegrationHandler {
	return &IntegrationHandler{svcMgr: svcMgr, frontendURL: frontendURL}
}

// GoogleConnect handles GET /api/integrations/google/connect and returns the consent URL.
func (h *IntegrationHandler) GoogleConnect(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "url", func() (interface{}, error) {
		return h.svcMgr.Integrations.GoogleAuthURL(c.Request.Context(), user)
	})
}

// GoogleStatus handles GET /api/integrations/google
func (h *IntegrationHandler) GoogleStatus(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "integration", func() (interface{}, error) {
		return h.svcMgr.Integrations.GoogleStatus(c.Request.Context(), user)
	})
}

// GoogleDisconnect handles DELETE /api/integrations/google
func (h *IntegrationHandler) GoogleDisconnect(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleDeleteEnvelope(c, "Google disconnected", func() error {
		return h.svcMgr.Integrations.DisconnectGoogle(c.Request.Context(), user)
	})
}

// GoogleCallback handles GET /oauth/google/callback. Google redirects the browser here,
// so the outcome is passed back to the frontend as query parameters when it is configured.
func (h *IntegrationHandler) GoogleCallback(c *gin.Context) {
	if denied := c.Query("error"); denied != "" {
		h.finishCallback(c, appErrors.NewUnauthorizedError("google consent denied: "+denied))
		return
	}
	_, err := h.svcMgr.Integrations.GoogleCallback(c.Request.Context(), c.Query("state"), c.Query("code"))
	h.finishCallback(c, err)
}

func (h *IntegrationHandler) finishCallback(c *gin.Context, err error) {
	if h.frontendURL == "" {
		if err != nil {
			RespondAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"connected": true})
		return
	}

	q := url.Values{}
	if err != nil {
		q.Set("google", "error")
		q.Set("code", appErrors.GetErrorCode(err))
		if appErrors.GetHTTPStatus(err) >= 500 {
			_ = c.Error(err)
		}
	} else {
		q.Set("google", "connected")
	}
	c.Redirect(http.StatusFound, h.frontendURL+"/settings/integrations?"+q.Encode())
}
