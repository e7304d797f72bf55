package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

type TemplateHandler struct {
	svcMgr *services.ServiceManager
}

func NewTemplateHandler(svcMgr *services.ServiceManager) *TemplateHandler {
	return &TemplateHandler{svcMgr: svcMgr}
}

// ListTemplates handles GET /api/templates?kind=
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svcMgr.Templates.ListTemplates(c.Request.Context(), user, c.Query("kind"))
	})
}

// GetTemplate handles GET /api/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "template", func() (interface{}, error) {
		return h.svcMgr.Templates.GetTemplate(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// CreateTemplate handles POST /api/templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.TemplateInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusCreated, "template", "Template created successfully", func() (interface{}, error) {
		return h.svcMgr.Templates.CreateTemplate(c.Request.Context(), user, input)
	})
}

// UpdateTemplate handles PUT /api/templates/:id
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.TemplateInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "template", "Template updated successfully", func() (interface{}, error) {
		return h.svcMgr.Templates.UpdateTemplate(c.Request.Context(), user, c.Param(constants.FieldID), input)
	})
}

// DeleteTemplate handles DELETE /api/templates/:id
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleDeleteEnvelope(c, "Template deleted successfully", func() error {
		return h.svcMgr.Templates.DeleteTemplate(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// RenderTemplate handles POST /api/templates/:id/render
func (h *TemplateHandler) RenderTemplate(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req services.RenderRequest
	if !BindJSON(c, &req) {
		return
	}
	HandleGetEnvelope(c, "rendered", func() (interface{}, error) {
		return h.svcMgr.Templates.Render(c.Request.Context(), user, c.Param(constants.FieldID), req)
	})
}
