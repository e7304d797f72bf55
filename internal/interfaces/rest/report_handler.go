package rest

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

type ReportHandler struct {
	svcMgr *services.ServiceManager
}

func NewReportHandler(svcMgr *services.ServiceManager) *ReportHandler {
	return &ReportHandler{svcMgr: svcMgr}
}

type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// Dashboard handles GET /api/reports/dashboard?from=&to=
func (h *ReportHandler) Dashboard(c *gin.Context) {
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
	HandleGetEnvelope(c, "dashboard", func() (interface{}, error) {
		return h.svcMgr.Reports.Dashboard(c.Request.Context(), user, from, to)
	})
}

// RunQuery handles POST /api/reports/query. Only read-only SELECTs are accepted.
func (h *ReportHandler) RunQuery(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req QueryRequest
	if !BindJSON(c, &req) {
		return
	}
	HandleGetEnvelope(c, "result", func() (interface{}, error) {
		return h.svcMgr.Reports.RunQuery(c.Request.Context(), user, req.Query)
	})
}

// Export handles GET /api/reports/export/:kind and streams an xlsx workbook.
func (h *ReportHandler) Export(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	file, err := h.svcMgr.Exports.Export(c.Request.Context(), user, c.Param("kind"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, constants.ContentTypeXLSX, file.Content)
}
