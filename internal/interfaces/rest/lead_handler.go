package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

type LeadHandler struct {
	svcMgr *services.ServiceManager
}

func NewLeadHandler(svcMgr *services.ServiceManager) *LeadHandler {
	return &LeadHandler{svcMgr: svcMgr}
}

type AssignLeadRequest struct {
	OwnerID string `json:"owner_id" binding:"required"`
}

type LeadStatusRequest struct {
	Status     string `json:"status" binding:"required"`
	LostReason string `json:"lost_reason"`
}

// ListLeads handles GET /api/leads?status=&owner_id=&source=&search=
func (h *LeadHandler) ListLeads(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	limit, offset := pageParams(c)
	filter := models.LeadFilter{
		Status:  c.Query("status"),
		OwnerID: c.Query("owner_id"),
		Source:  c.Query("source"),
		Search:  c.Query(constants.ParamSearch),
		Limit:   limit,
		Offset:  offset,
	}
	HandleListEnvelope(c, func() (interface{}, int, error) {
		return h.svcMgr.Leads.ListLeads(c.Request.Context(), user, filter)
	})
}

// GetLead handles GET /api/leads/:id
func (h *LeadHandler) GetLead(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "lead", func() (interface{}, error) {
		return h.svcMgr.Leads.GetLead(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// CreateLead handles POST /api/leads
func (h *LeadHandler) CreateLead(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.LeadInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusCreated, "lead", "Lead created successfully", func() (interface{}, error) {
		return h.svcMgr.Leads.CreateLead(c.Request.Context(), user, input)
	})
}

// UpdateLead handles PATCH /api/leads/:id
func (h *LeadHandler) UpdateLead(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.LeadInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "lead", "Lead updated successfully", func() (interface{}, error) {
		return h.svcMgr.Leads.UpdateLead(c.Request.Context(), user, c.Param(constants.FieldID), input)
	})
}

// DeleteLead handles DELETE /api/leads/:id
func (h *LeadHandler) DeleteLead(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleDeleteEnvelope(c, "Lead deleted successfully", func() error {
		return h.svcMgr.Leads.DeleteLead(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// AssignLead handles POST /api/leads/:id/assign
func (h *LeadHandler) AssignLead(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req AssignLeadRequest
	if !BindJSON(c, &req) {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "lead", "Lead assigned successfully", func() (interface{}, error) {
		return h.svcMgr.Leads.AssignLead(c.Request.Context(), user, c.Param(constants.FieldID), req.OwnerID)
	})
}

// ChangeStatus handles POST /api/leads/:id/status
func (h *LeadHandler) ChangeStatus(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req LeadStatusRequest
	if !BindJSON(c, &req) {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "lead", "Lead status updated", func() (interface{}, error) {
		return h.svcMgr.Leads.ChangeStatus(c.Request.Context(), user, c.Param(constants.FieldID), req.Status, req.LostReason)
	})
}

// ConvertLead handles POST /api/leads/:id/convert
func (h *LeadHandler) ConvertLead(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	result, err := h.svcMgr.Leads.ConvertLead(c.Request.Context(), user, c.Param(constants.FieldID))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		constants.FieldMessage: "Lead converted successfully",
		"lead":                 result.Lead,
		"customer":             result.Customer,
	})
}

// ListActivities handles GET /api/leads/:id/activities
func (h *LeadHandler) ListActivities(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svcMgr.Leads.ListActivities(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}

// AddActivity handles POST /api/leads/:id/activities
func (h *LeadHandler) AddActivity(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.LeadActivity
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusCreated, "activity", "Activity recorded", func() (interface{}, error) {
		return h.svcMgr.Leads.AddActivity(c.Request.Context(), user, c.Param(constants.FieldID), input)
	})
}

// ListScoringRules handles GET /api/lead-scoring-rules
func (h *LeadHandler) ListScoringRules(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svcMgr.Scoring.ListRules(c.Request.Context(), user)
	})
}

// CreateScoringRule handles POST /api/lead-scoring-rules
func (h *LeadHandler) CreateScoringRule(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.LeadScoringRule
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusCreated, "rule", "Scoring rule created successfully", func() (interface{}, error) {
		return h.svcMgr.Scoring.CreateRule(c.Request.Context(), user, input)
	})
}

// UpdateScoringRule handles PUT /api/lead-scoring-rules/:id
func (h *LeadHandler) UpdateScoringRule(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.LeadScoringRule
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "rule", "Scoring rule updated successfully", func() (interface{}, error) {
		return h.svcMgr.Scoring.UpdateRule(c.Request.Context(), user, c.Param(constants.FieldID), input)
	})
}

// DeleteScoringRule handles DELETE /api/lead-scoring-rules/:id
func (h *LeadHandler) DeleteScoringRule(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleDeleteEnvelope(c, "Scoring rule deleted successfully", func() error {
		return h.svcMgr.Scoring.DeleteRule(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}
