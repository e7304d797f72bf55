package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

type CompanyHandler struct {
	svcMgr *services.ServiceManager
}

func NewCompanyHandler(svcMgr *services.ServiceManager) *CompanyHandler {
	return &CompanyHandler{svcMgr: svcMgr}
}

// GetCompany handles GET /api/companies/current
func (h *CompanyHandler) GetCompany(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "company", func() (interface{}, error) {
		return h.svcMgr.Companies.GetCompany(c.Request.Context(), user)
	})
}

// UpdateCompany handles PATCH /api/companies/current
func (h *CompanyHandler) UpdateCompany(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.UpdateCompanyInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusOK, "company", "Company updated successfully", func() (interface{}, error) {
		return h.svcMgr.Companies.UpdateCompany(c.Request.Context(), user, input)
	})
}

// ListBusinessUnits handles GET /api/companies/units
func (h *CompanyHandler) ListBusinessUnits(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svcMgr.Companies.ListBusinessUnits(c.Request.Context(), user)
	})
}

// CreateBusinessUnit handles POST /api/companies/units
func (h *CompanyHandler) CreateBusinessUnit(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.CreateCompanyInput
	if !BindJSON(c, &input) {
		return
	}
	HandleWriteEnvelope(c, http.StatusCreated, "company", "Business unit created successfully", func() (interface{}, error) {
		return h.svcMgr.Companies.CreateBusinessUnit(c.Request.Context(), user, input)
	})
}

// ListCompanies handles GET /api/companies
func (h *CompanyHandler) ListCompanies(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	limit, offset := pageParams(c)
	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svcMgr.Companies.ListCompanies(c.Request.Context(), user, limit, offset)
	})
}

// CreateCompany handles POST /api/companies. The owner account is created with it.
func (h *CompanyHandler) CreateCompany(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var input models.CreateCompanyInput
	if !BindJSON(c, &input) {
		return
	}
	company, owner, err := h.svcMgr.Companies.CreateCompany(c.Request.Context(), user, input)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		constants.FieldMessage: "Company created successfully",
		"company":              company,
		"owner":                owner,
	})
}

// ActivateCompany handles POST /api/companies/:id/activate
func (h *CompanyHandler) ActivateCompany(c *gin.Context) {
	h.setActive(c, true, "Company activated successfully")
}

// DeactivateCompany handles POST /api/companies/:id/deactivate
func (h *CompanyHandler) DeactivateCompany(c *gin.Context) {
	h.setActive(c, false, "Company deactivated successfully")
}

func (h *CompanyHandler) setActive(c *gin.Context, active bool, msg string) {
	user := requireUser(c)
	if user == nil {
		return
	}
	HandleDeleteEnvelope(c, msg, func() error {
		if active {
			return h.svcMgr.Companies.SetCompanyActive(c.Request.Context(), user, c.Param(constants.FieldID), true)
		}
		return h.svcMgr.Companies.DeactivateCompany(c.Request.Context(), user, c.Param(constants.FieldID))
	})
}
