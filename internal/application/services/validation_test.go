package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

func strPtr(s string) *string { return &s }

func TestApplyLeadInputNormalizes(t *testing.T) {
	budget := 1500000.5
	l := &models.Lead{Source: constants.LeadSourceOther}
	applyLeadInput(l, models.LeadInput{
		Name:   strPtr("  Rina Wedding "),
		Email:  strPtr(" Rina@Example.COM "),
		Source: strPtr(constants.LeadSourceReferral),
		Budget: &budget,
	})

	assert.Equal(t, "Rina Wedding", l.Name)
	assert.Equal(t, "rina@example.com", l.Email)
	assert.Equal(t, constants.LeadSourceReferral, l.Source)
	assert.Equal(t, 1500000.5, l.Budget)

	// nil fields are left alone
	applyLeadInput(l, models.LeadInput{Phone: strPtr("0812")})
	assert.Equal(t, "Rina Wedding", l.Name)
	assert.Equal(t, "0812", l.Phone)
}

func TestValidateLead(t *testing.T) {
	valid := func() *models.Lead {
		return &models.Lead{Name: "Rina", Email: "rina@example.com", Source: constants.LeadSourceWebsite}
	}

	tests := []struct {
		name   string
		mutate func(l *models.Lead)
		field  string
	}{
		{"valid", func(l *models.Lead) {}, ""},
		{"phone only", func(l *models.Lead) { l.Email = ""; l.Phone = "0812" }, ""},
		{"missing name", func(l *models.Lead) { l.Name = "" }, "name"},
		{"no contact", func(l *models.Lead) { l.Email = "" }, "email"},
		{"bad email", func(l *models.Lead) { l.Email = "not-an-email" }, "email"},
		{"unknown source", func(l *models.Lead) { l.Source = "billboard" }, "source"},
		{"negative pax", func(l *models.Lead) { l.EstimatedPax = -1 }, "estimated_pax"},
		{"negative budget", func(l *models.Lead) { l.Budget = -10 }, "budget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid()
			tt.mutate(l)
			err := validateLead(l)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *appErrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestValidateCustomer(t *testing.T) {
	c := &models.Customer{}
	applyCustomerInput(c, models.CustomerInput{Name: strPtr(" PT Sinar "), Email: strPtr(" Billing@Sinar.co.id")})
	assert.Equal(t, "PT Sinar", c.Name)
	assert.Equal(t, "billing@sinar.co.id", c.Email)
	assert.NoError(t, validateCustomer(c))

	assert.True(t, appErrors.IsValidation(validateCustomer(&models.Customer{})))
	assert.True(t, appErrors.IsValidation(validateCustomer(&models.Customer{Name: "x", Email: "nope"})))
}

func TestValidateTemplate(t *testing.T) {
	tpl := &models.Template{}
	applyTemplateInput(tpl, models.TemplateInput{Kind: " quotation ", Name: " Wedding package "})
	require.NotNil(t, tpl.DefaultItems)
	assert.Equal(t, constants.TemplateKindQuotation, tpl.Kind)
	assert.NoError(t, validateTemplate(tpl))

	email := &models.Template{Kind: constants.TemplateKindEmail, Name: "Follow up",
		DefaultItems: []models.LineItemInput{{Description: "x", Quantity: 1}}}
	assert.True(t, appErrors.IsValidation(validateTemplate(email)))

	assert.True(t, appErrors.IsValidation(validateTemplate(&models.Template{Kind: "sms", Name: "x"})))

	badItems := &models.Template{Kind: constants.TemplateKindQuotation, Name: "x",
		DefaultItems: []models.LineItemInput{{Description: "Hall", Quantity: 0}}}
	assert.True(t, appErrors.IsValidation(validateTemplate(badItems)))
}

func TestNewCompanyDefaults(t *testing.T) {
	c, err := newCompany(models.CreateCompanyInput{Name: "Nusa Events & Co"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "nusa-events-co", c.Slug)
	assert.Equal(t, constants.DefaultCurrency, c.Currency)
	assert.Equal(t, constants.DefaultTimezone, c.Timezone)
	assert.Equal(t, constants.DefaultQuotationValidityDays, c.QuotationValidityDays)
	assert.True(t, c.IsActive)
	assert.Nil(t, c.ParentID)

	parent := "parent-1"
	unit, err := newCompany(models.CreateCompanyInput{Name: "Bali Unit", Currency: "usd"}, &parent)
	require.NoError(t, err)
	assert.Equal(t, "USD", unit.Currency)
	assert.Equal(t, &parent, unit.ParentID)
}

func TestNewCompanyRejects(t *testing.T) {
	tests := []struct {
		name  string
		input models.CreateCompanyInput
		field string
	}{
		{"missing name", models.CreateCompanyInput{Name: " "}, "name"},
		{"bad slug", models.CreateCompanyInput{Name: "Acme", Slug: "Acme_HQ"}, "slug"},
		{"bad currency", models.CreateCompanyInput{Name: "Acme", Currency: "RUPIAH"}, "currency"},
		{"tax too high", models.CreateCompanyInput{Name: "Acme", TaxRate: 101}, "tax_rate"},
		{"unknown timezone", models.CreateCompanyInput{Name: "Acme", Timezone: "Mars/Olympus"}, "timezone"},
		{"validity too long", models.CreateCompanyInput{Name: "Acme", QuotationValidityDays: 400}, "quotation_validity_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newCompany(tt.input, nil)
			var ve *appErrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
