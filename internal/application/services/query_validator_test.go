package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

// fixedScope grants the same scope on every resource.
func fixedScope(scope domain.Scope) ScopeResolver {
	return func(string) (domain.Scope, error) { return scope, nil }
}

// grantsScope resolves scopes from a role's grants the way AccessService.Authorize does.
func grantsScope(perms []models.Permission, user *auth.UserSession) ScopeResolver {
	return func(resource string) (domain.Scope, error) {
		return scopeFor(perms, user, resource, constants.PermRead)
	}
}

func TestQueryValidator_RewritesCompanyScope(t *testing.T) {
	v := NewQueryValidator()

	out, err := v.ValidateAndRewrite("SELECT status, COUNT(*) FROM leads GROUP BY status", fixedScope(domain.CompanyScope("company-1")))
	require.NoError(t, err)

	lower := strings.ToLower(out)
	assert.Contains(t, lower, "company_id")
	assert.Contains(t, out, "company-1")
	assert.NotContains(t, lower, "owner_id")
	assert.Contains(t, lower, "group by")
}

func TestQueryValidator_RewritesOwnScope(t *testing.T) {
	v := NewQueryValidator()

	out, err := v.ValidateAndRewrite("SELECT l.name FROM leads AS l", fixedScope(domain.Scope{CompanyID: "company-1", OwnerID: "user-7"}))
	require.NoError(t, err)

	lower := strings.ToLower(out)
	assert.Contains(t, lower, "owner_id")
	assert.Contains(t, out, "user-7")
	assert.Contains(t, out, "company-1")
}

func TestQueryValidator_RewritesJoinsAndSubqueries(t *testing.T) {
	v := NewQueryValidator()

	sql := `SELECT c.name, SUM(p.amount) FROM customers c
		JOIN payments p ON p.customer_id = c.id
		WHERE c.id IN (SELECT customer_id FROM event_orders WHERE status = 'completed')
		GROUP BY c.name`
	out, err := v.ValidateAndRewrite(sql, fixedScope(domain.CompanyScope("company-1")))
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(out, "company-1"), out)
}

func TestQueryValidator_Rejects(t *testing.T) {
	v := NewQueryValidator()
	company := domain.CompanyScope("company-1")
	own := domain.Scope{CompanyID: "company-1", OwnerID: "user-7"}

	tests := []struct {
		name       string
		sql        string
		scope      domain.Scope
		permission bool
	}{
		{"empty", "  ", company, false},
		{"update", "UPDATE leads SET score = 100", company, false},
		{"delete", "DELETE FROM leads", company, false},
		{"multiple statements", "SELECT 1 FROM leads; SELECT 1 FROM customers", company, false},
		{"parse error", "SELEC name FROM leads", company, false},
		{"table outside allow list", "SELECT * FROM users", company, true},
		{"schema qualified", "SELECT * FROM mysql.user", company, true},
		{"unowned table in own scope", "SELECT * FROM payments", own, true},
		{"sleep", "SELECT SLEEP(5) FROM leads", company, false},
		{"user variable", "SELECT @secret FROM leads", company, false},
		{"locking read", "SELECT * FROM leads FOR UPDATE", company, false},
		{"select into", "SELECT * FROM leads INTO OUTFILE '/tmp/leads.csv'", company, false},
		{"table statement", "TABLE leads", company, false},
		{"values statement", "VALUES ROW(1, 2)", company, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateAndRewrite(tt.sql, fixedScope(tt.scope))
			require.Error(t, err)
			if tt.permission {
				assert.True(t, appErrors.IsPermission(err), "got %v", err)
			} else {
				assert.True(t, appErrors.IsValidation(err), "got %v", err)
			}
		})
	}
}

func TestQueryValidator_RequiresCompany(t *testing.T) {
	_, err := NewQueryValidator().ValidateAndRewrite("SELECT * FROM leads", fixedScope(domain.Scope{}))
	assert.True(t, appErrors.IsValidation(err))
}

func TestQueryValidator_ChecksResourcePerTable(t *testing.T) {
	v := NewQueryValidator()
	user := &auth.UserSession{ID: "u-fin", CompanyID: "c1", RoleID: "finance"}
	finance := []models.Permission{
		{Resource: constants.ResourceReports, Action: constants.PermRead, Scope: constants.ScopeAll},
		{Resource: constants.ResourcePayments, Action: constants.PermRead, Scope: constants.ScopeAll},
		{Resource: constants.ResourceCustomers, Action: constants.PermRead, Scope: constants.ScopeAll},
		{Resource: constants.ResourceQuotations, Action: constants.PermRead, Scope: constants.ScopeOwn},
	}
	resolve := grantsScope(finance, user)

	for _, sql := range []string{
		"SELECT name, email, phone FROM leads",
		"SELECT kind FROM lead_activities",
		"SELECT p.amount FROM payments p JOIN leads l ON l.id = p.customer_id",
		"SELECT amount FROM payments WHERE customer_id IN (SELECT converted_customer_id FROM leads)",
	} {
		t.Run(sql, func(t *testing.T) {
			_, err := v.ValidateAndRewrite(sql, resolve)
			assert.True(t, appErrors.IsPermission(err), "got %v", err)
		})
	}

	out, err := v.ValidateAndRewrite("SELECT c.name, SUM(p.amount) FROM customers c JOIN payments p ON p.customer_id = c.id GROUP BY c.name", resolve)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "'c1'"), out)
	assert.NotContains(t, strings.ToLower(out), "owner_id")

	// quotations are readable in own scope only, so only that table gains the owner filter
	out, err = v.ValidateAndRewrite("SELECT q.number FROM quotations q JOIN customers c ON c.id = q.customer_id", resolve)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.ToLower(out), "owner_id"), out)
	assert.Contains(t, out, "u-fin")

	// quotation_items carries no owner column
	_, err = v.ValidateAndRewrite("SELECT description FROM quotation_items", resolve)
	assert.True(t, appErrors.IsPermission(err), "got %v", err)
}
