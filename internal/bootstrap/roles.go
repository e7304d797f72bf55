package bootstrap

import (
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

func grant(scope string, resources []string, actions ...string) []models.Permission {
	var perms []models.Permission
	for _, r := range resources {
		for _, a := range actions {
			perms = append(perms, models.Permission{Resource: r, Action: a, Scope: scope})
		}
	}
	return perms
}

var businessResources = []string{
	constants.ResourceLeads,
	constants.ResourceCustomers,
	constants.ResourceQuotations,
	constants.ResourceEventOrders,
	constants.ResourcePayments,
	constants.ResourceTemplates,
	constants.ResourceReports,
	constants.ResourceIntegrations,
}

// DefaultRoles are seeded into every new tenant as system roles.
func DefaultRoles() []models.RoleInput {
	all := constants.AllActions()

	manager := grant(constants.ScopeAll, businessResources, all...)
	manager = append(manager, grant(constants.ScopeAll,
		[]string{constants.ResourceUsers, constants.ResourceRoles, constants.ResourceSettings},
		constants.PermRead)...)

	sales := grant(constants.ScopeOwn,
		[]string{constants.ResourceLeads, constants.ResourceCustomers, constants.ResourceQuotations}, all...)
	sales = append(sales, grant(constants.ScopeAll,
		[]string{constants.ResourceEventOrders, constants.ResourceTemplates}, constants.PermRead)...)
	sales = append(sales, grant(constants.ScopeOwn,
		[]string{constants.ResourceIntegrations}, all...)...)

	finance := grant(constants.ScopeAll, []string{constants.ResourcePayments}, all...)
	finance = append(finance, grant(constants.ScopeAll,
		[]string{constants.ResourceQuotations, constants.ResourceEventOrders, constants.ResourceCustomers, constants.ResourceReports},
		constants.PermRead)...)

	return []models.RoleInput{
		{
			Name:        constants.RoleOwner,
			Description: "Full access to every resource of the company",
			Permissions: grant(constants.ScopeAll, constants.AllResources(), all...),
		},
		{
			Name:        constants.RoleManager,
			Description: "Manages all business data; read-only on users and roles",
			Permissions: manager,
		},
		{
			Name:        constants.RoleSales,
			Description: "Works own leads, customers and quotations",
			Permissions: sales,
		},
		{
			Name:        constants.RoleFinance,
			Description: "Records payments and reads commercial documents",
			Permissions: finance,
		},
	}
}
