package constants

// Permission resources
const (
	ResourceLeads        = "leads"
	ResourceCustomers    = "customers"
	ResourceQuotations   = "quotations"
	ResourceEventOrders  = "event_orders"
	ResourcePayments     = "payments"
	ResourceTemplates    = "templates"
	ResourceUsers        = "users"
	ResourceRoles        = "roles"
	ResourceReports      = "reports"
	ResourceIntegrations = "integrations"
	ResourceSettings     = "settings"
)

// Permission actions
const (
	PermRead   = "read"
	PermCreate = "create"
	PermUpdate = "update"
	PermDelete = "delete"
)

// Permission scopes
const (
	ScopeOwn = "own"
	ScopeAll = "all"
)

// System role names seeded for every company
const (
	RoleOwner   = "Owner"
	RoleManager = "Manager"
	RoleSales   = "Sales"
	RoleFinance = "Finance"
)

// AllResources returns every permission resource
func AllResources() []string {
	return []string{
		ResourceLeads, ResourceCustomers, ResourceQuotations, ResourceEventOrders,
		ResourcePayments, ResourceTemplates, ResourceUsers, ResourceRoles,
		ResourceReports, ResourceIntegrations, ResourceSettings,
	}
}

// AllActions returns every permission action
func AllActions() []string {
	return []string{PermRead, PermCreate, PermUpdate, PermDelete}
}

// IsValidResource checks a resource name
func IsValidResource(resource string) bool {
	for _, r := range AllResources() {
		if r == resource {
			return true
		}
	}
	return false
}

// IsValidAction checks an action name
func IsValidAction(action string) bool {
	for _, a := range AllActions() {
		if a == action {
			return true
		}
	}
	return false
}

// IsValidScope checks a scope name
func IsValidScope(scope string) bool {
	return scope == ScopeOwn || scope == ScopeAll
}
