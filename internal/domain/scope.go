package domain

// Scope is the row window a caller may touch: always one company, and one owner
// when the caller's role only grants "own" access.
type Scope struct {
	CompanyID string
	OwnerID   string
}

// CompanyScope returns a scope covering every row of a company.
func CompanyScope(companyID string) Scope {
	return Scope{CompanyID: companyID}
}

// IsOwnOnly reports whether the scope is restricted to one owner's rows.
func (s Scope) IsOwnOnly() bool {
	return s.OwnerID != ""
}
