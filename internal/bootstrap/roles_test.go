package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

func findPerm(perms []models.Permission, resource, action string) (models.Permission, bool) {
	for _, p := range perms {
		if p.Resource == resource && p.Action == action {
			return p, true
		}
	}
	return models.Permission{}, false
}

func TestDefaultRoles(t *testing.T) {
	roles := DefaultRoles()
	require.Len(t, roles, 4)

	byName := map[string]models.RoleInput{}
	for _, r := range roles {
		byName[r.Name] = r
		for _, p := range r.Permissions {
			assert.True(t, constants.IsValidResource(p.Resource), p.Resource)
			assert.True(t, constants.IsValidAction(p.Action), p.Action)
			assert.True(t, constants.IsValidScope(p.Scope), p.Scope)
		}
	}

	owner := byName[constants.RoleOwner]
	assert.Len(t, owner.Permissions, len(constants.AllResources())*len(constants.AllActions()))

	p, ok := findPerm(byName[constants.RoleSales].Permissions, constants.ResourceLeads, constants.PermUpdate)
	require.True(t, ok)
	assert.Equal(t, constants.ScopeOwn, p.Scope)

	_, ok = findPerm(byName[constants.RoleSales].Permissions, constants.ResourcePayments, constants.PermCreate)
	assert.False(t, ok)

	p, ok = findPerm(byName[constants.RoleManager].Permissions, constants.ResourceUsers, constants.PermRead)
	require.True(t, ok)
	assert.Equal(t, constants.ScopeAll, p.Scope)
	_, ok = findPerm(byName[constants.RoleManager].Permissions, constants.ResourceUsers, constants.PermDelete)
	assert.False(t, ok)

	_, ok = findPerm(byName[constants.RoleFinance].Permissions, constants.ResourcePayments, constants.PermDelete)
	assert.True(t, ok)
}
