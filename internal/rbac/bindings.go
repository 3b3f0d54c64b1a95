package rbac

import (
	"net/http"

	"github.com/medistore/medistore/internal/privileges"
)

// Named guards for the most common routes.

// RequireViewInventory guards read access to stock levels.
func (m *Enforcer) RequireViewInventory() func(http.Handler) http.Handler {
	return m.RequirePrivilege(privileges.ViewInventory)
}

// RequireManageInventory guards stock edits.
func (m *Enforcer) RequireManageInventory() func(http.Handler) http.Handler {
	return m.RequirePrivilege(privileges.ManageInventory)
}

// RequireManagePrescriptions guards the dispensary.
func (m *Enforcer) RequireManagePrescriptions() func(http.Handler) http.Handler {
	return m.RequirePrivilege(privileges.ManagePrescriptions)
}

// RequireSystemSettings guards system configuration and job tooling.
func (m *Enforcer) RequireSystemSettings() func(http.Handler) http.Handler {
	return m.RequirePrivilege(privileges.SystemSettings)
}

// RequireChangeUserRole guards role reassignment, which needs both user
// editing and system scope.
func (m *Enforcer) RequireChangeUserRole() func(http.Handler) http.Handler {
	return m.RequireAllOf(privileges.EditUsers, privileges.SystemSettings)
}

// RequireReportsSection gates the reporting dashboards.
func (m *Enforcer) RequireReportsSection() func(http.Handler) http.Handler {
	return m.RequireCategory(privileges.CategoryReports)
}

// RequireAdmin is the legacy role-code guard.
func (m *Enforcer) RequireAdmin() func(http.Handler) http.Handler {
	return m.RequireRole(m.adminRole)
}
