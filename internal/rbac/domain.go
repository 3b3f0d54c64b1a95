package rbac

import (
	"context"

	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/roles"
)

// Principal is the runtime projection of a user joined with its role. It is
// built fresh for every request and never cached.
type Principal struct {
	UserID  int64
	StoreID string
	Role    roles.Role
}

// Has reports whether the role lists code. Deactivated privileges still
// count here; only category checks exclude them.
func (p Principal) Has(code string) bool {
	for _, priv := range p.Role.Privileges {
		if priv.Code == code {
			return true
		}
	}
	return false
}

// HasActiveInCategory reports whether the role lists an active privilege of category.
func (p Principal) HasActiveInCategory(category privileges.Category) bool {
	for _, priv := range p.Role.Privileges {
		if priv.IsActive && priv.Category == category {
			return true
		}
	}
	return false
}

// PrivilegeCodes returns the effective privilege codes.
func (p Principal) PrivilegeCodes() []string {
	return p.Role.PrivilegeCodes()
}

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal for downstream handlers.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &p)
}

// PrincipalFromContext returns the principal resolved by the enforcement
// middleware, nil when none ran.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
