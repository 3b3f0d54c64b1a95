package shared

import "context"

// Claims is the verified identity attached to a request by token
// verification. StoreID is empty for principals without a store scope.
type Claims struct {
	UserID    int64  `json:"userId"`
	RoleClaim string `json:"roleClaim"`
	StoreID   string `json:"tenantId,omitempty"`
}

type claimsContextKey struct{}

// ContextWithClaims stores the claims in context.
func ContextWithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, &claims)
}

// ClaimsFromContext extracts the claims from context, nil when absent.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(*Claims)
	return claims
}
