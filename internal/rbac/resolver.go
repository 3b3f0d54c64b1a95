package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/medistore/medistore/internal/platform/httpx"
	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/roles"
	"github.com/medistore/medistore/internal/users"
)

// UserReader loads users by id.
type UserReader interface {
	FindByID(ctx context.Context, id int64) (users.User, error)
}

// RoleReader loads roles by id with their privileges resolved.
type RoleReader interface {
	FindByID(ctx context.Context, id int64) (roles.Role, error)
}

var (
	// ErrPrincipalNotFound means the user no longer exists or was deactivated.
	ErrPrincipalNotFound = fmt.Errorf("principal %w", httpx.ErrNotFound)
	// ErrRoleUnresolvable means the user references a role that does not exist.
	ErrRoleUnresolvable = errors.New("rbac: assigned role cannot be resolved")
)

// Resolver maps a user id to its Principal with a live read on every call.
type Resolver struct {
	users  UserReader
	roles  RoleReader
	logger *slog.Logger
}

// NewResolver builds a Resolver.
func NewResolver(users UserReader, roles RoleReader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{users: users, roles: roles, logger: logger}
}

// Resolve loads the user and its role. Missing or deactivated users yield
// ErrPrincipalNotFound. An inactive role resolves with no privileges.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (Principal, error) {
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return Principal{}, ErrPrincipalNotFound
		}
		return Principal{}, fmt.Errorf("rbac: load user %d: %w", userID, err)
	}
	if !user.IsActive {
		return Principal{}, ErrPrincipalNotFound
	}
	role, err := r.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return Principal{}, fmt.Errorf("%w: user %d references role %d", ErrRoleUnresolvable, userID, user.RoleID)
		}
		return Principal{}, fmt.Errorf("rbac: load role %d: %w", user.RoleID, err)
	}
	if !role.IsActive {
		role.Privileges = nil
	}
	return Principal{UserID: user.ID, StoreID: user.StoreID, Role: role}, nil
}

// HasPrivilege reports whether the user currently holds code. Any resolution
// failure answers false.
func (r *Resolver) HasPrivilege(ctx context.Context, userID int64, code string) bool {
	p, err := r.Resolve(ctx, userID)
	if err != nil {
		r.logger.Debug("privilege check failed closed", slog.Int64("user_id", userID), slog.String("privilege", code), slog.Any("error", err))
		return false
	}
	return p.Has(code)
}

// HasAnyPrivilegeInCategory reports whether the user's role lists an active
// privilege of category. Any resolution failure answers false.
func (r *Resolver) HasAnyPrivilegeInCategory(ctx context.Context, userID int64, category privileges.Category) bool {
	p, err := r.Resolve(ctx, userID)
	if err != nil {
		r.logger.Debug("category check failed closed", slog.Int64("user_id", userID), slog.String("category", string(category)), slog.Any("error", err))
		return false
	}
	return p.HasActiveInCategory(category)
}
