package roles

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/medistore/medistore/internal/platform/httpx"
	"github.com/medistore/medistore/internal/privileges"
)

// Role bundles privileges under a stable code.
type Role struct {
	ID           int64                  `json:"id"`
	Code         string                 `json:"code"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	PrivilegeIDs []int64                `json:"privilegeIds"`
	Privileges   []privileges.Privilege `json:"privileges,omitempty"`
	IsActive     bool                   `json:"isActive"`
	IsSystem     bool                   `json:"isSystem"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// PrivilegeCodes returns the codes of the resolved privileges.
func (r Role) PrivilegeCodes() []string {
	codes := make([]string, 0, len(r.Privileges))
	for _, p := range r.Privileges {
		codes = append(codes, p.Code)
	}
	return codes
}

// CreateInput describes a custom role.
type CreateInput struct {
	Code         string  `json:"code" validate:"required,max=64"`
	Name         string  `json:"name" validate:"required,max=120"`
	Description  string  `json:"description" validate:"max=500"`
	PrivilegeIDs []int64 `json:"privilegeIds" validate:"dive,gt=0"`
}

// UpsertInput describes a role kept in sync by code.
type UpsertInput struct {
	Code         string
	Name         string
	Description  string
	PrivilegeIDs []int64
	IsSystem     bool
}

// Patch carries the fields an update may change. Nil fields are left as is.
type Patch struct {
	Name         *string  `json:"name" validate:"omitempty,min=1,max=120"`
	Description  *string  `json:"description" validate:"omitempty,max=500"`
	PrivilegeIDs *[]int64 `json:"privilegeIds"`
}

var (
	// ErrNotFound is returned when no role matches.
	ErrNotFound = fmt.Errorf("role %w", httpx.ErrNotFound)
	// ErrDuplicateCode is returned when the role code is taken.
	ErrDuplicateCode = fmt.Errorf("%w: role code already exists", httpx.ErrValidation)
	// ErrUnknownPrivilege is returned when a privilege id does not resolve.
	ErrUnknownPrivilege = fmt.Errorf("%w: unknown privilege id", httpx.ErrValidation)
	// ErrSystemRole is returned when mutating a built-in role.
	ErrSystemRole = fmt.Errorf("%w: system roles cannot be modified", httpx.ErrForbidden)
	// ErrInUse is returned when deleting a role that users still reference.
	ErrInUse = fmt.Errorf("%w: role is assigned to users", httpx.ErrConflict)
)

// ValidateCode applies the privilege code format to role codes.
func ValidateCode(code string) error {
	return privileges.ValidateCode(code)
}

// normalizeIDs returns ids sorted without duplicates and rejects non-positive ids.
func normalizeIDs(ids []int64) ([]int64, error) {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrUnknownPrivilege, id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (in CreateInput) normalize() (CreateInput, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := ValidateCode(in.Code); err != nil {
		return in, err
	}
	if in.Name == "" {
		return in, fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	ids, err := normalizeIDs(in.PrivilegeIDs)
	if err != nil {
		return in, err
	}
	in.PrivilegeIDs = ids
	return in, nil
}

func (in UpsertInput) normalize() (UpsertInput, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := ValidateCode(in.Code); err != nil {
		return in, err
	}
	if in.Name == "" {
		in.Name = privileges.DisplayName(in.Code)
	}
	ids, err := normalizeIDs(in.PrivilegeIDs)
	if err != nil {
		return in, err
	}
	in.PrivilegeIDs = ids
	return in, nil
}
