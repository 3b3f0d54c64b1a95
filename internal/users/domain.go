package users

import (
	"fmt"
	"time"

	"github.com/medistore/medistore/internal/platform/httpx"
)

// User is a staff account. Every user references exactly one role.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	RoleID    int64     `json:"roleId"`
	StoreID   string    `json:"storeId,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateInput describes a new staff account.
type CreateInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	RoleID   int64  `json:"roleId" validate:"required,gt=0"`
	StoreID  string `json:"storeId" validate:"max=64"`
}

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = fmt.Errorf("user %w", httpx.ErrNotFound)
	// ErrDuplicateEmail is returned when the email is taken.
	ErrDuplicateEmail = fmt.Errorf("%w: email already registered", httpx.ErrValidation)
	// ErrRoleUnavailable is returned when assigning a missing or inactive role.
	ErrRoleUnavailable = fmt.Errorf("%w: role does not exist or is inactive", httpx.ErrValidation)
)
