package auth

import (
	"time"

	"github.com/medistore/medistore/internal/shared"
)

// Credentials is the login view of a staff account.
type Credentials struct {
	UserID       int64
	Email        string
	PasswordHash string
	RoleCode     string
	StoreID      string
	IsActive     bool
}

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Session is an issued bearer token.
type Session struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Claims    shared.Claims `json:"claims"`
}
