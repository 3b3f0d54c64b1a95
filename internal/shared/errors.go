package shared

import "errors"

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid indicates a bearer token that is malformed, forged or expired.
	ErrTokenInvalid = errors.New("token invalid")
)
