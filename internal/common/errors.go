// Package common defines shared constants and sentinel errors used across
// the protection core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failure")

	// Crypto errors.
	ErrInvalidInput          = errors.New("invalid input")
	ErrAuthenticationFailure = errors.New("authentication failure")

	// Request-auth errors.
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrReAuthRequired    = errors.New("re-authentication required")
	ErrInvalidCredential = errors.New("invalid credential")

	// Token lifecycle errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
