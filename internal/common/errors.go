// Package common defines shared sentinel errors and small helpers used across
// the pdfconv client and server. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")
	ErrorConflict     = errors.New("conflict")

	// Auth errors.
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrInvalidCode       = errors.New("invalid or expired verification code")
)
