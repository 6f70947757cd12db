// Package models defines the rows the server persists in Postgres.
package models

import "time"

// User is an account. VerificationCode and ResetToken are empty when no
// challenge is outstanding.
type User struct {
	ID                 string
	UserName           string
	Email              string
	Phone              string
	PasswordHash       []byte
	IsVerified         bool
	VerificationCode   string
	VerificationExpiry *time.Time
	ResetToken         string
	ResetExpiry        *time.Time
	CreatedAt          time.Time
}
