// Package users persists accounts in Postgres.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	SetVerificationCode(ctx context.Context, id, code string, expiry time.Time) error
	MarkVerified(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, token string, expiry time.Time) error
	UpdatePassword(ctx context.Context, id string, hash []byte) error
}
