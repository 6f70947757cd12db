// Package sessions persists upload sessions.
package sessions

import (
	"context"

	"github.com/dmitrijs2005/pdfconv/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.UploadSession) error
	Get(ctx context.Context, id string) (*models.UploadSession, error)
	MarkCompleted(ctx context.Context, id string) error
}
