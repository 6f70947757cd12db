package jobs

import (
	"context"

	"github.com/dmitrijs2005/pdfconv/internal/client/models"
)

type Repository interface {
	// Upsert inserts rec or replaces the row with the same job id. The
	// original CreatedAt is kept.
	Upsert(ctx context.Context, rec *models.JobRecord) error

	// Get returns common.ErrorNotFound for an unknown job.
	Get(ctx context.Context, jobID string) (*models.JobRecord, error)

	// List returns the newest limit rows, newest first. limit <= 0 means
	// all rows.
	List(ctx context.Context, limit int) ([]*models.JobRecord, error)

	// ListPending returns jobs not yet completed, failed or cancelled,
	// oldest first.
	ListPending(ctx context.Context) ([]*models.JobRecord, error)
}
