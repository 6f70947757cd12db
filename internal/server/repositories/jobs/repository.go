// Package jobs persists conversion jobs together with their results and logs.
package jobs

import (
	"context"

	"github.com/dmitrijs2005/pdfconv/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	ClaimNext(ctx context.Context) (*models.Job, error)
	UpdateStatus(ctx context.Context, id, status, reason string) error

	AddResult(ctx context.Context, res *models.JobResult) error
	Results(ctx context.Context, jobID string) ([]*models.JobResult, error)
	GetResult(ctx context.Context, jobID, resultID string) (*models.JobResult, error)

	AddLog(ctx context.Context, l *models.JobLog) error
	Logs(ctx context.Context, jobID string) ([]*models.JobLog, error)
}
