package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/client/models"
	"github.com/dmitrijs2005/pdfconv/internal/client/queue"
	"github.com/dmitrijs2005/pdfconv/internal/client/repositories/jobs"
	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/dmitrijs2005/pdfconv/internal/logging"
)

// HistoryService records every submitted job in the local database.
//
// Attach subscribes it to a queue store: from then on each change of an
// item that belongs to a job is written through. SyncJob applies a job
// status fetched directly from the server, for jobs whose items are no
// longer in the queue.
type HistoryService interface {
	Attach(ctx context.Context, store *queue.Store) (detach func())
	Record(ctx context.Context, item models.QueueItem) error
	SyncJob(ctx context.Context, job *apiv1.JobStatusResponse) (*models.JobRecord, error)
	List(ctx context.Context, limit int) ([]*models.JobRecord, error)
	Get(ctx context.Context, jobID string) (*models.JobRecord, error)
	Pending(ctx context.Context) ([]*models.JobRecord, error)
}

type historyService struct {
	db  *sql.DB
	log logging.Logger
	now func() time.Time
}

func NewHistoryService(db *sql.DB, log logging.Logger) HistoryService {
	if log == nil {
		log = logging.Discard()
	}
	return &historyService{db: db, log: log, now: time.Now}
}

func (h *historyService) getJobsRepo() jobs.Repository {
	return jobs.NewSQLiteRepository(h.db)
}

func (h *historyService) Attach(ctx context.Context, store *queue.Store) func() {
	return store.Subscribe(func(ev queue.Event) {
		if ev.Kind != queue.EventUpdated && ev.Kind != queue.EventError {
			return
		}
		if err := h.Record(ctx, ev.Item); err != nil {
			h.log.Warn(ctx, "could not record job", "job_id", ev.Item.JobID, "error", err)
		}
	})
}

// Record upserts the job row of item. Items without a job are ignored.
func (h *historyService) Record(ctx context.Context, item models.QueueItem) error {
	if item.JobID == "" {
		return nil
	}

	rec := &models.JobRecord{
		JobID:        item.JobID,
		ItemID:       item.ID,
		FileName:     item.File.Name,
		TargetFormat: item.Options.TargetFormat,
		Status:       item.Status,
		Error:        item.Error,
		CreatedAt:    h.now(),
		UpdatedAt:    item.UpdatedAt,
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if item.Result != nil {
		rec.ResultID = item.Result.ResultID
		rec.ResultURL = item.Result.URL
	}

	return h.getJobsRepo().Upsert(ctx, rec)
}

// SyncJob updates the record of job from a server answer. The first result
// of a completed job becomes the record's result. Download URLs expire, so
// none is stored.
func (h *historyService) SyncJob(ctx context.Context, job *apiv1.JobStatusResponse) (*models.JobRecord, error) {
	repo := h.getJobsRepo()

	rec, err := repo.Get(ctx, job.JobID)
	if err != nil {
		return nil, err
	}

	status, ok := models.ParseJobStatus(job.Status)
	if !ok || status == rec.Status {
		return rec, nil
	}

	rec.Status = status
	rec.UpdatedAt = h.now()
	if status == models.StatusCompleted && len(job.Results) > 0 && rec.ResultID == "" {
		rec.ResultID = job.Results[0].ID
	}
	if status == models.StatusFailed || status == models.StatusCancelled {
		rec.Error = failureMessage(job)
	}

	if err := repo.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func failureMessage(job *apiv1.JobStatusResponse) string {
	for i := len(job.Logs) - 1; i >= 0; i-- {
		if job.Logs[i].Level == "error" {
			return job.Logs[i].Message
		}
	}
	return "job " + job.Status
}

func (h *historyService) List(ctx context.Context, limit int) ([]*models.JobRecord, error) {
	return h.getJobsRepo().List(ctx, limit)
}

func (h *historyService) Get(ctx context.Context, jobID string) (*models.JobRecord, error) {
	return h.getJobsRepo().Get(ctx, jobID)
}

func (h *historyService) Pending(ctx context.Context) ([]*models.JobRecord, error) {
	return h.getJobsRepo().ListPending(ctx)
}

// IsUnknownJob reports whether err means the job was never recorded here.
func IsUnknownJob(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}
