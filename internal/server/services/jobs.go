package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/dmitrijs2005/pdfconv/internal/dbx"
	"github.com/dmitrijs2005/pdfconv/internal/logging"
	"github.com/dmitrijs2005/pdfconv/internal/server/models"
	"github.com/dmitrijs2005/pdfconv/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pdfconv/internal/server/storage"
)

// supportedFormats are the output formats a job may request.
var supportedFormats = map[string]struct{}{
	"docx": {}, "pptx": {}, "jpg": {}, "txt": {}, "epub": {}, "xlsx": {},
}

// JobDetails is a job together with what its converter reported so far.
type JobDetails struct {
	Job     *models.Job
	Results []*models.JobResult
	Logs    []*models.JobLog
}

type JobService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Presigner
	log         logging.Logger
}

func NewJobService(db *sql.DB, m repomanager.RepositoryManager, st storage.Presigner, l logging.Logger) *JobService {
	return &JobService{
		db:          db,
		repomanager: m,
		storage:     st,
		log:         l.With("module", "jobs"),
	}
}

// normalizeOutputs lowercases formats and rejects anything a converter
// could not produce.
func normalizeOutputs(outputs []apiv1.OutputSpec) ([]apiv1.OutputSpec, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: at least one output is required", common.ErrorValidation)
	}
	out := make([]apiv1.OutputSpec, 0, len(outputs))
	for _, o := range outputs {
		o.Format = strings.ToLower(strings.TrimSpace(o.Format))
		if _, ok := supportedFormats[o.Format]; !ok {
			return nil, fmt.Errorf("%w: unsupported format %q", common.ErrorValidation, o.Format)
		}
		if o.Quality != nil && (*o.Quality < 1 || *o.Quality > 100) {
			return nil, fmt.Errorf("%w: quality must be between 1 and 100", common.ErrorValidation)
		}
		out = append(out, o)
	}
	return out, nil
}

// Create queues a job for a completed upload session owned by userID.
func (s *JobService) Create(ctx context.Context, userID string, req apiv1.CreateJobRequest) (*models.Job, error) {
	outputs, err := normalizeOutputs(req.Outputs)
	if err != nil {
		return nil, err
	}
	encoded, err := apiv1.EncodeOutputs(outputs)
	if err != nil {
		return nil, err
	}

	var job *models.Job
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		session, err := s.repomanager.Sessions(tx).Get(ctx, req.SessionID)
		if err != nil {
			return err
		}
		if session.UserID != userID {
			return common.ErrorNotFound
		}
		if session.Status != models.UploadCompleted {
			return fmt.Errorf("%w: upload session %s is not completed", common.ErrorConflict, session.ID)
		}

		job = &models.Job{
			UserID:    userID,
			SessionID: session.ID,
			InputKey:  session.StorageKey,
			Status:    apiv1.JobQueued,
			Outputs:   encoded,
		}
		return s.repomanager.Jobs(tx).Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "job queued", "job_id", job.ID, "user_id", userID, "outputs", len(outputs))
	return job, nil
}

// Get returns a job of userID with its results and logs.
// The three reads share one snapshot so a job reported completed always
// comes with its results.
func (s *JobService) Get(ctx context.Context, userID, jobID string) (*JobDetails, error) {
	d := &JobDetails{}
	err := dbx.WithReadTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Jobs(tx)

		job, err := repo.Get(ctx, jobID)
		if err != nil {
			return err
		}
		if job.UserID != userID {
			return common.ErrorNotFound
		}
		d.Job = job

		if d.Results, err = repo.Results(ctx, jobID); err != nil {
			return err
		}
		d.Logs, err = repo.Logs(ctx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// DownloadURL presigns a GET for one result of a job owned by userID.
func (s *JobService) DownloadURL(ctx context.Context, userID, jobID, resultID string) (string, error) {
	repo := s.repomanager.Jobs(s.db)

	job, err := repo.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.UserID != userID {
		return "", common.ErrorNotFound
	}

	res, err := repo.GetResult(ctx, jobID, resultID)
	if err != nil {
		return "", err
	}
	return s.storage.PresignGet(ctx, res.OutputKey)
}
