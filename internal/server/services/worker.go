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

// allowedTransitions lists the statuses a job may move to from each
// non-terminal status.
var allowedTransitions = map[string][]string{
	apiv1.JobQueued:     {apiv1.JobProcessing, apiv1.JobCompleted, apiv1.JobFailed, apiv1.JobCancelled},
	apiv1.JobProcessing: {apiv1.JobCompleted, apiv1.JobFailed, apiv1.JobCancelled},
}

var logLevels = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}

func canTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// WorkerService backs the API external converters use to take jobs and
// report on them.
type WorkerService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Presigner
	log         logging.Logger
}

func NewWorkerService(db *sql.DB, m repomanager.RepositoryManager, st storage.Presigner, l logging.Logger) *WorkerService {
	return &WorkerService{
		db:          db,
		repomanager: m,
		storage:     st,
		log:         l.With("module", "worker"),
	}
}

// ClaimNext hands the oldest queued job to a converter, already moved to
// processing. Returns common.ErrorNotFound when nothing is queued.
func (s *WorkerService) ClaimNext(ctx context.Context) (*apiv1.WorkerJob, error) {
	job, err := s.repomanager.Jobs(s.db).ClaimNext(ctx)
	if err != nil {
		return nil, err
	}

	status := apiv1.JobStatusResponse{Outputs: job.Outputs}
	outputs, err := status.ParseOutputs()
	if err != nil {
		return nil, err
	}
	inputURL, err := s.storage.PresignGet(ctx, job.InputKey)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "job claimed", "job_id", job.ID)
	return &apiv1.WorkerJob{
		JobID:     job.ID,
		InputKey:  job.InputKey,
		InputURL:  inputURL,
		Outputs:   outputs,
		CreatedAt: job.CreatedAt,
	}, nil
}

// SetStatus moves a job along its lifecycle. Terminal jobs never change.
// A failure reason is also appended to the job log.
func (s *WorkerService) SetStatus(ctx context.Context, jobID string, req apiv1.WorkerStatusRequest) error {
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if _, ok := allowedTransitions[status]; !ok && !apiv1.IsTerminalJobStatus(status) {
		return fmt.Errorf("%w: unknown status %q", common.ErrorValidation, req.Status)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Jobs(tx)

		job, err := repo.Get(ctx, jobID)
		if err != nil {
			return err
		}
		if !canTransition(job.Status, status) {
			return fmt.Errorf("%w: job %s is %s", common.ErrorConflict, jobID, job.Status)
		}
		if err := repo.UpdateStatus(ctx, jobID, status, req.Reason); err != nil {
			return err
		}
		if status == apiv1.JobFailed && req.Reason != "" {
			return repo.AddLog(ctx, &models.JobLog{JobID: jobID, Level: "error", Message: req.Reason})
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "job status changed", "job_id", jobID, "status", status)
	return nil
}

// AddResult records one produced output of a job.
func (s *WorkerService) AddResult(ctx context.Context, jobID string, req apiv1.WorkerResultRequest) (*models.JobResult, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if req.OutputKey == "" || format == "" {
		return nil, fmt.Errorf("%w: outputKey and format are required", common.ErrorValidation)
	}

	repo := s.repomanager.Jobs(s.db)
	if _, err := repo.Get(ctx, jobID); err != nil {
		return nil, err
	}

	res := &models.JobResult{
		JobID:     jobID,
		OutputKey: req.OutputKey,
		Format:    format,
		ClientRef: req.ClientRef,
		Meta:      req.Meta,
	}
	if err := repo.AddResult(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// AddLog appends a converter log line. An empty level means info.
func (s *WorkerService) AddLog(ctx context.Context, jobID string, req apiv1.WorkerLogRequest) (*models.JobLog, error) {
	level := strings.ToLower(strings.TrimSpace(req.Level))
	if level == "" {
		level = "info"
	}
	if _, ok := logLevels[level]; !ok {
		return nil, fmt.Errorf("%w: unknown log level %q", common.ErrorValidation, req.Level)
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", common.ErrorValidation)
	}

	repo := s.repomanager.Jobs(s.db)
	if _, err := repo.Get(ctx, jobID); err != nil {
		return nil, err
	}

	l := &models.JobLog{JobID: jobID, Level: level, Message: req.Message}
	if err := repo.AddLog(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}
