package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/dmitrijs2005/pdfconv/internal/dbx"
	"github.com/dmitrijs2005/pdfconv/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// invalidText is the Postgres SQLSTATE for a value that does not parse as
// the column type, such as a malformed UUID.
const invalidText = "22P02"

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidText
}

// PostgresRepository implements job storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const jobColumns = `id, user_id, session_id, input_key, status, outputs, error, created_at, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*models.Job, error) {
	j := &models.Job{}
	err := row.Scan(&j.ID, &j.UserID, &j.SessionID, &j.InputKey, &j.Status, &j.Outputs, &j.Error,
		&j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *PostgresRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (user_id, session_id, input_key, status, outputs)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, job.UserID, job.SessionID, job.InputKey, job.Status, job.Outputs).
		Scan(&job.ID, &job.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	j, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return j, nil
}

// ClaimNext moves the oldest queued job to processing and returns it.
// Concurrent workers never receive the same job. Returns
// common.ErrorNotFound when the queue is empty.
func (r *PostgresRepository) ClaimNext(ctx context.Context) (*models.Job, error) {
	query := `
		UPDATE jobs SET status = $1, started_at = now()
		WHERE id = (
			SELECT id FROM jobs WHERE status = $2
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns
	j, err := scanJob(r.db.QueryRowContext(ctx, query, apiv1.JobProcessing, apiv1.JobQueued))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return j, nil
}

// UpdateStatus stamps started_at on the first move to processing and
// finished_at on a terminal status. reason is stored as the job error.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, status, reason string) error {
	query := `
		UPDATE jobs SET
			status = $2,
			error = $3,
			started_at = CASE WHEN $2 = 'processing' THEN COALESCE(started_at, now()) ELSE started_at END,
			finished_at = CASE WHEN $2 IN ('completed', 'failed', 'cancelled') THEN now() ELSE finished_at END
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, status, reason)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) AddResult(ctx context.Context, res *models.JobResult) error {
	query := `
		INSERT INTO job_results (job_id, output_key, format, client_ref, meta)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	var meta any
	if len(res.Meta) > 0 {
		meta = res.Meta
	}
	err := r.db.QueryRowContext(ctx, query, res.JobID, res.OutputKey, res.Format, res.ClientRef, meta).
		Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const resultColumns = `id, job_id, output_key, format, client_ref, meta, created_at`

func (r *PostgresRepository) Results(ctx context.Context, jobID string) ([]*models.JobResult, error) {
	query := `SELECT ` + resultColumns + ` FROM job_results WHERE job_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to select results: %w", err)
	}
	defer rows.Close()

	var result []*models.JobResult
	for rows.Next() {
		var item models.JobResult
		if err := rows.Scan(&item.ID, &item.JobID, &item.OutputKey, &item.Format, &item.ClientRef, &item.Meta, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetResult(ctx context.Context, jobID, resultID string) (*models.JobResult, error) {
	query := `SELECT ` + resultColumns + ` FROM job_results WHERE job_id = $1 AND id = $2`

	var item models.JobResult
	err := r.db.QueryRowContext(ctx, query, jobID, resultID).
		Scan(&item.ID, &item.JobID, &item.OutputKey, &item.Format, &item.ClientRef, &item.Meta, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &item, nil
}

func (r *PostgresRepository) AddLog(ctx context.Context, l *models.JobLog) error {
	query := `
		INSERT INTO job_logs (job_id, level, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowContext(ctx, query, l.JobID, l.Level, l.Message).Scan(&l.ID, &l.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Logs(ctx context.Context, jobID string) ([]*models.JobLog, error) {
	query := `SELECT id, job_id, level, message, created_at FROM job_logs WHERE job_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to select logs: %w", err)
	}
	defer rows.Close()

	var result []*models.JobLog
	for rows.Next() {
		var item models.JobLog
		if err := rows.Scan(&item.ID, &item.JobID, &item.Level, &item.Message, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
