package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pdfconv/internal/client/models"
	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/dmitrijs2005/pdfconv/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const columns = `job_id, item_id, file_name, target_format, status, result_id, result_url, error, created_at, updated_at`

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.JobRecord) error {

	query := `INSERT INTO jobs (` + columns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(job_id) DO UPDATE SET item_id = excluded.item_id,
				file_name = excluded.file_name,
				target_format = excluded.target_format,
				status = excluded.status,
				result_id = excluded.result_id,
				result_url = excluded.result_url,
				error = excluded.error,
				updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.JobID, rec.ItemID, rec.FileName, string(rec.TargetFormat), string(rec.Status),
		rec.ResultID, rec.ResultURL, rec.Error, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert job %s: %w", rec.JobID, err)
	}

	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, jobID string) (*models.JobRecord, error) {

	query := `SELECT ` + columns + ` FROM jobs WHERE job_id = ?`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}

	return rec, nil
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*models.JobRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + columns + ` FROM jobs ORDER BY created_at DESC, job_id LIMIT ?`
	return r.query(ctx, query, limit)
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]*models.JobRecord, error) {
	query := `SELECT ` + columns + ` FROM jobs
		WHERE status NOT IN (?, ?, ?)
		ORDER BY created_at, job_id`
	return r.query(ctx, query, string(models.StatusCompleted), string(models.StatusFailed), string(models.StatusCancelled))
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.JobRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting jobs: %w", err)
	}
	defer rows.Close()

	var result []*models.JobRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job rows: %w", err)
	}

	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.JobRecord, error) {
	var (
		rec            models.JobRecord
		format, status string
	)
	err := s.Scan(&rec.JobID, &rec.ItemID, &rec.FileName, &format, &status,
		&rec.ResultID, &rec.ResultURL, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.TargetFormat = models.Format(format)
	rec.Status = models.Status(status)
	return &rec, nil
}
