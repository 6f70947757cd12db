package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/dmitrijs2005/pdfconv/internal/dbx"
	"github.com/dmitrijs2005/pdfconv/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// invalidText is the Postgres SQLSTATE for a malformed UUID.
const invalidText = "22P02"

// PostgresRepository stores upload sessions over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts s with status pending and fills in its ID and CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, s *models.UploadSession) error {
	query := `
		INSERT INTO upload_sessions (user_id, filename, size, storage_key, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	s.Status = models.UploadPending
	err := r.db.QueryRowContext(ctx, query, s.UserID, s.Filename, s.Size, s.StorageKey, s.Status).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.UploadSession, error) {
	query := `SELECT id, user_id, filename, size, storage_key, status, created_at, completed_at
		FROM upload_sessions WHERE id = $1`

	s := &models.UploadSession{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.Filename, &s.Size, &s.StorageKey, &s.Status, &s.CreatedAt, &s.CompletedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, sql.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == invalidText) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// MarkCompleted flips a session to completed. Completing twice is a no-op
// that still succeeds.
func (r *PostgresRepository) MarkCompleted(ctx context.Context, id string) error {
	query := `UPDATE upload_sessions SET status = 'completed', completed_at = COALESCE(completed_at, now())
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark completed: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}
