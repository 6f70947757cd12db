package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/dmitrijs2005/pdfconv/internal/dbx"
	"github.com/dmitrijs2005/pdfconv/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const columns = `id, username, email, phone, password_hash, is_verified,
		verification_code, verification_expiry, reset_token, reset_expiry, created_at`

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (username, email, phone, password_hash, verification_code, verification_expiry)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.UserName, user.Email, user.Phone, user.PasswordHash, user.VerificationCode, user.VerificationExpiry,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM users WHERE reset_token = $1 AND reset_token <> ''`, token)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.UserName, &u.Email, &u.Phone, &u.PasswordHash, &u.IsVerified,
		&u.VerificationCode, &u.VerificationExpiry, &u.ResetToken, &u.ResetExpiry, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) SetVerificationCode(ctx context.Context, id, code string, expiry time.Time) error {
	query := `UPDATE users SET verification_code = $2, verification_expiry = $3 WHERE id = $1`
	return r.execOne(ctx, query, id, code, expiry)
}

// MarkVerified sets the flag and burns the outstanding code.
func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	query := `UPDATE users SET is_verified = TRUE, verification_code = '', verification_expiry = NULL WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	query := `UPDATE users SET reset_token = $2, reset_expiry = $3 WHERE id = $1`
	return r.execOne(ctx, query, id, token, expiry)
}

// UpdatePassword stores a new hash and clears any reset token.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	query := `UPDATE users SET password_hash = $2, reset_token = '', reset_expiry = NULL WHERE id = $1`
	return r.execOne(ctx, query, id, hash)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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
