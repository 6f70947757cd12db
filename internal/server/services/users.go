// Package services contains the reference server's business logic: accounts,
// upload sessions, conversion jobs and the worker API.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/dmitrijs2005/pdfconv/internal/logging"
	"github.com/dmitrijs2005/pdfconv/internal/server/auth"
	"github.com/dmitrijs2005/pdfconv/internal/server/config"
	"github.com/dmitrijs2005/pdfconv/internal/server/models"
	"github.com/dmitrijs2005/pdfconv/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeDigits        = 6
	resetTokenBytes   = 32
	minPasswordLength = 6
)

// UserService handles signup, login, email verification and password
// resets. Sessions are stateless JWTs.
type UserService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	mailer        Mailer
	jwtSecret     []byte
	tokenValidity time.Duration
	codeValidity  time.Duration
	hashCost      int
	now           func() time.Time
	log           logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, mailer Mailer, cfg *config.Config, l logging.Logger) *UserService {
	return &UserService{
		db:            db,
		repomanager:   m,
		mailer:        mailer,
		jwtSecret:     []byte(cfg.SecretKey),
		tokenValidity: cfg.TokenValidity,
		codeValidity:  cfg.CodeValidity,
		hashCost:      bcrypt.DefaultCost,
		now:           time.Now,
		log:           l.With("module", "users"),
	}
}

// TokenValidity is how long an issued session token lives.
func (s *UserService) TokenValidity() time.Duration {
	return s.tokenValidity
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", common.ErrorValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: %q is not a valid email", common.ErrorValidation, email)
	}
	return email, nil
}

func checkPassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, minPasswordLength)
	}
	return nil
}

// Signup creates an unverified account, mails it a verification code and
// returns a session token so the caller is signed in right away.
func (s *UserService) Signup(ctx context.Context, req apiv1.SignupRequest) (*models.User, string, error) {
	name := strings.TrimSpace(req.UserName)
	if name == "" {
		return nil, "", fmt.Errorf("%w: user name is required", common.ErrorValidation)
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, "", err
	}
	if err := checkPassword(req.Password); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	code, err := common.MakeNumericCode(codeDigits)
	if err != nil {
		return nil, "", err
	}
	expiry := s.now().Add(s.codeValidity)

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		UserName:           name,
		Email:              email,
		Phone:              strings.TrimSpace(req.PhoneNumber),
		PasswordHash:       hash,
		VerificationCode:   code,
		VerificationExpiry: &expiry,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, "", fmt.Errorf("%w: an account with this email already exists", common.ErrorConflict)
		}
		return nil, "", fmt.Errorf("error creating user: %w", err)
	}

	if err := s.mailer.SendVerificationCode(ctx, email, code); err != nil {
		// The account exists; the user can ask for another code.
		s.log.Warn(ctx, "failed to send verification code", "user_id", user.ID, "error", err)
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login checks credentials. Unknown emails and wrong passwords both yield
// common.ErrInvalidCredential.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, "", common.ErrInvalidCredential
		}
		return nil, "", common.ErrorInternal
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, "", common.ErrInvalidCredential
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *UserService) issueToken(userID string) (string, error) {
	token, err := auth.GenerateToken(userID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return "", fmt.Errorf("error generating token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a session token to its user id.
func (s *UserService) Authenticate(token string) (string, error) {
	return auth.GetUserIDFromToken(token, s.jwtSecret)
}

func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// VerifyEmail marks the user verified when code matches the outstanding,
// unexpired code. Verifying twice succeeds.
func (s *UserService) VerifyEmail(ctx context.Context, userID, code string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return user, nil
	}

	code = strings.TrimSpace(code)
	if code == "" || user.VerificationCode == "" ||
		subtle.ConstantTimeCompare([]byte(code), []byte(user.VerificationCode)) != 1 {
		return nil, common.ErrInvalidCode
	}
	if user.VerificationExpiry != nil && s.now().After(*user.VerificationExpiry) {
		return nil, common.ErrInvalidCode
	}

	if err := repo.MarkVerified(ctx, user.ID); err != nil {
		return nil, err
	}
	user.IsVerified = true
	user.VerificationCode = ""
	user.VerificationExpiry = nil
	return user, nil
}

// ResendVerificationCode rotates the code of an unverified account. Unknown
// emails are ignored so callers cannot probe for accounts.
func (s *UserService) ResendVerificationCode(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.IsVerified {
		return fmt.Errorf("%w: email is already verified", common.ErrorConflict)
	}

	code, err := common.MakeNumericCode(codeDigits)
	if err != nil {
		return err
	}
	if err := repo.SetVerificationCode(ctx, user.ID, code, s.now().Add(s.codeValidity)); err != nil {
		return err
	}
	return s.mailer.SendVerificationCode(ctx, email, code)
}

// ForgotPassword mails a reset token. Unknown emails are ignored.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := common.MakeRandHexString(resetTokenBytes)
	if err != nil {
		return err
	}
	if err := repo.SetResetToken(ctx, user.ID, token, s.now().Add(s.codeValidity)); err != nil {
		return err
	}
	return s.mailer.SendPasswordReset(ctx, email, token)
}

// ResetPassword replaces the password of the account owning token. The
// token is single use.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByResetToken(ctx, strings.TrimSpace(token))
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if user.ResetExpiry != nil && s.now().After(*user.ResetExpiry) {
		return common.ErrTokenExpired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return repo.UpdatePassword(ctx, user.ID, hash)
}
