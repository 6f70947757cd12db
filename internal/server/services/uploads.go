package services

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/dmitrijs2005/pdfconv/internal/logging"
	"github.com/dmitrijs2005/pdfconv/internal/server/models"
	"github.com/dmitrijs2005/pdfconv/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pdfconv/internal/server/storage"
)

const pdfContentType = "application/pdf"

// UploadService opens upload sessions and hands out pre-signed PUT URLs.
type UploadService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Presigner
	maxSize     int64
	now         func() time.Time
	log         logging.Logger
}

func NewUploadService(db *sql.DB, m repomanager.RepositoryManager, st storage.Presigner, maxSize int64, l logging.Logger) *UploadService {
	return &UploadService{
		db:          db,
		repomanager: m,
		storage:     st,
		maxSize:     maxSize,
		now:         time.Now,
		log:         l.With("module", "uploads"),
	}
}

// CreateSession records a pending upload for userID and returns it with
// the URL the client PUTs the file to.
func (s *UploadService) CreateSession(ctx context.Context, userID, filename string, size int64) (*models.UploadSession, string, error) {
	filename = strings.TrimSpace(filepath.Base(filename))
	switch {
	case filename == "" || filename == "." || filename == string(filepath.Separator):
		return nil, "", fmt.Errorf("%w: filename is required", common.ErrorValidation)
	case size <= 0:
		return nil, "", fmt.Errorf("%w: size must be positive", common.ErrorValidation)
	case s.maxSize > 0 && size > s.maxSize:
		return nil, "", fmt.Errorf("%w: file is larger than %d bytes", common.ErrorValidation, s.maxSize)
	}

	key := storage.UploadKey(s.now())
	url, err := s.storage.PresignPut(ctx, key, pdfContentType)
	if err != nil {
		return nil, "", err
	}

	session := &models.UploadSession{
		UserID:     userID,
		Filename:   filename,
		Size:       size,
		StorageKey: key,
	}
	if err := s.repomanager.Sessions(s.db).Create(ctx, session); err != nil {
		return nil, "", err
	}

	s.log.Info(ctx, "upload session created", "session_id", session.ID, "user_id", userID, "size", size)
	return session, url, nil
}

// CompleteSession marks the upload done. Sessions of other users look
// missing.
func (s *UploadService) CompleteSession(ctx context.Context, userID, sessionID string) error {
	repo := s.repomanager.Sessions(s.db)

	session, err := repo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return common.ErrorNotFound
	}
	if session.Status == models.UploadCompleted {
		return nil
	}
	return repo.MarkCompleted(ctx, sessionID)
}
