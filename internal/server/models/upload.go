package models

import "time"

const (
	UploadPending   = "pending"
	UploadCompleted = "completed"
)

// UploadSession tracks one pre-signed upload of a source PDF.
type UploadSession struct {
	ID          string
	UserID      string
	Filename    string
	Size        int64
	StorageKey  string
	Status      string
	CreatedAt   time.Time
	CompletedAt *time.Time
}
