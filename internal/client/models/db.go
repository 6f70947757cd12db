// Package models defines the client-side data model: queue items and their
// lifecycle, conversion options, the signed-in user and locally recorded
// jobs.
package models

// Status is the lifecycle state of a QueueItem.
type Status string

const (
	StatusPendingUploadSession Status = "pending-upload-session"
	StatusPending              Status = "pending"
	StatusUploading            Status = "uploading"
	StatusQueued               Status = "queued"
	StatusProcessing           Status = "processing"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
	StatusCancelled            Status = "cancelled"
)

// IsTerminal reports whether no automatic transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsAwaitingConversion is true for items that were never submitted:
// the ones clearQueue removes.
func (s Status) IsAwaitingConversion() bool {
	return s == StatusPendingUploadSession || s == StatusPending
}

// IsRetryable reports whether RetryConversion accepts an item in s.
func (s Status) IsRetryable() bool {
	return s == StatusFailed || s == StatusCancelled
}

// IsInFlight covers the states owned by a running pipeline or job.
func (s Status) IsInFlight() bool {
	return s == StatusUploading || s == StatusQueued || s == StatusProcessing
}

// ParseJobStatus maps a server job status onto an item status.
func ParseJobStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(s), true
	}
	return "", false
}
