package models

import "time"

// ConversionResult is the downloadable output of a completed item.
type ConversionResult struct {
	ResultID string
	URL      string
	Format   Format
	Size     int64
}

// QueueItem is one user-selected file and its conversion lifecycle.
//
// Session fields (SessionID, ObjectKey, UploadURL) are either all empty or
// all set. JobID is set once the item reached StatusQueued, and Result is
// non-nil only in StatusCompleted.
type QueueItem struct {
	ID       string
	File     LocalFile
	Status   Status
	Progress int
	Options  ConversionOptions

	SessionID string
	ObjectKey string
	UploadURL string

	JobID  string
	Result *ConversionResult

	// Error is the message of the last failure, for display.
	Error string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSession reports whether an upload session was granted.
func (q QueueItem) HasSession() bool {
	return q.SessionID != "" && q.UploadURL != ""
}

// Clone returns a copy that shares no pointers with q.
func (q QueueItem) Clone() QueueItem {
	out := q
	out.Options = q.Options.Clone()
	if q.Result != nil {
		r := *q.Result
		out.Result = &r
	}
	return out
}

// ClearSession drops session, job and result data.
func (q *QueueItem) ClearSession() {
	q.SessionID = ""
	q.ObjectKey = ""
	q.UploadURL = ""
	q.JobID = ""
	q.Result = nil
	q.Progress = 0
	q.Error = ""
}

// User is the signed-in account.
type User struct {
	ID          string
	UserName    string
	Email       string
	PhoneNumber string
	IsVerified  bool
}

// AuthState is a snapshot of the auth store.
type AuthState struct {
	User                 *User
	IsAuthenticated      bool
	IsLoading            bool
	SignupInProgress     bool
	SignupEmail          string
	EmailForVerification string
}

// JobRecord is the locally persisted view of a submitted job.
type JobRecord struct {
	JobID        string
	ItemID       string
	FileName     string
	TargetFormat Format
	Status       Status
	ResultID     string
	ResultURL    string
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SetUser marks u as signed in and ends loading.
func (s *AuthState) SetUser(u *User) {
	s.User = u
	s.IsAuthenticated = u != nil
	s.IsLoading = false
}

// Clear resets to the signed-out state.
func (s *AuthState) Clear() {
	*s = AuthState{}
}
