package models

import "time"

// Job is one conversion request. Outputs holds the requested outputs as
// the JSON string the API returns verbatim.
type Job struct {
	ID         string
	UserID     string
	SessionID  string
	InputKey   string
	Status     string
	Outputs    string
	Error      string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

type JobResult struct {
	ID        string
	JobID     string
	OutputKey string
	Format    string
	ClientRef string
	Meta      []byte
	CreatedAt time.Time
}

type JobLog struct {
	ID        string
	JobID     string
	Level     string
	Message   string
	CreatedAt time.Time
}
