package apiv1

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job statuses as reported by the server.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
	JobCancelled  = "cancelled"
)

// IsTerminalJobStatus reports whether a job in status s will never change again.
func IsTerminalJobStatus(s string) bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// OutputSpec is one requested output of a job. ClientRef is echoed back on
// the matching JobResult so a client can tell same-format outputs apart.
type OutputSpec struct {
	Format    string `json:"format"`
	ClientRef string `json:"clientRef,omitempty"`
	OCR       *bool  `json:"ocr,omitempty"`
	Quality   *int   `json:"quality,omitempty"`
	PageRange string `json:"pageRange,omitempty"`
}

type CreateJobRequest struct {
	SessionID string       `json:"sessionId"`
	Outputs   []OutputSpec `json:"outputs"`
}

type CreateJobResponse struct {
	JobID    string `json:"jobId"`
	Location string `json:"location"`
}

type JobResult struct {
	ID        string          `json:"id"`
	JobID     string          `json:"jobId"`
	OutputKey string          `json:"outputKey"`
	Format    string          `json:"format"`
	ClientRef string          `json:"clientRef,omitempty"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Size reads meta.size when the converter reported one.
func (r JobResult) Size() int64 {
	if len(r.Meta) == 0 {
		return 0
	}
	var m struct {
		Size int64 `json:"size"`
	}
	if err := json.Unmarshal(r.Meta, &m); err != nil {
		return 0
	}
	return m.Size
}

type JobLog struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobStatusResponse is GET /jobs/{jobId}. Outputs is the requested output
// list as a JSON encoded string; ParseOutputs decodes it.
type JobStatusResponse struct {
	JobID      string      `json:"jobId"`
	Status     string      `json:"status"`
	Outputs    string      `json:"outputs"`
	Results    []JobResult `json:"results"`
	Logs       []JobLog    `json:"logs"`
	CreatedAt  time.Time   `json:"createdAt"`
	StartedAt  *time.Time  `json:"startedAt"`
	FinishedAt *time.Time  `json:"finishedAt"`
}

func (j *JobStatusResponse) ParseOutputs() ([]OutputSpec, error) {
	if j.Outputs == "" {
		return nil, nil
	}
	var out []OutputSpec
	if err := json.Unmarshal([]byte(j.Outputs), &out); err != nil {
		return nil, fmt.Errorf("decode outputs: %w", err)
	}
	return out, nil
}

// EncodeOutputs is the inverse of ParseOutputs, used by the server.
func EncodeOutputs(outputs []OutputSpec) (string, error) {
	b, err := json.Marshal(outputs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type DownloadResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

// Worker API payloads.

type WorkerStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type WorkerResultRequest struct {
	OutputKey string          `json:"outputKey"`
	Format    string          `json:"format"`
	ClientRef string          `json:"clientRef,omitempty"`
	Meta      json.RawMessage `json:"meta,omitempty"`
}

type WorkerLogRequest struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// WorkerJob is what GET /worker/jobs/next hands to a converter.
type WorkerJob struct {
	JobID     string       `json:"jobId"`
	InputKey  string       `json:"inputKey"`
	InputURL  string       `json:"inputUrl"`
	Outputs   []OutputSpec `json:"outputs"`
	CreatedAt time.Time    `json:"createdAt"`
}
