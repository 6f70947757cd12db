package api

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/dmitrijs2005/pdfconv/internal/server/models"
	"github.com/dmitrijs2005/pdfconv/internal/server/services"
	"github.com/go-chi/chi/v5"
)

func toJobResult(r *models.JobResult) apiv1.JobResult {
	return apiv1.JobResult{
		ID:        r.ID,
		JobID:     r.JobID,
		OutputKey: r.OutputKey,
		Format:    r.Format,
		ClientRef: r.ClientRef,
		Meta:      r.Meta,
		CreatedAt: r.CreatedAt,
	}
}

func toJobLog(l *models.JobLog) apiv1.JobLog {
	return apiv1.JobLog{
		ID:        l.ID,
		JobID:     l.JobID,
		Level:     l.Level,
		Message:   l.Message,
		CreatedAt: l.CreatedAt,
	}
}

// toJobStatus never leaves Results or Logs nil so clients always see arrays.
func toJobStatus(d *services.JobDetails) apiv1.JobStatusResponse {
	resp := apiv1.JobStatusResponse{
		JobID:      d.Job.ID,
		Status:     d.Job.Status,
		Outputs:    d.Job.Outputs,
		Results:    make([]apiv1.JobResult, 0, len(d.Results)),
		Logs:       make([]apiv1.JobLog, 0, len(d.Logs)),
		CreatedAt:  d.Job.CreatedAt,
		StartedAt:  d.Job.StartedAt,
		FinishedAt: d.Job.FinishedAt,
	}
	for _, r := range d.Results {
		resp.Results = append(resp.Results, toJobResult(r))
	}
	for _, l := range d.Logs {
		resp.Logs = append(resp.Logs, toJobLog(l))
	}
	return resp
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req apiv1.CreateJobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if req.SessionID == "" {
		h.fail(w, r, fmt.Errorf("%w: sessionId is required", common.ErrorValidation))
		return
	}
	if err := checkIDs(req.SessionID); err != nil {
		h.fail(w, r, err)
		return
	}

	userID, _ := UserIDFromContext(r.Context())
	job, err := h.jobs.Create(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	location := apiv1.BasePath + apiv1.JobPath(job.ID)
	w.Header().Set("Location", location)
	writeJSON(w, http.StatusCreated, apiv1.CreateJobResponse{JobID: job.ID, Location: location})
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if err := checkIDs(jobID); err != nil {
		h.fail(w, r, err)
		return
	}

	userID, _ := UserIDFromContext(r.Context())
	details, err := h.jobs.Get(r.Context(), userID, jobID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobStatus(details))
}

func (h *Handler) downloadResult(w http.ResponseWriter, r *http.Request) {
	jobID, resultID := chi.URLParam(r, "jobId"), chi.URLParam(r, "resultId")
	if err := checkIDs(jobID, resultID); err != nil {
		h.fail(w, r, err)
		return
	}

	userID, _ := UserIDFromContext(r.Context())
	url, err := h.jobs.DownloadURL(r.Context(), userID, jobID, resultID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiv1.DownloadResponse{DownloadURL: url})
}
