package api

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/go-chi/chi/v5"
)

// workerNext answers 204 when the queue is empty.
func (h *Handler) workerNext(w http.ResponseWriter, r *http.Request) {
	job, err := h.worker.ClaimNext(r.Context())
	if errors.Is(err, common.ErrorNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) workerStatus(w http.ResponseWriter, r *http.Request) {
	var req apiv1.WorkerStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	jobID := chi.URLParam(r, "jobId")
	if err := checkIDs(jobID); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.worker.SetStatus(r.Context(), jobID, req); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiv1.MessageResponse{Success: true, Message: "status updated"})
}

func (h *Handler) workerResult(w http.ResponseWriter, r *http.Request) {
	var req apiv1.WorkerResultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	jobID := chi.URLParam(r, "jobId")
	if err := checkIDs(jobID); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.worker.AddResult(r.Context(), jobID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobResult(res))
}

func (h *Handler) workerLog(w http.ResponseWriter, r *http.Request) {
	var req apiv1.WorkerLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	jobID := chi.URLParam(r, "jobId")
	if err := checkIDs(jobID); err != nil {
		h.fail(w, r, err)
		return
	}

	entry, err := h.worker.AddLog(r.Context(), jobID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobLog(entry))
}
