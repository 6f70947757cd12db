package api

import (
	"net/http"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req apiv1.UploadSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	userID, _ := UserIDFromContext(r.Context())
	session, uploadURL, err := h.uploads.CreateSession(r.Context(), userID, req.Filename, req.Size)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, apiv1.UploadSessionResponse{
		SessionID: session.ID,
		Key:       session.StorageKey,
		UploadURL: uploadURL,
	})
}

func (h *Handler) completeSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionId")
	if err := checkIDs(sessionID); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.uploads.CompleteSession(r.Context(), userID, sessionID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiv1.CompleteSessionResponse{SessionID: sessionID})
}
