package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/common"
)

// maxBodyBytes caps JSON request bodies; file bytes never pass through here.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the {"error": msg} body clients read.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiv1.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", common.ErrorValidation)
		}
		return fmt.Errorf("%w: malformed JSON: %v", common.ErrorValidation, err)
	}
	return nil
}

// errorStatus maps service errors onto HTTP statuses. Client-facing
// errors keep their message; anything else is reported as internal.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrInvalidCredential):
		return http.StatusBadRequest, "Invalid credentials"
	case errors.Is(err, common.ErrInvalidCode):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusBadRequest, "Reset token has expired"
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusBadRequest, "Invalid or expired reset token"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, msg)
}
