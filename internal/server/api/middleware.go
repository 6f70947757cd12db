package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/common"
)

// authenticate resolves the session cookie into a user ID on the context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(apiv1.SessionCookieName)
		if err != nil || cookie.Value == "" {
			h.fail(w, r, common.ErrorUnauthorized)
			return
		}

		userID, err := h.users.Authenticate(cookie.Value)
		if err != nil {
			h.fail(w, r, common.ErrorUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

// requireVerified lets through only users who confirmed their email.
// It must run after authenticate.
func (h *Handler) requireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		user, err := h.users.Get(r.Context(), userID)
		if errors.Is(err, common.ErrorNotFound) {
			h.fail(w, r, common.ErrorUnauthorized)
			return
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !user.IsVerified {
			writeError(w, http.StatusForbidden, "Email is not verified")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// workerAuth accepts the shared token either in X-Worker-Token or as a
// bearer token.
func workerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(apiv1.WorkerTokenHeader)
			if got == "" {
				got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
