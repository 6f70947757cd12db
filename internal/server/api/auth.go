package api

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/server/models"
	"github.com/go-chi/chi/v5"
)

func toUser(u *models.User) *apiv1.User {
	return &apiv1.User{
		ID:          u.ID,
		UserName:    u.UserName,
		Email:       u.Email,
		PhoneNumber: u.Phone,
		IsVerified:  u.IsVerified,
	}
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	validity := h.users.TokenValidity()
	http.SetCookie(w, &http.Cookie{
		Name:     apiv1.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(validity / time.Second),
		Expires:  time.Now().Add(validity),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     apiv1.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req apiv1.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	user, token, err := h.users.Signup(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setSessionCookie(w, r, token)
	writeJSON(w, http.StatusCreated, apiv1.AuthResponse{
		Success: true,
		Message: "User created successfully",
		User:    toUser(user),
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req apiv1.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	user, token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setSessionCookie(w, r, token)
	writeJSON(w, http.StatusOK, apiv1.AuthResponse{
		Success: true,
		Message: "Logged in successfully",
		User:    toUser(user),
	})
}

// logout is public: a stale cookie must still be clearable.
func (h *Handler) logout(w http.ResponseWriter, _ *http.Request) {
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, apiv1.MessageResponse{Success: true, Message: "Logged out successfully"})
}

func (h *Handler) checkAuth(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiv1.AuthResponse{Success: true, User: toUser(user)})
}

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req apiv1.VerifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	userID, _ := UserIDFromContext(r.Context())
	user, err := h.users.VerifyEmail(r.Context(), userID, req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiv1.AuthResponse{
		Success: true,
		Message: "Email verified successfully",
		User:    toUser(user),
	})
}

func (h *Handler) resendCode(w http.ResponseWriter, r *http.Request) {
	var req apiv1.EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.users.ResendVerificationCode(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiv1.MessageResponse{Success: true, Message: "Verification code sent"})
}

// forgotPassword answers the same way whether or not the email is known.
func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req apiv1.EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.users.ForgotPassword(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiv1.MessageResponse{
		Success: true,
		Message: "If the email is registered, a reset link has been sent",
	})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req apiv1.ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	token := chi.URLParam(r, "token")
	if err := h.users.ResetPassword(r.Context(), token, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiv1.MessageResponse{Success: true, Message: "Password reset successful"})
}
