package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	c, err := NewHTTPClient(ts.URL + "/api/v1")
	require.NoError(t, err)
	return c, ts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewHTTPClient_Validation(t *testing.T) {
	c, err := NewHTTPClient("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	_, err = NewHTTPClient("ftp://example.org")
	require.Error(t, err)

	c, err = NewHTTPClient("http://api.local/api/v1/")
	require.NoError(t, err)
	assert.Equal(t, "http://api.local/api/v1", c.BaseURL())
}

func TestHTTPClient_CreateUploadSession(t *testing.T) {
	var got apiv1.UploadSessionRequest
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/uploads/sessions", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, apiv1.UploadSessionResponse{SessionID: "s1", Key: "uploads/k.pdf", UploadURL: "http://storage/k"})
	}))

	out, err := c.CreateUploadSession(context.Background(), "report.pdf", 2048)
	require.NoError(t, err)
	assert.Equal(t, "s1", out.SessionID)
	assert.Equal(t, "uploads/k.pdf", out.Key)
	assert.Equal(t, "http://storage/k", out.UploadURL)
	assert.Equal(t, apiv1.UploadSessionRequest{Filename: "report.pdf", Size: 2048}, got)
}

func TestHTTPClient_CreateUploadSession_IncompleteResponse(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, apiv1.UploadSessionResponse{SessionID: "s1"})
	}))

	_, err := c.CreateUploadSession(context.Background(), "a.pdf", 1)
	require.Error(t, err)
}

func TestHTTPClient_JobLifecycleCalls(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/v1/uploads/sessions/s1/complete", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, apiv1.CompleteSessionResponse{SessionID: "s1"})
	})
	mux.HandleFunc("POST /api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		var req apiv1.CreateJobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "s1", req.SessionID)
		require.Len(t, req.Outputs, 1)
		require.Equal(t, "docx", req.Outputs[0].Format)
		require.Equal(t, "item-1", req.Outputs[0].ClientRef)
		writeJSON(w, http.StatusCreated, apiv1.CreateJobResponse{JobID: "j1", Location: "/api/v1/jobs/j1"})
	})
	mux.HandleFunc("GET /api/v1/jobs/j1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, apiv1.JobStatusResponse{
			JobID:     "j1",
			Status:    apiv1.JobCompleted,
			Outputs:   `[{"format":"docx","clientRef":"item-1"}]`,
			Results:   []apiv1.JobResult{{ID: "r1", JobID: "j1", Format: "docx", OutputKey: "out/r1.docx"}},
			StartedAt: &started,
		})
	})
	mux.HandleFunc("GET /api/v1/jobs/j1/results/r1/download", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, apiv1.DownloadResponse{DownloadURL: "http://storage/out/r1.docx?sig=1"})
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	require.NoError(t, c.CompleteUploadSession(ctx, "s1"))

	job, err := c.CreateJob(ctx, apiv1.CreateJobRequest{SessionID: "s1", Outputs: []apiv1.OutputSpec{{Format: "docx", ClientRef: "item-1"}}})
	require.NoError(t, err)
	assert.Equal(t, "j1", job.JobID)

	status, err := c.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, apiv1.JobCompleted, status.Status)
	require.Len(t, status.Results, 1)
	assert.Equal(t, "r1", status.Results[0].ID)
	require.NotNil(t, status.StartedAt)
	assert.True(t, started.Equal(*status.StartedAt))

	u, err := c.GetDownloadURL(ctx, "j1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "http://storage/out/r1.docx?sig=1", u)
}

func TestHTTPClient_ErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantMsg     string
		wantIs      error
	}{
		{name: "error string", status: http.StatusBadRequest, contentType: "application/json", body: `{"error":"filename is required"}`, wantMsg: "filename is required"},
		{name: "error object", status: http.StatusConflict, contentType: "application/json", body: `{"error":{"message":"session already completed"}}`, wantMsg: "session already completed"},
		{name: "json without error", status: http.StatusBadRequest, contentType: "application/json", body: `{"detail":"x"}`, wantMsg: UnknownErrorMessage},
		{name: "html body uses status text", status: http.StatusBadGateway, contentType: "text/html", body: `<html>bad gateway</html>`, wantMsg: "Bad Gateway", wantIs: ErrUnavailable},
		{name: "empty body uses status text", status: http.StatusNotFound, body: ``, wantMsg: "Not Found", wantIs: ErrNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, contentType: "application/json", body: `{"error":"Unauthorized - no token provided"}`, wantMsg: "Unauthorized - no token provided", wantIs: ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, contentType: "application/json", body: `{"error":"email not verified"}`, wantMsg: "email not verified", wantIs: ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			_, err := c.GetJob(context.Background(), "j1")
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, tt.status, StatusCode(err))
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestHTTPClient_TransportErrorIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL + "/api/v1"
	ts.Close()

	c, err := NewHTTPClient(base)
	require.NoError(t, err)

	_, err = c.GetJob(context.Background(), "j1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, StatusCode(err))
}

func TestHTTPClient_CancelledContext(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, apiv1.JobStatusResponse{})
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetJob(ctx, "j1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestHTTPClient_SessionCookieRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req apiv1.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret" {
			writeJSON(w, http.StatusBadRequest, apiv1.ErrorResponse{Error: "Invalid credentials"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: apiv1.SessionCookieName, Value: "jwt-1", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, apiv1.AuthResponse{Success: true, User: &apiv1.User{ID: "u1", Email: req.Email, IsVerified: true}})
	})
	mux.HandleFunc("GET /api/v1/auth/check-auth", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(apiv1.SessionCookieName)
		if err != nil || ck.Value != "jwt-1" {
			writeJSON(w, http.StatusUnauthorized, apiv1.ErrorResponse{Error: "Unauthorized - no token provided"})
			return
		}
		writeJSON(w, http.StatusOK, apiv1.AuthResponse{Success: true, User: &apiv1.User{ID: "u1"}})
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	_, err := c.CheckAuth(ctx)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = c.Login(ctx, "a@b.c", "nope")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())

	resp, err := c.Login(ctx, "a@b.c", "secret")
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.Equal(t, "u1", resp.User.ID)

	_, err = c.CheckAuth(ctx)
	require.NoError(t, err)

	cookies := c.Cookies()
	require.Len(t, cookies, 1)

	// a fresh client that restores the cookies is signed in too
	c2, err := NewHTTPClient(c.BaseURL())
	require.NoError(t, err)
	c2.SetCookies(cookies)
	_, err = c2.CheckAuth(ctx)
	require.NoError(t, err)
}

func TestHTTPClient_AuthAcknowledgements(t *testing.T) {
	var paths []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/verify-email") {
			writeJSON(w, http.StatusOK, apiv1.AuthResponse{Success: true, User: &apiv1.User{ID: "u1", IsVerified: true}})
			return
		}
		writeJSON(w, http.StatusOK, apiv1.MessageResponse{Success: true, Message: "ok"})
	}))
	ctx := context.Background()

	_, err := c.Signup(ctx, apiv1.SignupRequest{Email: "a@b.c", Password: "pw", UserName: "a"})
	require.NoError(t, err)
	resp, err := c.VerifyEmail(ctx, "123456")
	require.NoError(t, err)
	assert.True(t, resp.User.IsVerified)
	require.NoError(t, c.ResendVerificationCode(ctx, "a@b.c"))
	require.NoError(t, c.ForgotPassword(ctx, "a@b.c"))
	require.NoError(t, c.ResetPassword(ctx, "tok", "newpw"))
	require.NoError(t, c.Logout(ctx))

	assert.Equal(t, []string{
		"POST /api/v1/auth/signup",
		"POST /api/v1/auth/verify-email",
		"POST /api/v1/auth/resend-verification-code",
		"POST /api/v1/auth/forgot-password",
		"POST /api/v1/auth/reset-password/tok",
		"POST /api/v1/auth/logout",
	}, paths)
}

func TestHTTPClient_UploadDoesNotSendSessionCookie(t *testing.T) {
	var sawCookie bool
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := r.Cookie(apiv1.SessionCookieName)
		sawCookie = err == nil
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer storage.Close()

	c, err := NewHTTPClient(storage.URL + "/api/v1")
	require.NoError(t, err)
	c.SetCookies([]*http.Cookie{{Name: apiv1.SessionCookieName, Value: "jwt-1", Path: "/"}})

	err = c.UploadToPresignedURL(context.Background(), storage.URL+"/bucket/k.pdf", strings.NewReader("%PDF"), 4, "application/pdf", nil)
	require.NoError(t, err)
	assert.False(t, sawCookie)
}
