package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/dmitrijs2005/pdfconv/internal/logging"
	"github.com/dmitrijs2005/pdfconv/internal/server/models"
	"github.com/dmitrijs2005/pdfconv/internal/server/services"
	"github.com/stretchr/testify/require"
)

const testWorkerToken = "worker-secret"

const (
	testSessionID = "0f6b1d2e-8a41-4c57-9e0a-3c2d1b5a7e01"
	testJobID     = "6c9e2f4a-1b3d-4e8f-a2c5-7d0b9e1f3a02"
	testResultID  = "b1d4e7a0-5c2f-4a93-8e61-2f7c9d0a4b03"
	testOtherID   = "e3a9c5d1-7f2b-4d64-b0e8-1a6c3f9d2e04"
)

var testNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type fakeUsers struct {
	users  map[string]*models.User
	tokens map[string]string
	err    error

	verifyCode string
	resetToken string
	resetPass  string
	resent     string
	forgot     string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users: map[string]*models.User{
			"u1": {ID: "u1", UserName: "ann", Email: "ann@example.com", IsVerified: true},
			"u2": {ID: "u2", UserName: "bob", Email: "bob@example.com"},
		},
		tokens: map[string]string{"tok-ann": "u1", "tok-bob": "u2"},
	}
}

func (f *fakeUsers) Signup(_ context.Context, req apiv1.SignupRequest) (*models.User, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	u := &models.User{ID: "u3", UserName: req.UserName, Email: req.Email}
	f.users[u.ID] = u
	f.tokens["tok-new"] = u.ID
	return u, "tok-new", nil
}

func (f *fakeUsers) Login(_ context.Context, email, password string) (*models.User, string, error) {
	for token, id := range f.tokens {
		if u := f.users[id]; u.Email == email && password == "secret" {
			return u, token, nil
		}
	}
	return nil, "", common.ErrInvalidCredential
}

func (f *fakeUsers) Authenticate(token string) (string, error) {
	id, ok := f.tokens[token]
	if !ok {
		return "", common.ErrInvalidToken
	}
	return id, nil
}

func (f *fakeUsers) Get(_ context.Context, userID string) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsers) VerifyEmail(_ context.Context, userID, code string) (*models.User, error) {
	if code != "123456" {
		return nil, common.ErrInvalidCode
	}
	f.verifyCode = code
	u := f.users[userID]
	u.IsVerified = true
	return u, nil
}

func (f *fakeUsers) ResendVerificationCode(_ context.Context, email string) error {
	f.resent = email
	return f.err
}

func (f *fakeUsers) ForgotPassword(_ context.Context, email string) error {
	f.forgot = email
	return f.err
}

func (f *fakeUsers) ResetPassword(_ context.Context, token, password string) error {
	if token == "expired" {
		return common.ErrTokenExpired
	}
	f.resetToken, f.resetPass = token, password
	return nil
}

func (f *fakeUsers) TokenValidity() time.Duration { return time.Hour }

type fakeUploads struct {
	completed []string
	err       error
}

func (f *fakeUploads) CreateSession(_ context.Context, userID, filename string, size int64) (*models.UploadSession, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return &models.UploadSession{
		ID:         testSessionID,
		UserID:     userID,
		Filename:   filename,
		Size:       size,
		StorageKey: "uploads/2026/01/02/k.pdf",
		Status:     models.UploadPending,
	}, "https://s3/put/uploads/2026/01/02/k.pdf", nil
}

func (f *fakeUploads) CompleteSession(_ context.Context, _ string, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	f.completed = append(f.completed, sessionID)
	return nil
}

type fakeJobs struct {
	created apiv1.CreateJobRequest
	details *services.JobDetails
	err     error
}

func (f *fakeJobs) Create(_ context.Context, userID string, req apiv1.CreateJobRequest) (*models.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = req
	return &models.Job{ID: testJobID, UserID: userID, SessionID: req.SessionID, Status: apiv1.JobQueued}, nil
}

func (f *fakeJobs) Get(_ context.Context, _ string, jobID string) (*services.JobDetails, error) {
	if f.details == nil || f.details.Job.ID != jobID {
		return nil, common.ErrorNotFound
	}
	return f.details, nil
}

func (f *fakeJobs) DownloadURL(_ context.Context, _ string, jobID, resultID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://s3/get/outputs/" + jobID + "/" + resultID, nil
}

type fakeWorker struct {
	next   *apiv1.WorkerJob
	status map[string]string
	err    error
}

func (f *fakeWorker) ClaimNext(context.Context) (*apiv1.WorkerJob, error) {
	if f.next == nil {
		return nil, common.ErrorNotFound
	}
	return f.next, nil
}

func (f *fakeWorker) SetStatus(_ context.Context, jobID string, req apiv1.WorkerStatusRequest) error {
	if f.err != nil {
		return f.err
	}
	if f.status == nil {
		f.status = map[string]string{}
	}
	f.status[jobID] = req.Status
	return nil
}

func (f *fakeWorker) AddResult(_ context.Context, jobID string, req apiv1.WorkerResultRequest) (*models.JobResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.JobResult{ID: testResultID, JobID: jobID, OutputKey: req.OutputKey, Format: req.Format, ClientRef: req.ClientRef, Meta: req.Meta, CreatedAt: testNow}, nil
}

func (f *fakeWorker) AddLog(_ context.Context, jobID string, req apiv1.WorkerLogRequest) (*models.JobLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.JobLog{ID: "l1", JobID: jobID, Level: req.Level, Message: req.Message, CreatedAt: testNow}, nil
}

type testServer struct {
	users   *fakeUsers
	uploads *fakeUploads
	jobs    *fakeJobs
	worker  *fakeWorker
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		users:   newFakeUsers(),
		uploads: &fakeUploads{},
		jobs:    &fakeJobs{},
		worker:  &fakeWorker{},
	}
	h := NewHandler(ts.users, ts.uploads, ts.jobs, ts.worker, testWorkerToken, NewMetrics(), logging.Discard())
	ts.handler = h.Routes()
	return ts
}

// do sends body (JSON encoded unless it is a string) and returns the recorded answer.
func (ts *testServer) do(t *testing.T, method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for _, o := range opts {
		o(req)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func withSession(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: apiv1.SessionCookieName, Value: token})
	}
}

func withHeader(k, v string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[apiv1.ErrorResponse](t, rec).Error
}
