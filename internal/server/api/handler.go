// Package api is the HTTP/JSON surface of the reference server: the
// /api/v1 routes the CLI client calls plus the worker API converters use.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/logging"
	"github.com/dmitrijs2005/pdfconv/internal/server/models"
	"github.com/dmitrijs2005/pdfconv/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type UserService interface {
	Signup(ctx context.Context, req apiv1.SignupRequest) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	Authenticate(token string) (string, error)
	Get(ctx context.Context, userID string) (*models.User, error)
	VerifyEmail(ctx context.Context, userID, code string) (*models.User, error)
	ResendVerificationCode(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	TokenValidity() time.Duration
}

type UploadService interface {
	CreateSession(ctx context.Context, userID, filename string, size int64) (*models.UploadSession, string, error)
	CompleteSession(ctx context.Context, userID, sessionID string) error
}

type JobService interface {
	Create(ctx context.Context, userID string, req apiv1.CreateJobRequest) (*models.Job, error)
	Get(ctx context.Context, userID, jobID string) (*services.JobDetails, error)
	DownloadURL(ctx context.Context, userID, jobID, resultID string) (string, error)
}

type WorkerService interface {
	ClaimNext(ctx context.Context) (*apiv1.WorkerJob, error)
	SetStatus(ctx context.Context, jobID string, req apiv1.WorkerStatusRequest) error
	AddResult(ctx context.Context, jobID string, req apiv1.WorkerResultRequest) (*models.JobResult, error)
	AddLog(ctx context.Context, jobID string, req apiv1.WorkerLogRequest) (*models.JobLog, error)
}

// Handler wires the services to chi routes.
type Handler struct {
	users        UserService
	uploads      UploadService
	jobs         JobService
	worker       WorkerService
	workerToken  string
	metrics      *Metrics
	log          logging.Logger
}

func NewHandler(us UserService, up UploadService, js JobService, ws WorkerService, workerToken string, m *Metrics, l logging.Logger) *Handler {
	return &Handler{
		users:       us,
		uploads:     up,
		jobs:        js,
		worker:      ws,
		workerToken: workerToken,
		metrics:     m,
		log:         l.With("module", "api"),
	}
}

// Routes builds the router. /metrics and /healthz sit outside /api/v1.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.log))
	r.Use(h.metrics.Middleware)

	r.Handle("/metrics", h.metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route(apiv1.BasePath, func(r chi.Router) {
		r.Post(apiv1.RouteSignup, h.signup)
		r.Post(apiv1.RouteLogin, h.login)
		r.Post(apiv1.RouteLogout, h.logout)
		r.Post(apiv1.RouteResendCode, h.resendCode)
		r.Post(apiv1.RouteForgotPassword, h.forgotPassword)
		r.Post(apiv1.RouteResetPassword, h.resetPassword)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get(apiv1.RouteCheckAuth, h.checkAuth)
			r.Post(apiv1.RouteVerifyEmail, h.verifyEmail)

			r.Group(func(r chi.Router) {
				r.Use(h.requireVerified)
				r.Post(apiv1.RouteUploadSessions, h.createSession)
				r.Put(apiv1.RouteCompleteSession, h.completeSession)
				r.Post(apiv1.RouteJobs, h.createJob)
				r.Get(apiv1.RouteJob, h.getJob)
				r.Get(apiv1.RouteResultDownload, h.downloadResult)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(workerAuth(h.workerToken))
			r.Get(apiv1.RouteWorkerNextQueued, h.workerNext)
			r.Put(apiv1.RouteWorkerJobStatus, h.workerStatus)
			r.Post(apiv1.RouteWorkerJobResults, h.workerResult)
			r.Post(apiv1.RouteWorkerJobLogs, h.workerLog)
		})
	})

	return r
}
