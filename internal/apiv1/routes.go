package apiv1

import (
	"fmt"
	"net/url"
)

// BasePath is where the API is mounted on the server.
const BasePath = "/api/v1"

// Route patterns as registered on the server router.
const (
	RouteUploadSessions   = "/uploads/sessions"
	RouteCompleteSession  = "/uploads/sessions/{sessionId}/complete"
	RouteJobs             = "/jobs"
	RouteJob              = "/jobs/{jobId}"
	RouteResultDownload   = "/jobs/{jobId}/results/{resultId}/download"
	RouteSignup           = "/auth/signup"
	RouteLogin            = "/auth/login"
	RouteLogout           = "/auth/logout"
	RouteCheckAuth        = "/auth/check-auth"
	RouteVerifyEmail      = "/auth/verify-email"
	RouteResendCode       = "/auth/resend-verification-code"
	RouteForgotPassword   = "/auth/forgot-password"
	RouteResetPassword    = "/auth/reset-password/{token}"
	RouteWorkerJobStatus  = "/worker/jobs/{jobId}/status"
	RouteWorkerJobResults = "/worker/jobs/{jobId}/results"
	RouteWorkerJobLogs    = "/worker/jobs/{jobId}/logs"
	RouteWorkerNextQueued = "/worker/jobs/next"
)

const (
	// WorkerTokenHeader carries the shared secret of the worker API.
	WorkerTokenHeader = "X-Worker-Token"
	// SessionCookieName is the HttpOnly cookie holding the session JWT.
	SessionCookieName = "token"
)

// CompleteSessionPath, JobPath, ... expand the patterns above for clients.
func CompleteSessionPath(sessionID string) string {
	return fmt.Sprintf("/uploads/sessions/%s/complete", url.PathEscape(sessionID))
}

func JobPath(jobID string) string {
	return "/jobs/" + url.PathEscape(jobID)
}

func ResultDownloadPath(jobID, resultID string) string {
	return fmt.Sprintf("/jobs/%s/results/%s/download", url.PathEscape(jobID), url.PathEscape(resultID))
}

func ResetPasswordPath(token string) string {
	return "/auth/reset-password/" + url.PathEscape(token)
}
