package client

import (
	"context"
	"io"
	"net/http"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/netx"
)

// ConversionAPI is the upload and job half of the backend contract.
type ConversionAPI interface {
	CreateUploadSession(ctx context.Context, filename string, size int64) (*apiv1.UploadSessionResponse, error)
	UploadToPresignedURL(ctx context.Context, uploadURL string, body io.Reader, size int64, contentType string, progress netx.ProgressFunc) error
	CompleteUploadSession(ctx context.Context, sessionID string) error
	CreateJob(ctx context.Context, req apiv1.CreateJobRequest) (*apiv1.CreateJobResponse, error)
	GetJob(ctx context.Context, jobID string) (*apiv1.JobStatusResponse, error)
	GetDownloadURL(ctx context.Context, jobID, resultID string) (string, error)
}

// AuthAPI is the /auth sub-resource. The session itself travels in a cookie
// the client keeps in its jar.
type AuthAPI interface {
	Signup(ctx context.Context, req apiv1.SignupRequest) (*apiv1.AuthResponse, error)
	Login(ctx context.Context, email, password string) (*apiv1.AuthResponse, error)
	Logout(ctx context.Context) error
	CheckAuth(ctx context.Context) (*apiv1.AuthResponse, error)
	VerifyEmail(ctx context.Context, code string) (*apiv1.AuthResponse, error)
	ResendVerificationCode(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error

	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
}

// Client is the full backend contract.
type Client interface {
	ConversionAPI
	AuthAPI
}
