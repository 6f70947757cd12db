package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/netx"
	"golang.org/x/net/publicsuffix"
)

// DefaultBaseURL is the development backend.
const DefaultBaseURL = "http://127.0.0.1:3000/api/v1"

// errorBodyLimit caps how much of an error body is read.
const errorBodyLimit = 64 << 10

// HTTPClient implements Client over net/http. API calls carry the session
// cookie; storage uploads go through a separate client without a jar.
type HTTPClient struct {
	baseURL *url.URL
	jar     http.CookieJar
	api     *http.Client
	storage *http.Client
}

type Option func(*HTTPClient)

// WithTimeout bounds every API call. Storage transfers are bounded by the
// caller's context only, uploads can be large.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.api.Timeout = d }
}

// WithTransport swaps the transport of both underlying clients.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *HTTPClient) {
		c.api.Transport = rt
		c.storage.Transport = rt
	}
}

func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	c := &HTTPClient{
		baseURL: u,
		jar:     jar,
		api:     &http.Client{Jar: jar, Timeout: 30 * time.Second},
		storage: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL.String()
}

func (c *HTTPClient) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.baseURL)
}

func (c *HTTPClient) SetCookies(cookies []*http.Cookie) {
	c.jar.SetCookies(c.baseURL, cookies)
}

func (c *HTTPClient) CreateUploadSession(ctx context.Context, filename string, size int64) (*apiv1.UploadSessionResponse, error) {
	var out apiv1.UploadSessionResponse
	in := apiv1.UploadSessionRequest{Filename: filename, Size: size}
	if err := c.do(ctx, http.MethodPost, apiv1.RouteUploadSessions, in, &out); err != nil {
		return nil, err
	}
	if out.SessionID == "" || out.UploadURL == "" {
		return nil, fmt.Errorf("create upload session: incomplete response")
	}
	return &out, nil
}

func (c *HTTPClient) UploadToPresignedURL(ctx context.Context, uploadURL string, body io.Reader, size int64, contentType string, progress netx.ProgressFunc) error {
	return netx.UploadToPresignedURL(ctx, c.storage, uploadURL, body, size, contentType, progress)
}

func (c *HTTPClient) CompleteUploadSession(ctx context.Context, sessionID string) error {
	var out apiv1.CompleteSessionResponse
	return c.do(ctx, http.MethodPut, apiv1.CompleteSessionPath(sessionID), nil, &out)
}

func (c *HTTPClient) CreateJob(ctx context.Context, req apiv1.CreateJobRequest) (*apiv1.CreateJobResponse, error) {
	var out apiv1.CreateJobResponse
	if err := c.do(ctx, http.MethodPost, apiv1.RouteJobs, req, &out); err != nil {
		return nil, err
	}
	if out.JobID == "" {
		return nil, fmt.Errorf("create job: response carries no job id")
	}
	return &out, nil
}

func (c *HTTPClient) GetJob(ctx context.Context, jobID string) (*apiv1.JobStatusResponse, error) {
	var out apiv1.JobStatusResponse
	if err := c.do(ctx, http.MethodGet, apiv1.JobPath(jobID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetDownloadURL(ctx context.Context, jobID, resultID string) (string, error) {
	var out apiv1.DownloadResponse
	if err := c.do(ctx, http.MethodGet, apiv1.ResultDownloadPath(jobID, resultID), nil, &out); err != nil {
		return "", err
	}
	if out.DownloadURL == "" {
		return "", fmt.Errorf("download url: empty response")
	}
	return out.DownloadURL, nil
}

// DownloadResult fetches a result from storage into path.
func (c *HTTPClient) DownloadResult(ctx context.Context, downloadURL, path string) (int64, error) {
	return netx.DownloadToFile(ctx, c.storage, downloadURL, path)
}

func (c *HTTPClient) Signup(ctx context.Context, req apiv1.SignupRequest) (*apiv1.AuthResponse, error) {
	var out apiv1.AuthResponse
	if err := c.do(ctx, http.MethodPost, apiv1.RouteSignup, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*apiv1.AuthResponse, error) {
	var out apiv1.AuthResponse
	in := apiv1.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, apiv1.RouteLogin, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, apiv1.RouteLogout, nil, nil)
}

func (c *HTTPClient) CheckAuth(ctx context.Context) (*apiv1.AuthResponse, error) {
	var out apiv1.AuthResponse
	if err := c.do(ctx, http.MethodGet, apiv1.RouteCheckAuth, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) VerifyEmail(ctx context.Context, code string) (*apiv1.AuthResponse, error) {
	var out apiv1.AuthResponse
	if err := c.do(ctx, http.MethodPost, apiv1.RouteVerifyEmail, apiv1.VerifyEmailRequest{Code: code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ResendVerificationCode(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, apiv1.RouteResendCode, apiv1.EmailRequest{Email: email}, nil)
}

func (c *HTTPClient) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, apiv1.RouteForgotPassword, apiv1.EmailRequest{Email: email}, nil)
}

func (c *HTTPClient) ResetPassword(ctx context.Context, token, password string) error {
	return c.do(ctx, http.MethodPost, apiv1.ResetPasswordPath(token), apiv1.ResetPasswordRequest{Password: password}, nil)
}

// do sends in as JSON (when non-nil) and decodes a 2xx body into out (when
// non-nil). Failed answers become *APIError, transport failures wrap
// ErrUnavailable.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.api.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// decodeError turns a failed response into *APIError. The message comes
// from the body's "error" field (a string, or an object with "message");
// a body that is not JSON yields the status text; anything else yields
// UnknownErrorMessage.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: UnknownErrorMessage}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		if text := statusText(resp); text != "" {
			apiErr.Message = text
		}
		return apiErr
	}

	if msg := messageOf(body["error"]); msg != "" {
		apiErr.Message = msg
	}
	return apiErr
}

func messageOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Message
	}
	return ""
}

// statusText is the reason phrase, "Not Found" for "404 Not Found".
func statusText(resp *http.Response) string {
	prefix := strconv.Itoa(resp.StatusCode) + " "
	if text := strings.TrimPrefix(resp.Status, prefix); text != "" && text != resp.Status {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
