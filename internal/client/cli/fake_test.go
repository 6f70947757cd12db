package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/client/client"
	"github.com/dmitrijs2005/pdfconv/internal/client/config"
	"github.com/dmitrijs2005/pdfconv/internal/client/services"
	"github.com/dmitrijs2005/pdfconv/internal/logging"
	"github.com/dmitrijs2005/pdfconv/internal/netx"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory backend. Jobs complete on the first poll
// unless a status is set in jobStatus; results echo the requested outputs.
type fakeBackend struct {
	mu sync.Mutex

	sessions  int
	outputs   map[string][]apiv1.OutputSpec
	jobStatus map[string]string
	getJobs   int

	user     *apiv1.User
	loggedIn bool
	loginErr error

	resendEmail string
	resetToken  string
	verifyCode  string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		outputs:   map[string][]apiv1.OutputSpec{},
		jobStatus: map[string]string{},
	}
}

func (f *fakeBackend) CreateUploadSession(_ context.Context, filename string, _ int64) (*apiv1.UploadSessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	return &apiv1.UploadSessionResponse{
		SessionID: fmt.Sprintf("s%d", f.sessions),
		Key:       fmt.Sprintf("uploads/%d.pdf", f.sessions),
		UploadURL: fmt.Sprintf("http://storage/uploads/%d.pdf", f.sessions),
	}, nil
}

func (f *fakeBackend) UploadToPresignedURL(_ context.Context, _ string, body io.Reader, size int64, _ string, progress netx.ProgressFunc) error {
	n, err := io.Copy(io.Discard, body)
	if progress != nil {
		progress(n, size)
	}
	return err
}

func (f *fakeBackend) CompleteUploadSession(context.Context, string) error { return nil }

func (f *fakeBackend) CreateJob(_ context.Context, req apiv1.CreateJobRequest) (*apiv1.CreateJobResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "job-" + req.SessionID
	f.outputs[id] = req.Outputs
	return &apiv1.CreateJobResponse{JobID: id, Location: "/api/v1/jobs/" + id}, nil
}

func (f *fakeBackend) setJobStatus(jobID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobStatus[jobID] = status
}

func (f *fakeBackend) GetJob(_ context.Context, jobID string) (*apiv1.JobStatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getJobs++

	outputs, ok := f.outputs[jobID]
	status := f.jobStatus[jobID]
	if !ok && status == "" {
		return nil, fmt.Errorf("%w: job %s", client.ErrNotFound, jobID)
	}
	if status == "" {
		status = apiv1.JobCompleted
	}

	job := &apiv1.JobStatusResponse{JobID: jobID, Status: status, CreatedAt: time.Now()}
	if status == apiv1.JobCompleted {
		if len(outputs) == 0 {
			outputs = []apiv1.OutputSpec{{Format: "docx"}}
		}
		for i, o := range outputs {
			job.Results = append(job.Results, apiv1.JobResult{
				ID:        fmt.Sprintf("r%d-%s", i+1, jobID),
				JobID:     jobID,
				OutputKey: "outputs/" + jobID + "/scan." + o.Format,
				Format:    o.Format,
				ClientRef: o.ClientRef,
			})
		}
	}
	if status == apiv1.JobFailed {
		job.Logs = []apiv1.JobLog{{Level: "error", Message: "converter crashed"}}
	}
	return job, nil
}

func (f *fakeBackend) GetDownloadURL(_ context.Context, jobID, resultID string) (string, error) {
	return "https://dl.example/" + jobID + "/" + resultID, nil
}

func (f *fakeBackend) DownloadResult(_ context.Context, downloadURL, path string) (int64, error) {
	body := "converted from " + downloadURL
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return 0, err
	}
	return int64(len(body)), nil
}

func (f *fakeBackend) respond() *apiv1.AuthResponse {
	f.loggedIn = true
	u := *f.user
	return &apiv1.AuthResponse{Success: true, User: &u}
}

func (f *fakeBackend) Signup(_ context.Context, req apiv1.SignupRequest) (*apiv1.AuthResponse, error) {
	f.user = &apiv1.User{ID: "u1", UserName: req.UserName, Email: req.Email, PhoneNumber: req.PhoneNumber}
	return f.respond(), nil
}

func (f *fakeBackend) Login(_ context.Context, email, _ string) (*apiv1.AuthResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if f.user == nil {
		f.user = &apiv1.User{ID: "u1", UserName: "ann", Email: email, IsVerified: true}
	}
	return f.respond(), nil
}

func (f *fakeBackend) Logout(context.Context) error {
	f.loggedIn = false
	return nil
}

func (f *fakeBackend) CheckAuth(context.Context) (*apiv1.AuthResponse, error) {
	if !f.loggedIn || f.user == nil {
		return nil, &client.APIError{StatusCode: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	u := *f.user
	return &apiv1.AuthResponse{Success: true, User: &u}, nil
}

func (f *fakeBackend) VerifyEmail(_ context.Context, code string) (*apiv1.AuthResponse, error) {
	f.verifyCode = code
	f.user.IsVerified = true
	return f.respond(), nil
}

func (f *fakeBackend) ResendVerificationCode(_ context.Context, email string) error {
	f.resendEmail = email
	return nil
}

func (f *fakeBackend) ForgotPassword(context.Context, string) error { return nil }

func (f *fakeBackend) ResetPassword(_ context.Context, token, _ string) error {
	f.resetToken = token
	return nil
}

func (f *fakeBackend) Cookies() []*http.Cookie           { return nil }
func (f *fakeBackend) SetCookies(cookies []*http.Cookie) {}

// ---- helpers ----

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.PollInterval = 5 * time.Millisecond
	c.MaxPollFailures = 3
	return c
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestApp(t *testing.T, api *fakeBackend) *App {
	t.Helper()
	db := setupDB(t)
	c := testConfig()
	log := logging.Discard()

	a := newApp(c, api,
		services.NewAuthService(api, db, services.DefaultLimits(), log),
		services.NewHistoryService(db, log),
		log,
	)
	a.downloadDir = t.TempDir()
	a.out = io.Discard
	a.reader = bufio.NewReader(strings.NewReader(""))

	detach := a.history.Attach(context.Background(), a.store)
	t.Cleanup(detach)
	t.Cleanup(a.tracker.StopAll)
	return a
}

// printed collects printlnFn output; pollers print from their own
// goroutines.
type printed struct {
	mu    sync.Mutex
	lines []string
}

func (p *printed) text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.lines, "\n")
}

func capturePrint(t *testing.T) *printed {
	t.Helper()
	p := &printed{}
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.lines = append(p.lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return p
}

func stubInputs(t *testing.T, answers []string, password []byte) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if len(answers) == 0 {
			return "", io.EOF
		}
		s := answers[0]
		answers = answers[1:]
		return s, nil
	}
	getPassword = func(_ io.Writer) ([]byte, error) { return append([]byte(nil), password...), nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writePDF(t *testing.T, name string) string {
	t.Helper()
	return writeFile(t, name, "%PDF-1.7\n1 0 obj\n<<>>\nendobj\n%%EOF\n")
}

func login(t *testing.T, a *App) {
	t.Helper()
	stubInputs(t, nil, []byte("secret"))
	require.NoError(t, a.Login(context.Background(), []string{"ann@example.com"}))
}
