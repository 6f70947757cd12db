package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/dmitrijs2005/pdfconv/internal/dbx"
	"github.com/dmitrijs2005/pdfconv/internal/server/models"
	"github.com/dmitrijs2005/pdfconv/internal/server/repositories/jobs"
	"github.com/dmitrijs2005/pdfconv/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/pdfconv/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

// memRepos is an in-memory stand-in for all three repositories. The DBTX
// handed to the manager is ignored.
type memRepos struct {
	mu   sync.Mutex
	seq  int
	now  time.Time
	fail error

	users    map[string]*models.User
	sessions map[string]*models.UploadSession
	jobs     map[string]*models.Job
	results  []*models.JobResult
	logs     []*models.JobLog
}

func newMemRepos() *memRepos {
	return &memRepos{
		now:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		users:    map[string]*models.User{},
		sessions: map[string]*models.UploadSession{},
		jobs:     map[string]*models.Job{},
	}
}

func (m *memRepos) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memRepos) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepos) Users(dbx.DBTX) users.Repository              { return (*memUsers)(m) }
func (m *memRepos) Sessions(dbx.DBTX) sessions.Repository        { return (*memSessions)(m) }
func (m *memRepos) Jobs(dbx.DBTX) jobs.Repository                { return (*memJobs)(m) }

type memUsers memRepos

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	u.ID = m.nextID("u")
	u.CreatedAt = m.now
	cp := *u
	m.users[u.ID] = &cp
	return u, nil
}

func (r *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *memUsers) GetByResetToken(_ context.Context, token string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return token != "" && u.ResetToken == token })
}

func (r *memUsers) update(id string, fn func(*models.User)) error {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(u)
	return nil
}

func (r *memUsers) SetVerificationCode(_ context.Context, id, code string, expiry time.Time) error {
	return r.update(id, func(u *models.User) { u.VerificationCode, u.VerificationExpiry = code, &expiry })
}

func (r *memUsers) MarkVerified(_ context.Context, id string) error {
	return r.update(id, func(u *models.User) {
		u.IsVerified, u.VerificationCode, u.VerificationExpiry = true, "", nil
	})
}

func (r *memUsers) SetResetToken(_ context.Context, id, token string, expiry time.Time) error {
	return r.update(id, func(u *models.User) { u.ResetToken, u.ResetExpiry = token, &expiry })
}

func (r *memUsers) UpdatePassword(_ context.Context, id string, hash []byte) error {
	return r.update(id, func(u *models.User) { u.PasswordHash, u.ResetToken, u.ResetExpiry = hash, "", nil })
}

type memSessions memRepos

func (r *memSessions) Create(_ context.Context, s *models.UploadSession) error {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextID("s")
	s.Status = models.UploadPending
	s.CreatedAt = m.now
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (r *memSessions) Get(_ context.Context, id string) (*models.UploadSession, error) {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessions) MarkCompleted(_ context.Context, id string) error {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return common.ErrorNotFound
	}
	s.Status = models.UploadCompleted
	return nil
}

type memJobs memRepos

func (r *memJobs) Create(_ context.Context, j *models.Job) error {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	j.ID = m.nextID("j")
	j.CreatedAt = m.now.Add(time.Duration(m.seq) * time.Second)
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (r *memJobs) Get(_ context.Context, id string) (*models.Job, error) {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memJobs) ClaimNext(_ context.Context) (*models.Job, error) {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	var queued []*models.Job
	for _, j := range m.jobs {
		if j.Status == apiv1.JobQueued {
			queued = append(queued, j)
		}
	}
	if len(queued) == 0 {
		return nil, common.ErrorNotFound
	}
	sort.Slice(queued, func(a, b int) bool { return queued[a].CreatedAt.Before(queued[b].CreatedAt) })
	queued[0].Status = apiv1.JobProcessing
	cp := *queued[0]
	return &cp, nil
}

func (r *memJobs) UpdateStatus(_ context.Context, id, status, reason string) error {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return common.ErrorNotFound
	}
	j.Status, j.Error = status, reason
	return nil
}

func (r *memJobs) AddResult(_ context.Context, res *models.JobResult) error {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	res.ID = m.nextID("r")
	res.CreatedAt = m.now
	cp := *res
	m.results = append(m.results, &cp)
	return nil
}

func (r *memJobs) Results(_ context.Context, jobID string) ([]*models.JobResult, error) {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.JobResult
	for _, res := range m.results {
		if res.JobID == jobID {
			cp := *res
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memJobs) GetResult(ctx context.Context, jobID, resultID string) (*models.JobResult, error) {
	all, _ := r.Results(ctx, jobID)
	for _, res := range all {
		if res.ID == resultID {
			return res, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memJobs) AddLog(_ context.Context, l *models.JobLog) error {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = m.nextID("l")
	l.CreatedAt = m.now
	cp := *l
	m.logs = append(m.logs, &cp)
	return nil
}

func (r *memJobs) Logs(_ context.Context, jobID string) ([]*models.JobLog, error) {
	m := (*memRepos)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.JobLog
	for _, l := range m.logs {
		if l.JobID == jobID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeStorage presigns into predictable URLs.
type fakeStorage struct {
	err  error
	puts []string
}

func (f *fakeStorage) PresignPut(_ context.Context, key, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.puts = append(f.puts, key)
	return "https://s3/put/" + key + "?ct=" + contentType, nil
}

func (f *fakeStorage) PresignGet(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://s3/get/" + key, nil
}

// fakeMailer remembers what it was asked to send.
type fakeMailer struct {
	err    error
	codes  map[string]string
	resets map[string]string
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{codes: map[string]string{}, resets: map[string]string{}}
}

func (f *fakeMailer) SendVerificationCode(_ context.Context, email, code string) error {
	f.codes[email] = code
	return f.err
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, email, token string) error {
	f.resets[email] = token
	return f.err
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// expectTx queues one transaction that ends in a commit or a rollback.
func expectTx(mock sqlmock.Sqlmock, commit bool) {
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}
