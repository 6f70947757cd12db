package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/client/models"
	"github.com/dmitrijs2005/pdfconv/internal/netx"
)

type fakeAPI struct {
	mu sync.Mutex

	sessionErr  map[string]error // by file name
	noUploadURL bool
	uploadErr   error
	completeErr error
	jobErr      error
	onUpload    func(uploadURL string)

	sessionCalls  []string
	uploads       map[string][]byte // by upload url
	completed     []string
	jobs          []apiv1.CreateJobRequest
	nextJob       int
	sessionsGiven int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{sessionErr: map[string]error{}, uploads: map[string][]byte{}}
}

func (f *fakeAPI) CreateUploadSession(_ context.Context, filename string, size int64) (*apiv1.UploadSessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionCalls = append(f.sessionCalls, filename)
	if err := f.sessionErr[filename]; err != nil {
		return nil, err
	}
	f.sessionsGiven++
	n := f.sessionsGiven
	resp := &apiv1.UploadSessionResponse{
		SessionID: fmt.Sprintf("s%d", n),
		Key:       fmt.Sprintf("uploads/%d.pdf", n),
		UploadURL: fmt.Sprintf("http://storage/uploads/%d.pdf", n),
	}
	if f.noUploadURL {
		resp.UploadURL = ""
	}
	return resp, nil
}

func (f *fakeAPI) UploadToPresignedURL(_ context.Context, uploadURL string, body io.Reader, size int64, _ string, progress netx.ProgressFunc) error {
	f.mu.Lock()
	err, hook := f.uploadErr, f.onUpload
	f.mu.Unlock()
	if hook != nil {
		hook(uploadURL)
	}
	if err != nil {
		return err
	}

	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if progress != nil {
		progress(int64(len(b))/2, size)
		progress(int64(len(b)), size)
	}

	f.mu.Lock()
	f.uploads[uploadURL] = b
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) CompleteUploadSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed = append(f.completed, sessionID)
	return nil
}

func (f *fakeAPI) CreateJob(_ context.Context, req apiv1.CreateJobRequest) (*apiv1.CreateJobResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jobErr != nil {
		return nil, f.jobErr
	}
	f.jobs = append(f.jobs, req)
	f.nextJob++
	id := fmt.Sprintf("job-%d", f.nextJob)
	return &apiv1.CreateJobResponse{JobID: id, Location: "/api/v1/jobs/" + id}, nil
}

func (f *fakeAPI) calls() (sessions int, uploads int, jobs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessionCalls), len(f.uploads), len(f.jobs)
}

type denyGate struct {
	addErr   error
	startErr error
}

func (g denyGate) CanAddFiles(int, []models.LocalFile) error { return g.addErr }
func (g denyGate) CanStartConversion() error { return g.startErr }

var errBoom = errors.New("boom")

func pdf(name string, size int) models.LocalFile {
	data := make([]byte, size)
	copy(data, "%PDF-1.7")
	return models.NewMemoryFile(name, models.PDFContentType, data)
}

func seqIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("item-%d", n)
	}
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) statuses(id string) []models.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Status
	for _, ev := range r.events {
		if ev.Item.ID != id || ev.Kind == EventProgress || ev.Kind == EventError {
			continue
		}
		if len(out) == 0 || out[len(out)-1] != ev.Item.Status {
			out = append(out, ev.Item.Status)
		}
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// limitGate allows at most max waiting items and records what it was asked.
type limitGate struct {
	mu     sync.Mutex
	max    int
	counts []int
}

func (g *limitGate) CanAddFiles(waiting int, files []models.LocalFile) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counts = append(g.counts, waiting)
	if waiting+len(files) > g.max {
		return ErrLimitExceeded
	}
	return nil
}

func (g *limitGate) CanStartConversion() error { return nil }
