package poller

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/client/models"
	"github.com/dmitrijs2005/pdfconv/internal/client/queue"
	"github.com/dmitrijs2005/pdfconv/internal/netx"
	"github.com/stretchr/testify/require"
)

// conversionStub gets items to queued. With sharedJob set every item lands
// in the same job.
type conversionStub struct {
	mu        sync.Mutex
	n         int
	sharedJob string
}

func (c *conversionStub) CreateUploadSession(_ context.Context, _ string, _ int64) (*apiv1.UploadSessionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return &apiv1.UploadSessionResponse{
		SessionID: fmt.Sprintf("s%d", c.n),
		Key:       fmt.Sprintf("uploads/%d.pdf", c.n),
		UploadURL: fmt.Sprintf("http://storage/%d", c.n),
	}, nil
}

func (c *conversionStub) UploadToPresignedURL(_ context.Context, _ string, body io.Reader, _ int64, _ string, _ netx.ProgressFunc) error {
	_, err := io.Copy(io.Discard, body)
	return err
}

func (c *conversionStub) CompleteUploadSession(context.Context, string) error { return nil }

func (c *conversionStub) CreateJob(_ context.Context, req apiv1.CreateJobRequest) (*apiv1.CreateJobResponse, error) {
	if c.sharedJob != "" {
		return &apiv1.CreateJobResponse{JobID: c.sharedJob}, nil
	}
	return &apiv1.CreateJobResponse{JobID: "job-" + req.SessionID}, nil
}

// queuedItems returns a store holding one queued item per name.
func queuedItems(t *testing.T, sharedJob string, names ...string) (*queue.Store, []models.QueueItem) {
	t.Helper()

	s := queue.NewStore(&conversionStub{sharedJob: sharedJob})
	files := make([]models.LocalFile, 0, len(names))
	for _, n := range names {
		files = append(files, models.NewMemoryFile(n, models.PDFContentType, []byte("%PDF-1.7")))
	}

	ctx := context.Background()
	ids, err := s.AddFiles(ctx, files)
	require.NoError(t, err)
	_, err = s.StartConversion(ctx, ids)
	require.NoError(t, err)

	items := make([]models.QueueItem, 0, len(ids))
	for _, id := range ids {
		it, ok := s.Get(id)
		require.True(t, ok)
		require.Equal(t, models.StatusQueued, it.Status)
		items = append(items, it)
	}
	return s, items
}

type step struct {
	job *apiv1.JobStatusResponse
	err error
}

// jobAPI answers GetJob from a script; the last step repeats.
type jobAPI struct {
	mu    sync.Mutex
	steps []step
	calls int

	urlErrs  []error // consumed one per GetDownloadURL call
	urlCalls []string
}

func (f *jobAPI) GetJob(_ context.Context, jobID string) (*apiv1.JobStatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.calls++

	st := f.steps[i]
	if st.err != nil {
		return nil, st.err
	}
	job := *st.job
	job.JobID = jobID
	return &job, nil
}

func (f *jobAPI) GetDownloadURL(_ context.Context, jobID, resultID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.urlCalls = append(f.urlCalls, resultID)
	if len(f.urlErrs) > 0 {
		err := f.urlErrs[0]
		f.urlErrs = f.urlErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return "https://storage/results/" + jobID + "/" + resultID, nil
}

func (f *jobAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func status(s string, results ...apiv1.JobResult) step {
	return step{job: &apiv1.JobStatusResponse{Status: s, Results: results}}
}

func result(id, format, clientRef string) apiv1.JobResult {
	return apiv1.JobResult{ID: id, Format: format, ClientRef: clientRef, Meta: []byte(`{"size":2048}`)}
}

type updates struct {
	mu  sync.Mutex
	all []Update
}

func (u *updates) add(up Update) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.all = append(u.all, up)
}

func (u *updates) list() []Update {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Update(nil), u.all...)
}

func testPoller(api API, store Store, opts ...Option) *Poller {
	opts = append([]Option{WithInterval(2 * time.Millisecond)}, opts...)
	return New(api, store, opts...)
}

func timeoutCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
