package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/client/models"
	"github.com/dmitrijs2005/pdfconv/internal/logging"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxFailures = 5
)

var (
	ErrTooManyFailures = errors.New("job polling gave up")
	ErrNoResult        = errors.New("no result matched item")
)

// API is the part of the backend the poller calls.
type API interface {
	GetJob(ctx context.Context, jobID string) (*apiv1.JobStatusResponse, error)
	GetDownloadURL(ctx context.Context, jobID, resultID string) (string, error)
}

// Store is the part of the queue the poller reconciles. *queue.Store
// implements it.
type Store interface {
	ItemsByJob(jobID string) []models.QueueItem
	MarkJobProcessing(jobID string) int
	CompleteItem(id string, result models.ConversionResult) error
	FailJob(ctx context.Context, jobID string, status models.Status, reason string) (int, error)
}

// Update is reported after every poll. Status is the server status of the
// job and is empty when the poll failed; Failures counts consecutive failed
// polls.
type Update struct {
	JobID    string
	Status   string
	Err      error
	Failures int
}

type Poller struct {
	api         API
	store       Store
	log         logging.Logger
	interval    time.Duration
	maxFailures int
	notify      func(Update)
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithMaxFailures(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxFailures = n
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// WithNotify registers fn for poll updates. fn runs on the polling
// goroutine.
func WithNotify(fn func(Update)) Option {
	return func(p *Poller) { p.notify = fn }
}

func New(api API, store Store, opts ...Option) *Poller {
	p := &Poller{
		api:         api,
		store:       store,
		log:         logging.Discard(),
		interval:    DefaultInterval,
		maxFailures: DefaultMaxFailures,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Watch polls jobID right away and then once per interval until the job is
// completed, failed or cancelled, reconciling the store after every
// successful poll. It returns the terminal job.
//
// A failed poll, or a failed reconciliation, is reported and retried on the
// next tick. After maxFailures failures in a row the job's unfinished items
// are marked failed and Watch returns ErrTooManyFailures. Cancelling ctx
// stops polling and nothing else.
func (p *Poller) Watch(ctx context.Context, jobID string) (*apiv1.JobStatusResponse, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	failures := 0
	for {
		job, err := p.poll(ctx, jobID)
		switch {
		case err == nil:
			failures = 0
			p.report(Update{JobID: jobID, Status: job.Status})
			if apiv1.IsTerminalJobStatus(job.Status) {
				p.log.Info(ctx, "job finished", "job_id", jobID, "status", job.Status)
				return job, nil
			}
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			failures++
			p.log.Warn(ctx, "job poll failed", "job_id", jobID, "failures", failures, "error", err)
			p.report(Update{JobID: jobID, Err: err, Failures: failures})

			if failures >= p.maxFailures {
				reason := fmt.Sprintf("status unavailable after %d attempts: %v", failures, err)
				if _, ferr := p.store.FailJob(ctx, jobID, models.StatusFailed, reason); ferr != nil {
					p.log.Error(ctx, "could not fail job items", "job_id", jobID, "error", ferr)
				}
				return nil, fmt.Errorf("%w: job %s: %w", ErrTooManyFailures, jobID, err)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) report(u Update) {
	if p.notify != nil {
		p.notify(u)
	}
}

// poll fetches the job once and reconciles the store with it.
func (p *Poller) poll(ctx context.Context, jobID string) (*apiv1.JobStatusResponse, error) {
	job, err := p.api.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if err := p.reconcile(ctx, jobID, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (p *Poller) reconcile(ctx context.Context, jobID string, job *apiv1.JobStatusResponse) error {
	switch job.Status {
	case apiv1.JobQueued:
		return nil

	case apiv1.JobProcessing:
		if n := p.store.MarkJobProcessing(jobID); n > 0 {
			p.log.Debug(ctx, "job items processing", "job_id", jobID, "items", n)
		}
		return nil

	case apiv1.JobCompleted:
		return p.complete(ctx, jobID, job.Results)

	case apiv1.JobFailed, apiv1.JobCancelled:
		status := models.StatusFailed
		if job.Status == apiv1.JobCancelled {
			status = models.StatusCancelled
		}
		_, err := p.store.FailJob(ctx, jobID, status, failureReason(job))
		return err
	}

	return fmt.Errorf("job %s: unknown status %q", jobID, job.Status)
}

// complete attaches a download URL to every item a result was matched to.
// Items done on an earlier tick are skipped, so a tick that failed half way
// can be repeated.
func (p *Poller) complete(ctx context.Context, jobID string, results []apiv1.JobResult) error {
	items := p.store.ItemsByJob(jobID)
	matches, unmatched := MatchResults(items, results)

	var errs []error
	for _, m := range matches {
		url, err := p.api.GetDownloadURL(ctx, jobID, m.Result.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("download url for %s: %w", m.Item.File.Name, err))
			continue
		}

		format, perr := models.ParseFormat(m.Result.Format)
		if perr != nil {
			format = m.Item.Options.TargetFormat
		}
		err = p.store.CompleteItem(m.Item.ID, models.ConversionResult{
			ResultID: m.Result.ID,
			URL:      url,
			Format:   format,
			Size:     m.Result.Size(),
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	for _, it := range unmatched {
		p.log.Warn(ctx, "completed job has no result for item", "job_id", jobID, "item_id", it.ID, "format", it.Options.TargetFormat)
		p.report(Update{JobID: jobID, Status: apiv1.JobCompleted, Err: fmt.Errorf("%w: %s", ErrNoResult, it.File.Name)})
	}

	return errors.Join(errs...)
}

// failureReason picks the last error logged by the worker, if any.
func failureReason(job *apiv1.JobStatusResponse) string {
	for i := len(job.Logs) - 1; i >= 0; i-- {
		if job.Logs[i].Level == "error" && job.Logs[i].Message != "" {
			return job.Logs[i].Message
		}
	}
	return "job " + job.Status
}
