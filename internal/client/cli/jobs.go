package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/client/models"
	"github.com/dmitrijs2005/pdfconv/internal/client/poller"
	"github.com/dmitrijs2005/pdfconv/internal/client/services"
	"github.com/dmitrijs2005/pdfconv/internal/filex"
	"github.com/dustin/go-humanize"
)

// jobsListLimit is how many history rows 'jobs' shows.
const jobsListLimit = 20

var errNoResult = errors.New("job has no downloadable result yet")

// watch polls jobID in the background until it finishes and then brings
// its history record up to date.
func (a *App) watch(ctx context.Context, jobID string) bool {
	w, started := a.tracker.Watch(ctx, jobID)
	if started {
		go a.syncWhenDone(ctx, w)
	}
	return started
}

func (a *App) syncWhenDone(ctx context.Context, w *poller.Watch) {
	<-w.Done()
	job, err := w.Result()
	if err != nil || job == nil {
		return
	}
	if _, err := a.history.SyncJob(ctx, job); err != nil && !services.IsUnknownJob(err) {
		a.log.Warn(ctx, "could not sync job record", "job_id", w.JobID, "error", err)
	}
}

func (a *App) Watch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("watch <jobId>")
	}
	if a.watch(ctx, args[0]) {
		printlnFn("Watching job", args[0])
	} else {
		printlnFn("Already watching job", args[0])
	}
	return nil
}

func (a *App) Watches(ctx context.Context, args []string) error {
	active := a.tracker.Active()
	if len(active) == 0 {
		printlnFn("No jobs are being watched")
		return nil
	}
	for _, id := range active {
		printlnFn(id)
	}
	return nil
}

// Download saves the result of a completed job into the download
// directory. A job unknown to the local history is looked up on the server.
func (a *App) Download(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("download <jobId>")
	}
	jobID := args[0]

	rec, err := a.resultRecord(ctx, jobID)
	if err != nil {
		return err
	}

	url, err := a.api.GetDownloadURL(ctx, jobID, rec.ResultID)
	if err != nil {
		return fmt.Errorf("get download url: %w", err)
	}

	if err := filex.EnsureDir(a.downloadDir); err != nil {
		return err
	}
	path := filex.UniquePath(a.downloadDir, resultFileName(rec))

	n, err := a.api.DownloadResult(ctx, url, path)
	if err != nil {
		return fmt.Errorf("download %s: %w", jobID, err)
	}

	printlnFn(fmt.Sprintf("Saved %s (%s)", path, humanize.IBytes(uint64(n))))
	return nil
}

// resultRecord returns a record of jobID that names a result, refreshing
// it from the server when the local copy has none.
func (a *App) resultRecord(ctx context.Context, jobID string) (*models.JobRecord, error) {
	rec, err := a.history.Get(ctx, jobID)
	if err != nil && !services.IsUnknownJob(err) {
		return nil, err
	}
	if rec != nil && rec.ResultID != "" {
		return rec, nil
	}

	job, err := a.api.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}

	if rec != nil {
		if rec, err = a.history.SyncJob(ctx, job); err != nil {
			return nil, err
		}
		if rec.ResultID == "" {
			return nil, fmt.Errorf("%w: job is %s", errNoResult, rec.Status)
		}
		return rec, nil
	}

	if len(job.Results) == 0 {
		return nil, fmt.Errorf("%w: job is %s", errNoResult, job.Status)
	}
	res := job.Results[0]
	f, _ := models.ParseFormat(res.Format)
	return &models.JobRecord{
		JobID:        jobID,
		FileName:     filepath.Base(res.OutputKey),
		TargetFormat: f,
		ResultID:     res.ID,
	}, nil
}

// resultFileName is the source name with the extension of the target
// format, e.g. report.pdf converted to DOCX becomes report.docx.
func resultFileName(rec *models.JobRecord) string {
	name := rec.FileName
	if name == "" {
		name = rec.JobID
	}
	if rec.TargetFormat == "" {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + rec.TargetFormat.Extension()
}

func (a *App) Jobs(ctx context.Context, args []string) error {
	records, err := a.history.List(ctx, jobsListLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		printlnFn("No jobs yet")
		return nil
	}
	printlnFn(renderJobs(records, time.Now()))
	return nil
}
