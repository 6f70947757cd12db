package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/client/models"
	"github.com/dmitrijs2005/pdfconv/internal/netx"
	"golang.org/x/sync/errgroup"
)

// AddFiles queues the PDFs among files and requests one upload session per
// new item. Non-PDF files are rejected before anything changes. Session
// requests run concurrently and independently; AddFiles returns once all of
// them finished, with the ids of the new items and the joined per-file
// errors (ErrNotPDF for rejected files, the API error for failed
// sessions).
func (s *Store) AddFiles(ctx context.Context, files []models.LocalFile) ([]string, error) {
	var errs []error
	accepted := make([]models.LocalFile, 0, len(files))
	for _, f := range files {
		if !f.IsPDF() {
			errs = append(errs, fmt.Errorf("%w: %s (%s)", ErrNotPDF, f.Name, f.ContentType))
			continue
		}
		accepted = append(accepted, f)
	}
	if len(accepted) == 0 {
		return nil, errors.Join(errs...)
	}

	if err := s.gate.CanAddFiles(s.awaitingCount(), accepted); err != nil {
		return nil, err
	}

	now := s.now()
	added := make([]Event, 0, len(accepted))
	ids := make([]string, 0, len(accepted))

	s.mu.Lock()
	for _, f := range accepted {
		item := models.QueueItem{
			ID:        s.newID(),
			File:      f,
			Status:    models.StatusPendingUploadSession,
			Options:   models.DefaultOptions(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.items = append(s.items, item)
		ids = append(ids, item.ID)
		added = append(added, Event{Kind: EventAdded, Item: item.Clone()})
	}
	s.mu.Unlock()

	s.emit(added...)

	sessionErrs := make([]error, len(ids))
	g := new(errgroup.Group)
	g.SetLimit(s.parallelism)
	for i, id := range ids {
		g.Go(func() error {
			sessionErrs[i] = s.acquireSession(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	return ids, errors.Join(append(errs, sessionErrs...)...)
}

// acquireSession requests an upload session for an item in
// pending-upload-session and stores it, or marks the item failed.
func (s *Store) acquireSession(ctx context.Context, id string) error {
	item, ok := s.Get(id)
	if !ok {
		return nil
	}

	resp, err := s.api.CreateUploadSession(ctx, item.File.Name, item.File.Size)
	if err != nil {
		err = fmt.Errorf("upload session for %s: %w", item.File.Name, err)
		s.fail(ctx, id, err)
		return err
	}

	_, err = s.transition(id, models.StatusPending, func(it *models.QueueItem) {
		it.SessionID = resp.SessionID
		it.ObjectKey = resp.Key
		it.UploadURL = resp.UploadURL
		it.Error = ""
	})
	if errors.Is(err, ErrNotFound) {
		// removed while the request was in flight
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Debug(ctx, "upload session granted", "item_id", id, "session_id", resp.SessionID)
	return nil
}

// StartConversion submits the given items, or every pending item when ids
// is empty. Each eligible item runs upload, session completion and job
// creation in that order; items run concurrently with each other. Pending
// items without a session are failed without any network call. Items in
// any other status are skipped and reported.
//
// One job is created per item; the ids of all created jobs are returned in
// the order of ids, along with the joined per-item errors.
func (s *Store) StartConversion(ctx context.Context, ids []string) ([]string, error) {
	if err := s.gate.CanStartConversion(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		ids = s.PendingIDs()
	}

	var errs []error
	eligible := make([]string, 0, len(ids))
	for _, id := range ids {
		item, ok := s.Get(id)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("%w: %s", ErrNotFound, id))
		case item.Status != models.StatusPending:
			err := fmt.Errorf("%w: %s is %s", ErrNotEligible, item.File.Name, item.Status)
			errs = append(errs, err)
			s.errNotifyOnly(id, err)
		case !item.HasSession():
			err := fmt.Errorf("%w: %s", ErrMissingSession, item.File.Name)
			errs = append(errs, err)
			s.fail(ctx, id, err)
		default:
			eligible = append(eligible, id)
		}
	}

	jobIDs := make([]string, len(eligible))
	runErrs := make([]error, len(eligible))
	g := new(errgroup.Group)
	g.SetLimit(s.parallelism)
	for i, id := range eligible {
		g.Go(func() error {
			jobIDs[i], runErrs[i] = s.convert(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	created := make([]string, 0, len(jobIDs))
	for _, j := range jobIDs {
		if j != "" {
			created = append(created, j)
		}
	}
	return created, errors.Join(append(errs, runErrs...)...)
}

// convert is the per-item pipeline. Any failing step marks the item failed;
// a partially completed pipeline is not rolled back. An item removed while
// its pipeline runs gets no further network calls and no job.
func (s *Store) convert(ctx context.Context, id string) (string, error) {
	item, err := s.transition(id, models.StatusUploading, func(it *models.QueueItem) {
		it.Progress = 0
		it.Error = ""
	})
	if err != nil {
		return "", err
	}

	if err := s.upload(ctx, item); err != nil {
		err = fmt.Errorf("upload %s: %w", item.File.Name, err)
		s.fail(ctx, id, err)
		return "", err
	}

	if !s.stillQueued(ctx, id) {
		return "", nil
	}
	if err := s.api.CompleteUploadSession(ctx, item.SessionID); err != nil {
		err = fmt.Errorf("complete upload of %s: %w", item.File.Name, err)
		s.fail(ctx, id, err)
		return "", err
	}

	// Options may have changed while uploading.
	latest, ok := s.Get(id)
	if !ok {
		s.log.Debug(ctx, "item removed during conversion", "item_id", id)
		return "", nil
	}
	item = latest
	resp, err := s.api.CreateJob(ctx, apiv1.CreateJobRequest{
		SessionID: item.SessionID,
		Outputs:   []apiv1.OutputSpec{OutputSpecFor(item)},
	})
	if err != nil {
		err = fmt.Errorf("create job for %s: %w", item.File.Name, err)
		s.fail(ctx, id, err)
		return "", err
	}

	if _, err := s.transition(id, models.StatusQueued, func(it *models.QueueItem) {
		it.JobID = resp.JobID
		it.Progress = 100
	}); err != nil {
		// The job exists server side even if the item is gone.
		return resp.JobID, err
	}

	s.log.Info(ctx, "conversion job created", "item_id", id, "job_id", resp.JobID, "format", item.Options.TargetFormat)
	return resp.JobID, nil
}

// stillQueued reports whether id is still in the queue. A removed item's
// pipeline stops there.
func (s *Store) stillQueued(ctx context.Context, id string) bool {
	if _, ok := s.Get(id); ok {
		return true
	}
	s.log.Debug(ctx, "item removed during conversion", "item_id", id)
	return false
}

func (s *Store) upload(ctx context.Context, item models.QueueItem) error {
	body, err := item.File.Open()
	if err != nil {
		return err
	}
	defer body.Close()

	last := -1
	progress := func(sent, total int64) {
		pct := netx.Percent(sent, total)
		if pct == last {
			return
		}
		last = pct
		s.setProgress(item.ID, pct)
	}

	return s.api.UploadToPresignedURL(ctx, item.UploadURL, body, item.File.Size, item.File.ContentType, progress)
}

func (s *Store) setProgress(id string, pct int) {
	_, _ = s.update(id, EventProgress, func(it *models.QueueItem) error {
		if it.Status != models.StatusUploading {
			return ErrInvalidTransition
		}
		it.Progress = pct
		return nil
	})
}

// OutputSpecFor builds the job output of item. The item id is sent as
// clientRef so results can be matched back to items.
func OutputSpecFor(item models.QueueItem) apiv1.OutputSpec {
	o := item.Options
	spec := apiv1.OutputSpec{
		Format:    o.TargetFormat.Wire(),
		ClientRef: item.ID,
	}
	if o.OCR != nil {
		v := *o.OCR
		spec.OCR = &v
	}
	if o.Quality != nil {
		v := *o.Quality
		spec.Quality = &v
	}
	if o.PageRange != nil {
		spec.PageRange = *o.PageRange
	}
	return spec
}

// RetryConversion puts a failed or cancelled item back to
// pending-upload-session, drops its old session, job and result, and
// requests a new session the way AddFiles does.
func (s *Store) RetryConversion(ctx context.Context, id string) error {
	item, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !item.Status.IsRetryable() {
		return fmt.Errorf("%w: %s is %s", ErrNotRetryable, item.File.Name, item.Status)
	}

	if _, err := s.transition(id, models.StatusPendingUploadSession, func(it *models.QueueItem) {
		it.ClearSession()
	}); err != nil {
		return err
	}

	return s.acquireSession(ctx, id)
}
