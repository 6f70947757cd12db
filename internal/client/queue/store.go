// Package queue is the conversion queue: the ordered list of files the user
// picked and the upload-session, upload and job-creation pipeline that
// drives each of them.
//
// Store is the only writer of queue items. Every mutation replaces one
// item (or the list) under the store lock; readers get copies. Network
// calls never run under the lock.
package queue

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/client/models"
	"github.com/dmitrijs2005/pdfconv/internal/logging"
	"github.com/dmitrijs2005/pdfconv/internal/netx"
	"github.com/google/uuid"
)

// API is the part of the backend the store calls.
type API interface {
	CreateUploadSession(ctx context.Context, filename string, size int64) (*apiv1.UploadSessionResponse, error)
	UploadToPresignedURL(ctx context.Context, uploadURL string, body io.Reader, size int64, contentType string, progress netx.ProgressFunc) error
	CompleteUploadSession(ctx context.Context, sessionID string) error
	CreateJob(ctx context.Context, req apiv1.CreateJobRequest) (*apiv1.CreateJobResponse, error)
}

// DefaultParallelism bounds concurrent session requests and pipelines.
const DefaultParallelism = 4

type Store struct {
	api         API
	gate        Gate
	log         logging.Logger
	now         func() time.Time
	newID       func() string
	parallelism int

	mu    sync.RWMutex
	items []models.QueueItem

	subMu   sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
}

type Option func(*Store)

func WithGate(g Gate) Option {
	return func(s *Store) { s.gate = g }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithParallelism caps how many items talk to the backend at once.
func WithParallelism(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

func NewStore(api API, opts ...Option) *Store {
	s := &Store{
		api:         api,
		gate:        AllowAll{},
		log:         logging.Discard(),
		now:         time.Now,
		newID:       uuid.NewString,
		parallelism: DefaultParallelism,
		subs:        make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Items returns a copy of the queue in display order.
func (s *Store) Items() []models.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.QueueItem, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	return out
}

func (s *Store) Get(id string) (models.QueueItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.QueueItem{}, false
	}
	return s.items[i].Clone(), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// ItemsByJob returns the members of jobID.
func (s *Store) ItemsByJob(jobID string) []models.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.QueueItem
	for _, it := range s.items {
		if jobID != "" && it.JobID == jobID {
			out = append(out, it.Clone())
		}
	}
	return out
}

// PendingIDs lists items ready for StartConversion.
func (s *Store) PendingIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, it := range s.items {
		if it.Status == models.StatusPending {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// awaitingCount is the number of items not yet submitted. Finished and
// in-flight items do not count against intake limits.
func (s *Store) awaitingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, it := range s.items {
		if it.Status.IsAwaitingConversion() {
			n++
		}
	}
	return n
}

// indexOf must be called with s.mu held.
func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(it models.QueueItem) bool { return it.ID == id })
}

// RemoveFile drops the item whatever its status. A pipeline already running
// for it stops before its next network step.
func (s *Store) RemoveFile(id string) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	removed := s.items[i]
	s.items = slices.Delete(s.items, i, i+1)
	s.mu.Unlock()

	s.emit(Event{Kind: EventRemoved, Item: removed})
	return true
}

// ReorderFiles moves activeID to the position of overID. Nothing happens
// unless both are present.
func (s *Store) ReorderFiles(activeID, overID string) bool {
	s.mu.Lock()
	from, to := s.indexOf(activeID), s.indexOf(overID)
	if from < 0 || to < 0 || from == to {
		s.mu.Unlock()
		return false
	}
	moved := s.items[from]
	items := slices.Delete(slices.Clone(s.items), from, from+1)
	s.items = slices.Insert(items, to, moved)
	snapshot := moved.Clone()
	s.mu.Unlock()

	s.emit(Event{Kind: EventUpdated, Item: snapshot})
	return true
}

// UpdateFileFormat sets the target format. The value is not checked
// against the supported list.
func (s *Store) UpdateFileFormat(id string, format models.Format) error {
	return s.UpdateFileOptions(id, models.OptionsPatch{TargetFormat: &format})
}

// UpdateFileOptions merges patch into the item's options.
func (s *Store) UpdateFileOptions(id string, patch models.OptionsPatch) error {
	_, err := s.update(id, EventUpdated, func(it *models.QueueItem) error {
		it.Options = it.Options.Merge(patch)
		return nil
	})
	return err
}

// ClearQueue removes every item that was never submitted and reports how
// many went. Items in flight or finished stay.
func (s *Store) ClearQueue() int {
	s.mu.Lock()
	var removed []Event
	kept := s.items[:0:0]
	for _, it := range s.items {
		if it.Status.IsAwaitingConversion() {
			removed = append(removed, Event{Kind: EventRemoved, Item: it})
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	s.mu.Unlock()

	s.emit(removed...)
	return len(removed)
}

// update applies fn to a copy of the item and stores the copy. fn may veto
// the change by returning an error.
func (s *Store) update(id string, kind EventKind, fn func(it *models.QueueItem) error) (models.QueueItem, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return models.QueueItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := s.items[i].Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return models.QueueItem{}, err
	}
	next.UpdatedAt = s.now()
	s.items[i] = next
	snapshot := next.Clone()
	s.mu.Unlock()

	s.emit(Event{Kind: kind, Item: snapshot})
	return snapshot, nil
}

// transition moves the item to status to, applying mutate on the way.
func (s *Store) transition(id string, to models.Status, mutate func(it *models.QueueItem)) (models.QueueItem, error) {
	return s.update(id, EventUpdated, func(it *models.QueueItem) error {
		if !canTransition(it.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.Status, to)
		}
		it.Status = to
		if mutate != nil {
			mutate(it)
		}
		return nil
	})
}

// fail marks the item failed, records cause and reports it as an error
// event. Items gone from the queue or past the point of failing are left
// alone.
func (s *Store) fail(ctx context.Context, id string, cause error) {
	item, err := s.transition(id, models.StatusFailed, func(it *models.QueueItem) {
		it.Error = cause.Error()
		it.Result = nil
	})
	if err != nil {
		s.log.Debug(ctx, "could not mark item failed", "item_id", id, "error", err)
		return
	}

	s.log.Warn(ctx, "queue item failed", "item_id", id, "file", item.File.Name, "error", cause)
	s.emit(Event{Kind: EventError, Item: item, Err: cause})
}

// errNotifyOnly surfaces an error for an item without changing it.
func (s *Store) errNotifyOnly(id string, cause error) {
	item, ok := s.Get(id)
	if !ok {
		return
	}
	s.emit(Event{Kind: EventError, Item: item, Err: cause})
}

var transitions = map[models.Status][]models.Status{
	models.StatusPendingUploadSession: {models.StatusPending, models.StatusFailed},
	models.StatusPending:              {models.StatusUploading, models.StatusFailed},
	models.StatusUploading:            {models.StatusQueued, models.StatusFailed, models.StatusCancelled},
	models.StatusQueued:               {models.StatusProcessing, models.StatusCompleted, models.StatusFailed, models.StatusCancelled},
	models.StatusProcessing:           {models.StatusCompleted, models.StatusFailed, models.StatusCancelled},
	models.StatusFailed:               {models.StatusPendingUploadSession},
	models.StatusCancelled:            {models.StatusPendingUploadSession},
}

func canTransition(from, to models.Status) bool {
	return slices.Contains(transitions[from], to)
}
