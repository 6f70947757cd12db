package poller

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
)

// Watch is a running poll of one job, started by Poller.Start.
type Watch struct {
	JobID string

	cancel context.CancelFunc
	done   chan struct{}
	job    *apiv1.JobStatusResponse
	err    error
}

// Start runs Watch in its own goroutine. The returned handle must be
// stopped or waited for.
func (p *Poller) Start(ctx context.Context, jobID string) *Watch {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{JobID: jobID, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		defer cancel()
		w.job, w.err = p.Watch(ctx, jobID)
	}()

	return w
}

// Stop cancels the watch and waits for its goroutine to exit.
func (w *Watch) Stop() {
	w.cancel()
	<-w.done
}

func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Result blocks until the watch ended and returns what Watch returned.
func (w *Watch) Result() (*apiv1.JobStatusResponse, error) {
	<-w.done
	return w.job, w.err
}

// Tracker keeps at most one running watch per job.
type Tracker struct {
	poller *Poller

	mu      sync.Mutex
	watches map[string]*Watch
}

func NewTracker(p *Poller) *Tracker {
	return &Tracker{poller: p, watches: make(map[string]*Watch)}
}

// Watch starts watching jobID unless a watch for it is still running, in
// which case that one is returned and started is false.
func (t *Tracker) Watch(ctx context.Context, jobID string) (w *Watch, started bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if w, ok := t.watches[jobID]; ok {
		select {
		case <-w.Done():
		default:
			return w, false
		}
	}

	w = t.poller.Start(ctx, jobID)
	t.watches[jobID] = w
	return w, true
}

// Active lists the jobs still being polled, sorted.
func (t *Tracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ids []string
	for id, w := range t.watches {
		select {
		case <-w.Done():
			delete(t.watches, id)
		default:
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// StopAll stops every watch and waits for them.
func (t *Tracker) StopAll() {
	t.mu.Lock()
	watches := t.watches
	t.watches = make(map[string]*Watch)
	t.mu.Unlock()

	for _, w := range watches {
		w.Stop()
	}
}
