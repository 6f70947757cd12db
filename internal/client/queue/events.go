package queue

import "github.com/dmitrijs2005/pdfconv/internal/client/models"

type EventKind int

const (
	EventAdded EventKind = iota + 1
	EventUpdated
	EventProgress
	EventRemoved
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventUpdated:
		return "updated"
	case EventProgress:
		return "progress"
	case EventRemoved:
		return "removed"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event describes one change of one item. Item is a snapshot taken right
// after the change; Err is set for EventError.
type Event struct {
	Kind EventKind
	Item models.QueueItem
	Err  error
}

// Subscribe registers fn for every future event and returns a function
// that unregisters it. fn runs on the goroutine that made the change,
// outside the store lock, and may be called concurrently.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) emit(events ...Event) {
	if len(events) == 0 {
		return
	}

	s.subMu.RLock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
