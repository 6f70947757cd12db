package queue

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/pdfconv/internal/client/models"
)

// MarkJobProcessing flips the queued members of jobID to processing and
// returns how many changed.
func (s *Store) MarkJobProcessing(jobID string) int {
	changed := 0
	for _, it := range s.ItemsByJob(jobID) {
		if it.Status != models.StatusQueued {
			continue
		}
		if _, err := s.transition(it.ID, models.StatusProcessing, nil); err == nil {
			changed++
		}
	}
	return changed
}

// CompleteItem attaches result to the item and marks it completed.
func (s *Store) CompleteItem(id string, result models.ConversionResult) error {
	_, err := s.transition(id, models.StatusCompleted, func(it *models.QueueItem) {
		r := result
		it.Result = &r
		it.Progress = 100
		it.Error = ""
	})
	return err
}

// FailJob moves every member of jobID that is still in flight to status
// (failed or cancelled) and returns how many changed. Completed members
// keep their result.
func (s *Store) FailJob(ctx context.Context, jobID string, status models.Status, reason string) (int, error) {
	if status != models.StatusFailed && status != models.StatusCancelled {
		return 0, fmt.Errorf("%w: job cannot end as %s", ErrInvalidTransition, status)
	}

	changed := 0
	for _, it := range s.ItemsByJob(jobID) {
		if !it.Status.IsInFlight() {
			continue
		}
		item, err := s.transition(it.ID, status, func(q *models.QueueItem) {
			q.Error = reason
		})
		if err != nil {
			continue
		}
		changed++
		s.log.Warn(ctx, "job ended without result", "job_id", jobID, "item_id", it.ID, "status", status, "reason", reason)
		s.emit(Event{Kind: EventError, Item: item, Err: fmt.Errorf("%s: job %s %s: %s", item.File.Name, jobID, status, reason)})
	}
	return changed, nil
}
