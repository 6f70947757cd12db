package poller

import (
	"strings"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/client/models"
)

type Match struct {
	Item   models.QueueItem
	Result apiv1.JobResult
}

// MatchResults pairs the results of a completed job with the items still
// waiting for one. A result carrying a clientRef goes to the item with that
// id. Other results go to the first waiting item whose target format equals
// the result format, ignoring case. Every result is used at most once and
// results already attached to an item are skipped.
//
// Items left without a result are returned as unmatched. With several
// same-format items and no clientRefs the pairing follows queue order and
// may not be the one the server meant.
func MatchResults(items []models.QueueItem, results []apiv1.JobResult) ([]Match, []models.QueueItem) {
	used := make(map[string]bool, len(results))
	waiting := make([]models.QueueItem, 0, len(items))
	byID := make(map[string]int, len(items))

	for _, it := range items {
		if it.Result != nil {
			used[it.Result.ResultID] = true
		}
		if it.Status.IsInFlight() {
			byID[it.ID] = len(waiting)
			waiting = append(waiting, it)
		}
	}

	assigned := make([]*apiv1.JobResult, len(waiting))

	for i := range results {
		r := results[i]
		if used[r.ID] || r.ClientRef == "" {
			continue
		}
		if idx, ok := byID[r.ClientRef]; ok && assigned[idx] == nil {
			assigned[idx] = &r
			used[r.ID] = true
		}
	}

	for i := range results {
		r := results[i]
		if used[r.ID] {
			continue
		}
		for idx, it := range waiting {
			if assigned[idx] != nil || !strings.EqualFold(it.Options.TargetFormat.Wire(), r.Format) {
				continue
			}
			assigned[idx] = &r
			used[r.ID] = true
			break
		}
	}

	var matches []Match
	var unmatched []models.QueueItem
	for idx, it := range waiting {
		if assigned[idx] == nil {
			unmatched = append(unmatched, it)
			continue
		}
		matches = append(matches, Match{Item: it, Result: *assigned[idx]})
	}
	return matches, unmatched
}
