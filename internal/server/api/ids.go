package api

import (
	"fmt"

	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/google/uuid"
)

// checkIDs rejects ids that cannot name a stored row. Every id column is a
// UUID, so anything else is reported as not found before reaching the
// database.
func checkIDs(ids ...string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("%w: %q", common.ErrorNotFound, id)
		}
	}
	return nil
}
