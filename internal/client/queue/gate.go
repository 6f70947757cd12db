package queue

import "github.com/dmitrijs2005/pdfconv/internal/client/models"

// Gate is the read-only view of the auth state the store consults before
// accepting files or starting a conversion.
type Gate interface {
	// CanAddFiles is asked before adding files. waiting counts the items
	// still pending or waiting for an upload session; finished and
	// in-flight items are left out.
	CanAddFiles(waiting int, files []models.LocalFile) error
	CanStartConversion() error
}

// AllowAll is a Gate without limits.
type AllowAll struct{}

func (AllowAll) CanAddFiles(int, []models.LocalFile) error { return nil }
func (AllowAll) CanStartConversion() error { return nil }
