package models

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/pdfconv/internal/filex"
)

// PDFContentType is the only content type the queue accepts.
const PDFContentType = "application/pdf"

// LocalFile is the handle of a file picked by the user.
type LocalFile struct {
	Path        string
	Name        string
	Size        int64
	ContentType string

	open func() (io.ReadCloser, error)
}

// FileFromInfo builds a LocalFile backed by a file on disk.
func FileFromInfo(info filex.Info) LocalFile {
	path := info.Path
	return LocalFile{
		Path:        info.Path,
		Name:        info.Name,
		Size:        info.Size,
		ContentType: info.ContentType,
		open:        func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// NewMemoryFile builds a LocalFile whose content lives in memory.
func NewMemoryFile(name, contentType string, data []byte) LocalFile {
	return LocalFile{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func (f LocalFile) IsPDF() bool {
	ct, _, _ := strings.Cut(f.ContentType, ";")
	return strings.EqualFold(strings.TrimSpace(ct), PDFContentType)
}

// Open returns a fresh reader over the file content.
func (f LocalFile) Open() (io.ReadCloser, error) {
	if f.open != nil {
		return f.open()
	}
	return os.Open(f.Path)
}
