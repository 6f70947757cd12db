// Package netx talks to object storage directly through pre-signed URLs.
// The API client hands it a URL; nothing here knows about the backend API.
package netx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
)

// ErrUploadFailed wraps every non-2xx answer from the storage endpoint.
var ErrUploadFailed = errors.New("failed to upload file to storage")

// ProgressFunc receives the number of bytes sent so far and the total.
type ProgressFunc func(sent, total int64)

// ProgressReader counts bytes read through it and reports them.
type ProgressReader struct {
	r     io.Reader
	total int64
	fn    ProgressFunc

	mu   sync.Mutex
	sent int64
}

func NewProgressReader(r io.Reader, total int64, fn ProgressFunc) *ProgressReader {
	return &ProgressReader{r: r, total: total, fn: fn}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.sent += int64(n)
		sent := p.sent
		p.mu.Unlock()
		if p.fn != nil {
			p.fn(sent, p.total)
		}
	}
	return n, err
}

func (p *ProgressReader) Sent() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

// Percent maps sent/total to 0..100. A zero total counts as done.
func Percent(sent, total int64) int {
	if total <= 0 {
		return 100
	}
	pct := int(sent * 100 / total)
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

// UploadToPresignedURL PUTs body to url. Any 2xx counts as success; anything
// else is reported with the transport status text.
func UploadToPresignedURL(ctx context.Context, client *http.Client, url string, body io.Reader, size int64, contentType string, progress ProgressFunc) error {
	if client == nil {
		client = http.DefaultClient
	}
	if progress != nil {
		body = NewProgressReader(body, size, progress)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrUploadFailed, statusText(resp))
	}
	return nil
}

// DownloadToFile streams url into path and returns the number of bytes
// written. A partially written file is removed on error.
func DownloadToFile(ctx context.Context, client *http.Client, url, path string) (int64, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("download failed: %s", statusText(resp))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return n, nil
}

func statusText(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
