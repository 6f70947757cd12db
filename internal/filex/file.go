// Package filex has the filesystem helpers the CLI needs: working
// directories for the local database and downloads, and content sniffing
// for files the user adds to the queue.
package filex

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// sniffLen is how many leading bytes http.DetectContentType looks at.
const sniffLen = 512

// EnsureSubdDir creates dirName under the current working directory if it
// does not exist yet and returns its absolute path.
func EnsureSubdDir(dirName string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	if err := EnsureDir(dir); err != nil {
		return "", err
	}

	return dir, nil
}

// EnsureDir is EnsureSubdDir for an absolute or already resolved path.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// Info describes a local file as the queue sees it.
type Info struct {
	Path        string
	Name        string
	Size        int64
	ContentType string
}

// Describe stats path and sniffs its content type from the leading bytes.
// Directories are rejected.
func Describe(path string) (Info, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Info{}, fmt.Errorf("resolve %s: %w", path, err)
	}

	st, err := os.Stat(abs)
	if err != nil {
		return Info{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return Info{}, fmt.Errorf("%s is a directory", path)
	}

	f, err := os.Open(abs)
	if err != nil {
		return Info{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Info{}, fmt.Errorf("read %s: %w", path, err)
	}

	ct := http.DetectContentType(head[:n])
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	return Info{
		Path:        abs,
		Name:        filepath.Base(abs),
		Size:        st.Size(),
		ContentType: ct,
	}, nil
}

// UniquePath returns dir/name, or dir/name-N.ext for the first N that does
// not exist yet, so downloads never overwrite earlier results.
func UniquePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
		return candidate
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, i, ext))
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}
