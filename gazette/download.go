package gazette

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrDownloadFailed wraps transport and filesystem failures while fetching a
// candidate document.
var ErrDownloadFailed = errors.New("gazette: download failed")

// Downloader fetches one candidate PDF at a time over plain HTTP. The portal
// serves one temporary link per request, so there is deliberately no
// concurrency here; Fetch returns a cleanup func that the caller must run on
// every exit path, including parse failure.
type Downloader struct {
	client *http.Client
	dir    string
	logger *slog.Logger
}

// NewDownloader creates a Downloader writing into dir (created on first use).
func NewDownloader(dir string, timeout time.Duration, logger *slog.Logger) *Downloader {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		client: &http.Client{Timeout: timeout},
		dir:    dir,
		logger: logger,
	}
}

// Fetch downloads url to a temp file and returns its path plus a cleanup
// func. cleanup is safe to call multiple times and never fails loudly; a
// leftover temp file is a warning, not an error.
func (d *Downloader) Fetch(ctx context.Context, url string) (string, func(), error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("%w: create temp dir: %v", ErrDownloadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("%w: build request: %v", ErrDownloadFailed, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("%w: unexpected status %d", ErrDownloadFailed, resp.StatusCode)
	}

	path := filepath.Join(d.dir, filenameFor(url))
	f, err := os.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: create file: %v", ErrDownloadFailed, err)
	}

	n, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err != nil || closeErr != nil {
		os.Remove(path)
		if err == nil {
			err = closeErr
		}
		return "", nil, fmt.Errorf("%w: write body: %v", ErrDownloadFailed, err)
	}

	d.logger.Debug("gazette: downloaded candidate", "url", url, "bytes", n, "path", path)

	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("gazette: temp file cleanup failed", "path", path, "error", err)
		}
	}
	return path, cleanup, nil
}

// Purge removes every leftover file in the download dir. Called between
// units so a crashed run never accumulates stale documents.
func (d *Downloader) Purge() {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			os.Remove(filepath.Join(d.dir, e.Name()))
		}
	}
}

// filenameFor derives a stable name from the portal's download URL shape
// (.../portal/edicoes/download/<edition>/<page>).
func filenameFor(url string) string {
	parts := strings.Split(strings.TrimRight(url, "/"), "/")
	if len(parts) >= 2 {
		return fmt.Sprintf("edicao_%s_pag_%s.pdf", parts[len(parts)-2], parts[len(parts)-1])
	}
	return fmt.Sprintf("download_%d.pdf", time.Now().UnixNano())
}
