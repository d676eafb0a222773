package present

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultDownloadTimeout = 10 * time.Minute

// DownloadError reports a failed save of one audio item.
type DownloadError struct {
	URL         string
	Destination string
	Err         error
}

// Error formats download failures for dialogs and logs.
func (e *DownloadError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

// Unwrap exposes the underlying error.
func (e *DownloadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type (
	createTempFunc func(dir, pattern string) (*os.File, error)
	removeFunc     func(path string) error
	saveFunc       func(tmpPath, destination string) error
)

// Downloader fetches an audio locator into a temporary file and saves it to
// the chosen destination.
type Downloader struct {
	client     *http.Client
	createTemp createTempFunc
	remove     removeFunc
	save       saveFunc
	timeout    time.Duration
}

// NewDownloader creates a downloader. A nil client uses http.DefaultClient.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{
		client:     client,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		save:       saveFile,
		timeout:    defaultDownloadTimeout,
	}
}

// NewDownloaderForTests allows injecting file operations in tests.
func NewDownloaderForTests(client *http.Client, createTemp createTempFunc, remove removeFunc, save saveFunc) *Downloader {
	d := NewDownloader(client)
	if createTemp != nil {
		d.createTemp = createTemp
	}
	if remove != nil {
		d.remove = remove
	}
	if save != nil {
		d.save = save
	}
	return d
}

// Download fetches url and writes it to destination. The temporary file is
// removed exactly once on every path after it was created.
func (d *Downloader) Download(ctx context.Context, url, destination string) error {
	fail := func(err error) error {
		return &DownloadError{URL: url, Destination: destination, Err: err}
	}

	url = strings.TrimSpace(url)
	destination = strings.TrimSpace(destination)
	if url == "" {
		return fail(errors.New("audio url is empty"))
	}
	if destination == "" {
		return fail(errors.New("destination is empty"))
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", "study-song")

	resp, err := d.client.Do(req)
	if err != nil {
		return fail(fmt.Errorf("request download: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("unexpected HTTP status: %s", resp.Status))
	}

	file, err := d.createTemp("", "study-song-*.mp3")
	if err != nil {
		return fail(fmt.Errorf("create temporary file: %w", err))
	}
	tmpPath := file.Name()
	defer func() {
		_ = d.remove(tmpPath)
	}()

	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		return fail(fmt.Errorf("write temporary file: %w", copyErr))
	}
	if closeErr != nil {
		return fail(fmt.Errorf("close temporary file: %w", closeErr))
	}

	if err := d.save(tmpPath, destination); err != nil {
		return fail(err)
	}
	return nil
}

// saveFile copies tmpPath next to destination and moves it into place.
func saveFile(tmpPath, destination string) error {
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return fmt.Errorf("prepare destination directory: %w", err)
	}

	src, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("open temporary file: %w", err)
	}
	defer src.Close()

	partPath := destination + ".download"
	dst, err := os.OpenFile(partPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}

	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil {
		_ = os.Remove(partPath)
		return fmt.Errorf("write destination file: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(partPath)
		return fmt.Errorf("close destination file: %w", closeErr)
	}

	if err := os.Remove(destination); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = os.Remove(partPath)
		return fmt.Errorf("remove old destination file: %w", err)
	}
	if err := os.Rename(partPath, destination); err != nil {
		_ = os.Remove(partPath)
		return fmt.Errorf("move downloaded file into place: %w", err)
	}
	return nil
}
