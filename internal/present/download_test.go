package present

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

type fileOps struct {
	created []string
	removed []string
}

func (f *fileOps) createTemp(dir string) createTempFunc {
	return func(_, pattern string) (*os.File, error) {
		file, err := os.CreateTemp(dir, pattern)
		if err == nil {
			f.created = append(f.created, file.Name())
		}
		return file, err
	}
}

func (f *fileOps) remove(path string) error {
	f.removed = append(f.removed, path)
	return os.Remove(path)
}

func audioServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

// TestDownloadSavesAndRemovesTemp verifies the happy path.
func TestDownloadSavesAndRemovesTemp(t *testing.T) {
	server := audioServer(t, http.StatusOK, "ID3-audio")
	dir := t.TempDir()
	ops := &fileOps{}
	d := NewDownloaderForTests(server.Client(), ops.createTemp(dir), ops.remove, nil)

	dest := filepath.Join(dir, "songs", "learning-song-1.mp3")
	if err := d.Download(context.Background(), server.URL+"/a.mp3", dest); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(data) != "ID3-audio" {
		t.Fatalf("content = %q", data)
	}
	if len(ops.created) != 1 || len(ops.removed) != 1 || ops.created[0] != ops.removed[0] {
		t.Fatalf("created = %v removed = %v, want one each for the same file", ops.created, ops.removed)
	}
	if _, err := os.Stat(ops.created[0]); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temporary file still present: %v", err)
	}
}

// TestDownloadSaveFailureStillRemovesTemp checks cleanup when saving fails.
func TestDownloadSaveFailureStillRemovesTemp(t *testing.T) {
	server := audioServer(t, http.StatusOK, "ID3-audio")
	dir := t.TempDir()
	ops := &fileOps{}
	saveErr := errors.New("disk full")
	d := NewDownloaderForTests(server.Client(), ops.createTemp(dir), ops.remove, func(string, string) error {
		return saveErr
	})

	err := d.Download(context.Background(), server.URL+"/a.mp3", filepath.Join(dir, "out.mp3"))
	var downloadErr *DownloadError
	if !errors.As(err, &downloadErr) {
		t.Fatalf("err = %v, want *DownloadError", err)
	}
	if !errors.Is(err, saveErr) {
		t.Fatalf("err = %v, want wrapped %v", err, saveErr)
	}
	if len(ops.created) != 1 || len(ops.removed) != 1 {
		t.Fatalf("created = %v removed = %v, want one each", ops.created, ops.removed)
	}
}

// TestDownloadTruncatedBodyRemovesTemp checks a failed body read still removes the temp file once.
func TestDownloadTruncatedBodyRemovesTemp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1024")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ID3-partial"))
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		hijacker, ok := w.(http.Hijacker)
		if !ok {
			t.Error("response writer cannot hijack")
			return
		}
		conn, _, err := hijacker.Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		_ = conn.Close()
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	ops := &fileOps{}
	saved := false
	d := NewDownloaderForTests(server.Client(), ops.createTemp(dir), ops.remove, func(string, string) error {
		saved = true
		return nil
	})

	err := d.Download(context.Background(), server.URL+"/a.mp3", filepath.Join(dir, "out.mp3"))
	var downloadErr *DownloadError
	if !errors.As(err, &downloadErr) {
		t.Fatalf("err = %v, want *DownloadError", err)
	}
	if saved {
		t.Fatal("truncated download must not be saved")
	}
	if len(ops.created) != 1 || len(ops.removed) != 1 || ops.created[0] != ops.removed[0] {
		t.Fatalf("created = %v removed = %v, want one each for the same file", ops.created, ops.removed)
	}
	if _, err := os.Stat(ops.created[0]); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temporary file still present: %v", err)
	}
}

// TestDownloadHTTPFailure checks non-200 responses create no temp file.
func TestDownloadHTTPFailure(t *testing.T) {
	server := audioServer(t, http.StatusNotFound, "missing")
	dir := t.TempDir()
	ops := &fileOps{}
	d := NewDownloaderForTests(server.Client(), ops.createTemp(dir), ops.remove, nil)

	err := d.Download(context.Background(), server.URL+"/a.mp3", filepath.Join(dir, "out.mp3"))
	var downloadErr *DownloadError
	if !errors.As(err, &downloadErr) {
		t.Fatalf("err = %v, want *DownloadError", err)
	}
	if downloadErr.URL != server.URL+"/a.mp3" {
		t.Fatalf("url = %q", downloadErr.URL)
	}
	if len(ops.created) != 0 || len(ops.removed) != 0 {
		t.Fatalf("created = %v removed = %v, want none", ops.created, ops.removed)
	}
}

// TestDownloadRejectsEmptyDestination checks input validation.
func TestDownloadRejectsEmptyDestination(t *testing.T) {
	d := NewDownloader(nil)
	if err := d.Download(context.Background(), "http://x/a.mp3", " "); err == nil {
		t.Fatal("expected error for empty destination")
	}
}
