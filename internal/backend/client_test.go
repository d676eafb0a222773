package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"study-song/internal/domain"
	"study-song/internal/encoding"
)

// TestExtractFromFilesSendsRepeatedFilesField checks the multipart contract.
func TestExtractFromFilesSendsRepeatedFilesField(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "a.png")
	second := filepath.Join(root, "b.pdf")
	mustWriteFile(t, first, "image-bytes")
	mustWriteFile(t, second, "pdf-bytes")

	var names []string
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract-from-files" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		for _, fh := range r.MultipartForm.File["files"] {
			names = append(names, fh.Filename)
			f, _ := fh.Open()
			data, _ := io.ReadAll(f)
			f.Close()
			bodies = append(bodies, string(data))
		}
		writeJSON(w, map[string]string{"study_text": "  Hello World  "})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", encoding.NewEncoder())
	text, err := client.ExtractFromFiles(context.Background(), []domain.InputFile{
		{Name: "a.png", Path: first, MimeType: "image/png"},
		{Name: "b.pdf", Path: second, MimeType: "application/pdf"},
	})
	if err != nil {
		t.Fatalf("ExtractFromFiles() error = %v", err)
	}
	if text != "  Hello World  " {
		t.Fatalf("text = %q, want raw service text", text)
	}
	if strings.Join(names, ",") != "a.png,b.pdf" {
		t.Fatalf("uploaded names = %v", names)
	}
	if strings.Join(bodies, ",") != "image-bytes,pdf-bytes" {
		t.Fatalf("uploaded bodies = %v", bodies)
	}
}

// TestExtractFromFilesUnreadableFile checks no request is made on read failure.
func TestExtractFromFilesUnreadableFile(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewClient(srv.URL, encoding.NewEncoder())
	_, err := client.ExtractFromFiles(context.Background(), []domain.InputFile{
		{Name: "gone.png", Path: filepath.Join(t.TempDir(), "gone.png")},
	})
	if !errors.Is(err, encoding.ErrUnreadableFile) {
		t.Fatalf("err = %v, want %v", err, encoding.ErrUnreadableFile)
	}
	if called {
		t.Fatal("backend should not be called when a file cannot be read")
	}
}

// TestExtractFromImageSendsDataURL checks the single-image JSON contract.
func TestExtractFromImageSendsDataURL(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract-text" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, map[string]string{"study_text": "cells"})
	}))
	defer srv.Close()

	text, err := NewClient(srv.URL, nil).ExtractFromImage(context.Background(), "data:image/png;base64,aGk=")
	if err != nil {
		t.Fatalf("ExtractFromImage() error = %v", err)
	}
	if text != "cells" || got["image_base64"] != "data:image/png;base64,aGk=" {
		t.Fatalf("text = %q, request = %v", text, got)
	}
}

// TestMnemonicPlanStatusErrorCarriesBody checks non-2xx handling.
func TestMnemonicPlanStatusErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).MnemonicPlan(context.Background(), "text")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError || statusErr.Body != "server error" {
		t.Fatalf("status error = %+v", statusErr)
	}
	if !strings.Contains(err.Error(), "/mnemonic-plan request failed (500): server error") {
		t.Fatalf("message = %q", err.Error())
	}
}

// TestGenerateSongRoundTrip checks the song request and response fields.
func TestGenerateSongRoundTrip(t *testing.T) {
	var got SongRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, map[string]any{
			"task_id":    "t-1",
			"audio_urls": []string{"http://x/a.mp3", "http://x/b.mp3"},
			"status":     "completed",
		})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, nil).GenerateSong(context.Background(), SongRequest{
		StudyText:    "study",
		MnemonicPlan: "plan",
		WaitForAudio: true,
	})
	if err != nil {
		t.Fatalf("GenerateSong() error = %v", err)
	}
	if got.StudyText != "study" || got.MnemonicPlan != "plan" || !got.WaitForAudio {
		t.Fatalf("request = %+v", got)
	}
	if resp.TaskID != "t-1" || len(resp.AudioURLs) != 2 || resp.AudioURLs[1] != "http://x/b.mp3" {
		t.Fatalf("response = %+v", resp)
	}
}

// TestHealth checks the readiness probe.
func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, nil).Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
