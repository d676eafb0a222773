// Package backend talks to the study-song extraction, plan and song services.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"study-song/internal/domain"
)

const (
	pathExtractFiles = "/extract-from-files"
	pathExtractImage = "/extract-text"
	pathPlan         = "/mnemonic-plan"
	pathSong         = "/generate-song"
	pathHealth       = "/health"
)

// StatusError is a non-2xx answer from the backend. Body holds the raw
// response text so it can be shown to the user.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed (%d): %s", e.Path, e.StatusCode, e.Body)
}

// FileOpener opens selected files for upload.
type FileOpener interface {
	Open(file domain.InputFile) (io.ReadCloser, error)
}

// SongRequest is the /generate-song request body.
type SongRequest struct {
	StudyText    string `json:"study_text"`
	MnemonicPlan string `json:"mnemonic_plan"`
	WaitForAudio bool   `json:"wait_for_audio"`
}

// SongResponse is the /generate-song response body.
type SongResponse struct {
	TaskID    string   `json:"task_id,omitempty"`
	AudioURLs []string `json:"audio_urls"`
	Status    string   `json:"status,omitempty"`
}

type studyTextResponse struct {
	StudyText string `json:"study_text"`
}

type planResponse struct {
	MnemonicPlan string `json:"mnemonic_plan"`
}

// Client is a JSON-over-HTTP client bound to one backend origin.
type Client struct {
	baseURL string
	files   FileOpener
	http    *http.Client
}

// NewClient creates a backend client. Request deadlines come from the caller's
// context; the HTTP client itself has no timeout.
func NewClient(baseURL string, files FileOpener) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		files:   files,
		http:    &http.Client{},
	}
}

// ExtractFromFiles uploads every file as a repeated "files" form field and
// returns the extracted study text as sent by the service.
func (c *Client) ExtractFromFiles(ctx context.Context, files []domain.InputFile) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		if err := c.writeFilePart(mw, f); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finish multipart body: %w", err)
	}

	var out studyTextResponse
	if err := c.post(ctx, pathExtractFiles, mw.FormDataContentType(), &body, &out); err != nil {
		return "", err
	}
	return out.StudyText, nil
}

// ExtractFromImage sends one base64 data URL and returns the extracted text.
func (c *Client) ExtractFromImage(ctx context.Context, dataURL string) (string, error) {
	var out studyTextResponse
	if err := c.postJSON(ctx, pathExtractImage, map[string]string{"image_base64": dataURL}, &out); err != nil {
		return "", err
	}
	return out.StudyText, nil
}

// MnemonicPlan asks for a lyrics/melody guide for studyText.
func (c *Client) MnemonicPlan(ctx context.Context, studyText string) (string, error) {
	var out planResponse
	if err := c.postJSON(ctx, pathPlan, map[string]string{"study_text": studyText}, &out); err != nil {
		return "", err
	}
	return out.MnemonicPlan, nil
}

// GenerateSong requests song synthesis.
func (c *Client) GenerateSong(ctx context.Context, req SongRequest) (SongResponse, error) {
	var out SongResponse
	if err := c.postJSON(ctx, pathSong, req, &out); err != nil {
		return SongResponse{}, err
	}
	return out, nil
}

// Health checks that the backend answers GET /health with 200.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathHealth, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", pathHealth, err)
	}
	defer resp.Body.Close()
	return checkStatus(pathHealth, resp)
}

func (c *Client) writeFilePart(mw *multipart.Writer, f domain.InputFile) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(f.Name)))
	contentType := f.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create form part: %w", err)
	}

	rc, err := c.files.Open(f)
	if err != nil {
		return err
	}
	defer rc.Close()

	if _, err := io.Copy(part, rc); err != nil {
		return err
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.post(ctx, path, "application/json", bytes.NewReader(body), out)
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(path, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// checkStatus turns non-2xx responses into *StatusError carrying the body text.
func checkStatus(path string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	bodyBytes, _ := io.ReadAll(resp.Body)
	return &StatusError{
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(bodyBytes)),
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
