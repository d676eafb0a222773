// Package encoding turns selected files into transport payloads.
package encoding

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"study-song/internal/domain"
)

// ErrUnreadableFile is returned when a selected file cannot be read.
var ErrUnreadableFile = errors.New("cannot read file")

// Encoder reads files and produces base64 data URLs.
type Encoder struct {
	readFile func(name string) ([]byte, error)
	open     func(name string) (io.ReadCloser, error)
}

// NewEncoder builds an encoder backed by the filesystem.
func NewEncoder() *Encoder {
	return &Encoder{
		readFile: os.ReadFile,
		open: func(name string) (io.ReadCloser, error) {
			return os.Open(name)
		},
	}
}

// Encode reads file in the background and returns a data URL
// ("data:<mime>;base64,<payload>"). It returns early if ctx ends first.
func (e *Encoder) Encode(ctx context.Context, file domain.InputFile) (string, error) {
	type readResult struct {
		data []byte
		err  error
	}

	done := make(chan readResult, 1)
	go func() {
		data, err := e.readFile(file.Path)
		done <- readResult{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("%w %s: %v", ErrUnreadableFile, file.Name, res.err)
		}
		return DataURL(file.MimeType, res.data), nil
	}
}

// Open returns a reader over file contents, mapping failures to ErrUnreadableFile.
func (e *Encoder) Open(file domain.InputFile) (io.ReadCloser, error) {
	rc, err := e.open(file.Path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrUnreadableFile, file.Name, err)
	}
	return &unreadableReader{rc: rc, name: file.Name}, nil
}

// DataURL formats raw bytes as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// unreadableReader tags mid-read failures (revoked permissions, I/O errors).
type unreadableReader struct {
	rc   io.ReadCloser
	name string
}

func (r *unreadableReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w %s: %v", ErrUnreadableFile, r.name, err)
	}
	return n, err
}

func (r *unreadableReader) Close() error {
	return r.rc.Close()
}

// NewEncoderForTests constructs an encoder with injectable file access.
func NewEncoderForTests(
	readFile func(name string) ([]byte, error),
	open func(name string) (io.ReadCloser, error),
) *Encoder {
	return &Encoder{readFile: readFile, open: open}
}
