package selection

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/wailsapp/mimetype"
	"golang.org/x/sync/errgroup"

	"study-song/internal/domain"
)

const inspectConcurrency = 4

// Classify maps a MIME type to its quota class.
func Classify(mimeType string) domain.MimeClass {
	base := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	switch {
	case strings.HasPrefix(base, "image/"):
		return domain.MimeClassImage
	case base == "application/pdf":
		return domain.MimeClassPDF
	default:
		return domain.MimeClassOther
	}
}

// Inspector turns filesystem paths into InputFiles.
type Inspector struct {
	stat       func(name string) (os.FileInfo, error)
	detect     func(path string) (string, error)
	countPages func(path string) (int, error)
}

// NewInspector builds an inspector using content sniffing and pdfcpu.
func NewInspector() *Inspector {
	return &Inspector{
		stat:       os.Stat,
		detect:     detectMimeType,
		countPages: api.PageCountFile,
	}
}

// Inspect builds InputFiles for paths concurrently. The result keeps the order
// of paths; the first failure aborts the whole batch.
func (in *Inspector) Inspect(ctx context.Context, paths []string) ([]domain.InputFile, error) {
	files := make([]domain.InputFile, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inspectConcurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file, err := in.inspectOne(path)
			if err != nil {
				return err
			}
			files[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (in *Inspector) inspectOne(path string) (domain.InputFile, error) {
	info, err := in.stat(path)
	if err != nil {
		return domain.InputFile{}, fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.InputFile{}, fmt.Errorf("%s is a directory", path)
	}

	mimeType, err := in.detect(path)
	if err != nil {
		return domain.InputFile{}, fmt.Errorf("detect type of %s: %w", path, err)
	}

	file := domain.InputFile{
		Name:     filepath.Base(path),
		Path:     path,
		MimeType: mimeType,
		Class:    Classify(mimeType),
		Size:     info.Size(),
	}

	if file.Class == domain.MimeClassPDF && in.countPages != nil {
		pages, err := in.countPages(path)
		if err != nil {
			log.Printf("selection: page count for %s: %v", file.Name, err)
		} else {
			file.Pages = pages
		}
	}
	return file, nil
}

// detectMimeType sniffs content and falls back to the file extension when the
// content is not recognized.
func detectMimeType(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	detected := m.String()
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = strings.TrimSpace(detected[:i])
	}
	if detected != "application/octet-stream" && detected != "text/plain" {
		return detected, nil
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		return byExt, nil
	}
	return detected, nil
}

// NewInspectorForTests constructs an inspector with injectable dependencies.
func NewInspectorForTests(
	stat func(name string) (os.FileInfo, error),
	detect func(path string) (string, error),
	countPages func(path string) (int, error),
) *Inspector {
	return &Inspector{
		stat:       stat,
		detect:     detect,
		countPages: countPages,
	}
}
