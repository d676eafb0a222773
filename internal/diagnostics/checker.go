package diagnostics

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"study-song/internal/domain"
)

const defaultHealthTimeout = 5 * time.Second

// HealthFunc probes the backend at base.
type HealthFunc func(ctx context.Context, base string) error

// Checker validates the configured backend and download directory.
type Checker struct {
	health        HealthFunc
	mkdirAll      func(string, os.FileMode) error
	createTemp    func(string, string) (*os.File, error)
	remove        func(string) error
	healthTimeout time.Duration
}

// NewChecker builds a checker using real OS dependencies and health probe.
func NewChecker(health HealthFunc) *Checker {
	return &Checker{
		health:        health,
		mkdirAll:      os.MkdirAll,
		createTemp:    os.CreateTemp,
		remove:        os.Remove,
		healthTimeout: defaultHealthTimeout,
	}
}

// Run executes all readiness checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkBackendURL(settings.BackendBase),
	}
	if items[0].Status == domain.DiagnosticStatusPass {
		items = append(items, c.checkBackendHealth(ctx, settings.BackendBase))
	}
	items = append(items, c.checkDownloadDir(settings.DownloadDir))

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		BackendBase: settings.BackendBase,
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkBackendURL validates the configured base URL shape.
func (c *Checker) checkBackendURL(base string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "backend_url",
		Name: "Backend URL",
	}

	if strings.TrimSpace(base) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Backend URL is empty."
		item.Hint = "Set the address of the study-song service, for example http://localhost:8000."
		return item
	}

	parsed, err := url.Parse(base)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Backend URL is not a valid http(s) address: %s", base)
		item.Hint = "Use a full address including scheme and host."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Using %s", base)
	return item
}

// checkBackendHealth calls the backend health endpoint.
func (c *Checker) checkBackendHealth(ctx context.Context, base string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "backend_health",
		Name: "Backend service",
	}

	if c.health == nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No health probe is configured."
		return item
	}

	if c.healthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.healthTimeout)
		defer cancel()
	}

	if err := c.health(ctx, base); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Backend is not reachable: %v", err)
		item.Hint = "Start the backend service or update the backend URL in settings."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = "Backend answered the health check."
	return item
}

// checkDownloadDir validates download directory existence and write access.
func (c *Checker) checkDownloadDir(downloadDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "download_dir",
		Name: "Download directory",
	}

	if strings.TrimSpace(downloadDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Download directory is empty."
		item.Hint = "Set a directory where downloaded songs are suggested by default."
		return item
	}

	if err := c.mkdirAll(downloadDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create download directory: %s", downloadDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(downloadDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Download directory is not writable: %s", downloadDir)
		item.Hint = "Choose a writable directory for saved songs."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", downloadDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	health HealthFunc,
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		health:        health,
		mkdirAll:      mkdirAll,
		createTemp:    createTemp,
		remove:        remove,
		healthTimeout: defaultHealthTimeout,
	}
}
