package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"study-song/internal/config"
	"study-song/internal/domain"
)

// FixDiagnostic applies a remediation for one failed diagnostic item and
// returns the refreshed report.
func (a *App) FixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = config.Normalize(settings)

	settingsChanged := false
	var fixErr error

	switch id {
	case "backend_url":
		settings, settingsChanged = fixBackendURL(settings)
	case "download_dir":
		settings, settingsChanged, fixErr = fixDownloadDir(settings)
	case "backend_health":
		fixErr = fmt.Errorf("start the backend service at %s and refresh diagnostics", settings.BackendBase)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.applySettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.applySettings(settings)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

// fixBackendURL restores the default backend when the configured one has no scheme.
func fixBackendURL(settings domain.Settings) (domain.Settings, bool) {
	base := strings.TrimSpace(settings.BackendBase)
	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		return settings, false
	}
	if base == "" {
		settings.BackendBase = config.DefaultBackendBase
	} else {
		settings.BackendBase = "http://" + base
	}
	return settings, true
}

func fixDownloadDir(settings domain.Settings) (domain.Settings, bool, error) {
	downloadDir := strings.TrimSpace(settings.DownloadDir)
	changed := false
	if downloadDir == "" {
		downloadDir = config.DefaultSettings().DownloadDir
		settings.DownloadDir = downloadDir
		changed = true
	}

	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return settings, changed, fmt.Errorf("create download directory %s: %w", downloadDir, err)
	}

	return settings, changed, nil
}
