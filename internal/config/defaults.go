package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"study-song/internal/domain"
)

const (
	// DefaultBackendBase is used when neither settings nor env name a backend.
	DefaultBackendBase = "http://localhost:8000"

	defaultStageTimeoutSeconds = 600
)

// DefaultSettings returns baseline configuration for first launch. Environment
// variables (optionally loaded from .env at startup) override the built-ins.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		BackendBase:         envStr("STUDYSONG_BACKEND_BASE", DefaultBackendBase),
		WaitForAudio:        envBool("STUDYSONG_WAIT_FOR_AUDIO", true),
		InputMode:           domain.InputMode(envStr("STUDYSONG_INPUT_MODE", string(domain.InputModeTextOrFiles))),
		DownloadDir:         envStr("STUDYSONG_DOWNLOAD_DIR", filepath.Join(homeDir, "Music", "Study Songs")),
		StageTimeoutSeconds: envInt("STUDYSONG_STAGE_TIMEOUT", defaultStageTimeoutSeconds),
	}
}

// Normalize trims user input and fills empty fields from defaults.
func Normalize(settings domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	settings.BackendBase = strings.TrimRight(strings.TrimSpace(settings.BackendBase), "/")
	if settings.BackendBase == "" {
		settings.BackendBase = defaults.BackendBase
	}
	settings.DownloadDir = strings.TrimSpace(settings.DownloadDir)
	if settings.DownloadDir == "" {
		settings.DownloadDir = defaults.DownloadDir
	}
	switch settings.InputMode {
	case domain.InputModeTextOrFiles, domain.InputModeSingleImage:
	default:
		settings.InputMode = domain.InputModeTextOrFiles
	}
	if settings.StageTimeoutSeconds < 0 {
		settings.StageTimeoutSeconds = 0
	}
	return settings
}

func envStr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
