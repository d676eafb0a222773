package domain

import "time"

// RunState tracks each pipeline stage for a single song generation run.
type RunState string

const (
	RunStateIdle       RunState = "idle"
	RunStateValidating RunState = "validating"
	RunStateExtracting RunState = "extracting"
	RunStatePlanning   RunState = "planning"
	RunStateComposing  RunState = "composing"
	RunStateSucceeded  RunState = "succeeded"
	RunStateFailed     RunState = "failed"
)

// MimeClass groups selected files for quota accounting.
type MimeClass string

const (
	MimeClassImage MimeClass = "image"
	MimeClassPDF   MimeClass = "pdf"
	MimeClassOther MimeClass = "other"
)

// InputMode selects how study text is obtained when no free text is given.
type InputMode string

const (
	InputModeTextOrFiles InputMode = "text-or-files"
	InputModeSingleImage InputMode = "single-image"
)

// InputFile is one selected source file. It is never mutated after selection.
type InputFile struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	MimeType string    `json:"mimeType"`
	Class    MimeClass `json:"class"`
	Size     int64     `json:"size"`
	Pages    int       `json:"pages,omitempty"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	BackendBase         string    `json:"backendBase"`
	WaitForAudio        bool      `json:"waitForAudio"`
	InputMode           InputMode `json:"inputMode"`
	DownloadDir         string    `json:"downloadDir"`
	StageTimeoutSeconds int       `json:"stageTimeoutSeconds"`
}

// Run stores the current run identity, lifecycle state and status line.
type Run struct {
	ID     string   `json:"id"`
	State  RunState `json:"state"`
	Status string   `json:"status"`
}

// DiagnosticStatus indicates whether a single startup check passed.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticItem is one readiness check result with optional hint.
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

// DiagnosticReport aggregates readiness checks against the configured backend.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	BackendBase string           `json:"backendBase"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}
