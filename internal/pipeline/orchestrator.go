// Package pipeline sequences extraction, mnemonic planning and song
// generation for one study-song run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"study-song/internal/backend"
	"study-song/internal/budget"
	"study-song/internal/domain"
	"study-song/internal/selection"
)

// Status lines shown while a run progresses.
const (
	StatusValidating      = "Checking input..."
	StatusUsingText       = "Using the entered text..."
	StatusExtractingFiles = "Analyzing files..."
	StatusExtractingImage = "Analyzing image..."
	StatusPlanning        = "Writing lyrics and melody guide..."
	StatusComposing       = "Generating song..."
	StatusDoneWithAudio   = "Done! Play your song."
	StatusDoneNoAudio     = "Generation finished, but no audio URL was found in the response."
)

var (
	// ErrEmptyExtraction is returned when extraction produced only whitespace.
	ErrEmptyExtraction = errors.New("could not extract any content from the files")
	// ErrNoImage is returned by the single-image source when no image is selected.
	ErrNoImage = errors.New("select an image to analyze")
	// ErrStageTimeout is returned when a stage call exceeds the stage timeout.
	ErrStageTimeout = errors.New("stage timed out")
)

// Source decides how study text is obtained when no free text is given.
type Source int

const (
	// SourceTextOrFiles uploads the whole selection as a multipart request.
	SourceTextOrFiles Source = iota
	// SourceSingleImage encodes the first selected image and sends it as JSON.
	SourceSingleImage
)

// SourceForMode maps the persisted input mode to a Source.
func SourceForMode(mode domain.InputMode) Source {
	if mode == domain.InputModeSingleImage {
		return SourceSingleImage
	}
	return SourceTextOrFiles
}

// StageError is a failure of one backend stage. Detail carries the message
// shown to the user, including the service's response body when there is one.
type StageError struct {
	Stage  domain.RunState `json:"stage"`
	Detail string          `json:"detail"`
	Err    error           `json:"-"`
}

// Error formats stage failures for logs and UI.
func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s failed: %s", stageLabel(e.Stage), e.Detail)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Backend is the set of service calls a run needs.
type Backend interface {
	ExtractFromFiles(ctx context.Context, files []domain.InputFile) (string, error)
	ExtractFromImage(ctx context.Context, dataURL string) (string, error)
	MnemonicPlan(ctx context.Context, studyText string) (string, error)
	GenerateSong(ctx context.Context, req backend.SongRequest) (backend.SongResponse, error)
}

// ImageEncoder turns one file into a data URL.
type ImageEncoder interface {
	Encode(ctx context.Context, file domain.InputFile) (string, error)
}

// Request contains the inputs read at validation time and progress callbacks.
type Request struct {
	Text         string
	Files        []domain.InputFile
	WaitForAudio bool
	Source       Source
	StageTimeout time.Duration

	OnStage     func(state domain.RunState, status string)
	OnStudyText func(text string)
	OnPlan      func(plan string)
}

// Result holds everything a run produced. On failure it keeps the outputs of
// the stages that completed.
type Result struct {
	StudyText    string
	MnemonicPlan string
	AudioURLs    []string
	TaskID       string
	SongStatus   string
	Extracted    bool
}

// Orchestrator runs the extraction, plan and song stages in order.
type Orchestrator struct {
	backend Backend
	encoder ImageEncoder
}

// New builds an orchestrator.
func New(b Backend, encoder ImageEncoder) *Orchestrator {
	return &Orchestrator{backend: b, encoder: encoder}
}

// Run executes one run to completion. Every stage reports its status through
// OnStage before the corresponding network call is made.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	var result Result

	emitStage(req.OnStage, domain.RunStateValidating, StatusValidating)
	text := strings.TrimSpace(req.Text)
	if err := budget.ValidateForSubmission(text, len(req.Files)); err != nil {
		return result, err
	}

	if text != "" {
		emitStage(req.OnStage, domain.RunStatePlanning, StatusUsingText)
		result.StudyText = text
	} else {
		studyText, err := o.extract(ctx, req)
		if err != nil {
			return result, err
		}
		result.StudyText = studyText
		result.Extracted = true
	}
	emitText(req.OnStudyText, result.StudyText)

	emitStage(req.OnStage, domain.RunStatePlanning, StatusPlanning)
	plan, err := callStage(ctx, req.StageTimeout, domain.RunStatePlanning, func(ctx context.Context) (string, error) {
		return o.backend.MnemonicPlan(ctx, result.StudyText)
	})
	if err != nil {
		return result, err
	}
	result.MnemonicPlan = plan
	emitText(req.OnPlan, plan)

	emitStage(req.OnStage, domain.RunStateComposing, StatusComposing)
	song, err := callStage(ctx, req.StageTimeout, domain.RunStateComposing, func(ctx context.Context) (backend.SongResponse, error) {
		return o.backend.GenerateSong(ctx, backend.SongRequest{
			StudyText:    result.StudyText,
			MnemonicPlan: result.MnemonicPlan,
			WaitForAudio: req.WaitForAudio,
		})
	})
	if err != nil {
		return result, err
	}
	result.AudioURLs = song.AudioURLs
	if result.AudioURLs == nil {
		result.AudioURLs = []string{}
	}
	result.TaskID = song.TaskID
	result.SongStatus = song.Status
	return result, nil
}

// FinalStatus returns the terminal status line for a successful result.
func FinalStatus(result Result) string {
	if len(result.AudioURLs) > 0 {
		return StatusDoneWithAudio
	}
	return StatusDoneNoAudio
}

// FailureStatus returns the status line shown for a failed run.
func FailureStatus(err error) string {
	return "Error: " + err.Error()
}

// extract obtains study text from the selection according to req.Source.
func (o *Orchestrator) extract(ctx context.Context, req Request) (string, error) {
	var raw string
	var err error

	switch req.Source {
	case SourceSingleImage:
		image, ok := firstImage(req.Files)
		if !ok {
			return "", ErrNoImage
		}
		emitStage(req.OnStage, domain.RunStateExtracting, StatusExtractingImage)
		raw, err = callStage(ctx, req.StageTimeout, domain.RunStateExtracting, func(ctx context.Context) (string, error) {
			dataURL, err := o.encoder.Encode(ctx, image)
			if err != nil {
				return "", err
			}
			return o.backend.ExtractFromImage(ctx, dataURL)
		})
	default:
		emitStage(req.OnStage, domain.RunStateExtracting, StatusExtractingFiles)
		raw, err = callStage(ctx, req.StageTimeout, domain.RunStateExtracting, func(ctx context.Context) (string, error) {
			return o.backend.ExtractFromFiles(ctx, req.Files)
		})
	}
	if err != nil {
		return "", err
	}

	studyText := strings.TrimSpace(raw)
	if studyText == "" {
		return "", ErrEmptyExtraction
	}
	return studyText, nil
}

// callStage runs fn under the optional stage deadline and wraps failures in
// a *StageError for stage.
func callStage[T any](ctx context.Context, timeout time.Duration, stage domain.RunState, fn func(ctx context.Context) (T, error)) (T, error) {
	stageCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := fn(stageCtx)
	if err == nil {
		return out, nil
	}

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w after %s: %w", ErrStageTimeout, timeout, err)
	}
	var zero T
	return zero, &StageError{
		Stage:  stage,
		Detail: err.Error(),
		Err:    err,
	}
}

func firstImage(files []domain.InputFile) (domain.InputFile, bool) {
	for _, f := range files {
		class := f.Class
		if class == "" {
			class = selection.Classify(f.MimeType)
		}
		if class == domain.MimeClassImage {
			return f, true
		}
	}
	return domain.InputFile{}, false
}

func stageLabel(stage domain.RunState) string {
	switch stage {
	case domain.RunStateExtracting:
		return "extraction"
	case domain.RunStatePlanning:
		return "mnemonic plan"
	case domain.RunStateComposing:
		return "song generation"
	default:
		return string(stage)
	}
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(domain.RunState, string), state domain.RunState, status string) {
	if cb != nil {
		cb(state, status)
	}
}

// emitText forwards intermediate artifacts when callback is configured.
func emitText(cb func(string), text string) {
	if cb != nil {
		cb(text)
	}
}
