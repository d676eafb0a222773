package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"study-song/internal/backend"
	"study-song/internal/budget"
	"study-song/internal/config"
	"study-song/internal/diagnostics"
	"study-song/internal/domain"
	"study-song/internal/encoding"
	"study-song/internal/jobs"
	"study-song/internal/pipeline"
	"study-song/internal/present"
	"study-song/internal/selection"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Events pushed to the frontend.
const (
	eventRun       = "run:event"
	eventControls  = "controls:state"
	eventSelection = "selection:changed"
	eventResults   = "results:view"
)

var studyDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Images and PDF",
		Pattern:     "*.png;*.jpg;*.jpeg;*.gif;*.webp;*.bmp;*.heic;*.pdf",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, selection, the run pipeline and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Selection   *selection.Store
	Inspector   fileInspector
	Gate        *jobs.Gate
	Jobs        *jobs.Manager
	Presenter   *present.Presenter
	Pipeline    pipelineRunner
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	newPipeline func(settings domain.Settings) pipelineRunner

	mu         sync.Mutex
	events     *jobs.EventBus
	runtimeCtx context.Context
}

// pipelineRunner isolates the song pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// fileInspector turns picked paths into selection entries.
type fileInspector interface {
	Inspect(ctx context.Context, paths []string) ([]domain.InputFile, error)
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".study-song", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker(func(ctx context.Context, base string) error {
		return backend.NewClient(base, nil).Health(ctx)
	})
	report := checker.Run(context.Background(), settings)
	if report.HasFailures {
		log.Printf("startup diagnostics reported failures for %s", settings.BackendBase)
	}

	app := &App{
		Settings:    settings,
		Store:       store,
		Selection:   selection.NewStore(),
		Inspector:   selection.NewInspector(),
		Jobs:        jobs.NewManager(),
		Presenter:   present.NewPresenter(present.NewDownloader(nil)),
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		newPipeline: newOrchestrator,
		events:      jobs.NewEventBus(1000),
	}
	app.Pipeline = app.newPipeline(settings)
	app.Gate = jobs.NewGate(app.publishControls)
	app.Selection.OnChange(func(state selection.State) {
		app.emit(eventSelection, state)
	})
	app.Presenter.OnChange(func(view present.View) {
		app.emit(eventResults, view)
	})
	return app, nil
}

// newOrchestrator builds the real pipeline against the configured backend.
func newOrchestrator(settings domain.Settings) pipelineRunner {
	encoder := encoding.NewEncoder()
	return pipeline.New(backend.NewClient(settings.BackendBase, encoder), encoder)
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Study Song",
		Width:       1080,
		Height:      760,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then rebuilds the pipeline
// for the new backend and refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.applySettings(normalized)
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns readiness checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	return a.applySettings(settings), nil
}

// PickFiles opens a native multi-file dialog and appends the chosen files
// to the selection.
func (a *App) PickFiles() (selection.State, error) {
	if a.Gate.Locked() {
		return a.Selection.State(), jobs.ErrControlsLocked
	}

	ctx, err := a.runtimeContext()
	if err != nil {
		return a.Selection.State(), err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select images or a PDF",
		Filters: studyDialogFilter,
	})
	if err != nil {
		return a.Selection.State(), err
	}

	return a.AddFiles(paths)
}

// AddFiles inspects paths and appends them to the selection. Either all of
// them are added or, when a quota would be exceeded, none.
func (a *App) AddFiles(paths []string) (selection.State, error) {
	if a.Gate.Locked() {
		return a.Selection.State(), jobs.ErrControlsLocked
	}

	cleaned := make([]string, 0, len(paths))
	for _, path := range paths {
		if path = strings.TrimSpace(path); path != "" {
			cleaned = append(cleaned, path)
		}
	}
	if len(cleaned) == 0 {
		return a.Selection.State(), nil
	}

	files, err := a.Inspector.Inspect(context.Background(), cleaned)
	if err != nil {
		return a.Selection.State(), fmt.Errorf("inspect files: %w", err)
	}
	if err := a.Selection.Add(files); err != nil {
		return a.Selection.State(), err
	}
	return a.Selection.State(), nil
}

// RemoveFile drops the file at index from the selection.
func (a *App) RemoveFile(index int) (selection.State, error) {
	if a.Gate.Locked() {
		return a.Selection.State(), jobs.ErrControlsLocked
	}
	a.Selection.Remove(index)
	return a.Selection.State(), nil
}

// ClearSelection removes every selected file.
func (a *App) ClearSelection() error {
	if a.Gate.Locked() {
		return jobs.ErrControlsLocked
	}
	a.Selection.Clear()
	return nil
}

// SelectionState returns the current files, per-class counts and revision.
func (a *App) SelectionState() selection.State {
	return a.Selection.State()
}

// ObserveText measures the text field for the character counter.
func (a *App) ObserveText(text string) budget.Measurement {
	return budget.Observe(text)
}

// ControlsLocked reports whether a run currently disables the inputs.
func (a *App) ControlsLocked() bool {
	return a.Gate.Locked()
}

// Generate locks the controls, snapshots the inputs and starts a run in the
// background. waitForAudio is sent with the song request as given. The
// controls are unlocked when the run finishes.
func (a *App) Generate(text string, waitForAudio bool) (domain.Run, error) {
	if err := a.Gate.Lock(); err != nil {
		return domain.Run{}, err
	}

	settings, err := a.Store.Load()
	if err != nil {
		a.Gate.Unlock()
		return domain.Run{}, fmt.Errorf("load settings: %w", err)
	}

	runID := uuid.NewString()
	if err := a.Jobs.Start(runID); err != nil {
		a.Gate.Unlock()
		return domain.Run{}, err
	}

	a.mu.Lock()
	a.Settings = settings
	runner := a.Pipeline
	a.mu.Unlock()

	req := pipeline.Request{
		Text:         text,
		Files:        a.Selection.Snapshot(),
		WaitForAudio: waitForAudio,
		Source:       pipeline.SourceForMode(settings.InputMode),
		StageTimeout: time.Duration(settings.StageTimeoutSeconds) * time.Second,
	}

	go a.runSong(context.Background(), runner, runID, req)
	return a.Jobs.Current(), nil
}

// CurrentRun returns current run metadata and status.
func (a *App) CurrentRun() domain.Run {
	return a.Jobs.Current()
}

// RunEvents returns all events with sequence greater than sinceSeq.
func (a *App) RunEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// Results returns the current result view.
func (a *App) Results() present.View {
	return a.Presenter.View()
}

// DownloadAudio asks for a destination and saves the audio item with the
// given 1-based index. An empty path means the dialog was dismissed.
func (a *App) DownloadAudio(index int) (string, error) {
	item, ok := a.Presenter.Item(index)
	if !ok {
		return "", fmt.Errorf("audio item %d does not exist", index)
	}

	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	downloadDir := a.Settings.DownloadDir
	a.mu.Unlock()

	destination, err := wailsruntime.SaveFileDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:            "Save song",
		DefaultDirectory: downloadDir,
		DefaultFilename:  item.FileName,
		Filters: []wailsruntime.FileFilter{
			{DisplayName: "MP3 audio", Pattern: "*.mp3"},
		},
	})
	if err != nil {
		return "", err
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", nil
	}

	if err := a.Presenter.Downloader().Download(ctx, item.URL, destination); err != nil {
		log.Printf("download %s: %v", item.FileName, err)
		_, _ = wailsruntime.MessageDialog(ctx, wailsruntime.MessageDialogOptions{
			Type:    wailsruntime.ErrorDialog,
			Title:   "Download failed",
			Message: err.Error(),
		})
		return "", err
	}
	return destination, nil
}

// PickDownloadDirectory opens a native directory picker for saved songs.
func (a *App) PickDownloadDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select download directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenDownloadFolder opens the given path (or configured download dir) in file manager.
func (a *App) OpenDownloadFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.DownloadDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("download path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve download path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// runSong executes the pipeline and maps outcomes to run events and the
// result view. The gate is always released when it returns.
func (a *App) runSong(ctx context.Context, runner pipelineRunner, runID string, req pipeline.Request) {
	defer a.Gate.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("run %s panicked: %v", runID, r)
			a.failRun(runID, fmt.Errorf("internal error: %v", r))
		}
	}()

	req.OnStage = func(state domain.RunState, status string) {
		if err := a.Jobs.Transition(state, status); err != nil {
			log.Printf("run %s: %v", runID, err)
			return
		}
		if state == domain.RunStateValidating {
			a.Presenter.Reset()
		}
		a.publishStatus(runID, state, status)
	}
	req.OnStudyText = func(text string) {
		a.Presenter.ShowStudyText(text)
		a.publishEvent(jobs.Event{RunID: runID, Type: jobs.EventTypeStudyText, Text: text})
	}
	req.OnPlan = func(plan string) {
		a.Presenter.ShowPlan(plan)
		a.publishEvent(jobs.Event{RunID: runID, Type: jobs.EventTypePlan, Text: plan})
	}

	result, err := runner.Run(ctx, req)
	if err != nil {
		a.failRun(runID, err)
		return
	}

	a.Presenter.RenderAudio(result.AudioURLs)
	status := pipeline.FinalStatus(result)
	if err := a.Jobs.Transition(domain.RunStateSucceeded, status); err != nil {
		log.Printf("run %s: %v", runID, err)
	}
	a.publishStatus(runID, domain.RunStateSucceeded, status)
	a.publishEvent(jobs.Event{
		RunID:     runID,
		Type:      jobs.EventTypeResult,
		State:     domain.RunStateSucceeded,
		Message:   status,
		AudioURLs: result.AudioURLs,
		TaskID:    result.TaskID,
	})
}

// failRun moves the run to failed and publishes the error.
func (a *App) failRun(runID string, err error) {
	status := pipeline.FailureStatus(err)
	log.Printf("run %s failed: %v", runID, err)

	if transitionErr := a.Jobs.Transition(domain.RunStateFailed, status); transitionErr != nil {
		log.Printf("run %s: %v", runID, transitionErr)
	}
	a.publishStatus(runID, domain.RunStateFailed, status)
	a.publishEvent(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeError,
		State:   domain.RunStateFailed,
		Message: err.Error(),
	})
}

// applySettings caches settings, rebuilds the pipeline and reruns diagnostics.
func (a *App) applySettings(settings domain.Settings) domain.DiagnosticReport {
	var report domain.DiagnosticReport
	if a.checker != nil {
		report = a.checker.Run(context.Background(), settings)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.newPipeline != nil {
		a.Pipeline = a.newPipeline(settings)
	}
	if a.checker != nil {
		a.Diagnostics = report
	}
	return a.Diagnostics
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(runID string, state domain.RunState, message string) {
	a.publishEvent(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeStatus,
		State:   state,
		Message: message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)
	a.emit(eventRun, published)
}

// publishControls pushes the gate state to the view.
func (a *App) publishControls(locked bool) {
	a.emit(eventControls, map[string]bool{"locked": locked})
}

// emit sends a push notification when the runtime is available.
func (a *App) emit(name string, payload any) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, name, payload)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
