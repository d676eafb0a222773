// Package selection keeps the ordered set of files chosen as study material.
package selection

import (
	"fmt"
	"sync"

	"github.com/samber/lo"

	"study-song/internal/domain"
)

const (
	// MaxImages is the most images one selection may hold.
	MaxImages = 5
	// MaxPDFs is the most PDF documents one selection may hold.
	MaxPDFs = 1
)

// QuotaExceededError reports an add that would break a per-class limit.
type QuotaExceededError struct {
	Kind  domain.MimeClass
	Limit int
}

func (e *QuotaExceededError) Error() string {
	if e.Kind == domain.MimeClassPDF {
		return fmt.Sprintf("you can upload at most %d PDF", e.Limit)
	}
	return fmt.Sprintf("you can upload at most %d images", e.Limit)
}

// Counts is the per-class tally of a selection.
type Counts struct {
	Images int `json:"images"`
	PDFs   int `json:"pdfs"`
	Other  int `json:"other"`
}

// State is what the view renders for the selection. Revision increases on
// every mutation so late pushes can be told apart from fresh ones.
type State struct {
	Files    []domain.InputFile `json:"files"`
	Counts   Counts             `json:"counts"`
	Revision int64              `json:"revision"`
}

// Store holds selected files and enforces image/PDF quotas.
type Store struct {
	mu        sync.RWMutex
	files     []domain.InputFile
	transport []domain.InputFile
	revision  int64
	onChange  func(state State)
}

// NewStore creates an empty selection.
func NewStore() *Store {
	return &Store{}
}

// OnChange registers a listener called with the new state after each mutation.
func (s *Store) OnChange(fn func(state State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Add appends files in arrival order. If the result would exceed a quota the
// store is left untouched and a *QuotaExceededError is returned.
func (s *Store) Add(files []domain.InputFile) error {
	if len(files) == 0 {
		return nil
	}

	s.mu.Lock()
	current := countClasses(s.files)
	incoming := countClasses(files)
	if current.Images+incoming.Images > MaxImages {
		s.mu.Unlock()
		return &QuotaExceededError{Kind: domain.MimeClassImage, Limit: MaxImages}
	}
	if current.PDFs+incoming.PDFs > MaxPDFs {
		s.mu.Unlock()
		return &QuotaExceededError{Kind: domain.MimeClassPDF, Limit: MaxPDFs}
	}

	for _, f := range files {
		f.Class = classOf(f)
		s.files = append(s.files, f)
	}
	s.resyncLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// Remove drops the file at index. Out-of-range indexes are ignored.
func (s *Store) Remove(index int) {
	s.mu.Lock()
	if index < 0 || index >= len(s.files) {
		s.mu.Unlock()
		return
	}
	s.files = append(s.files[:index], s.files[index+1:]...)
	s.resyncLocked()
	s.mu.Unlock()

	s.notify()
}

// Clear empties the selection.
func (s *Store) Clear() {
	s.mu.Lock()
	s.files = nil
	s.resyncLocked()
	s.mu.Unlock()

	s.notify()
}

// Snapshot returns the files as they will be uploaded, in selection order.
func (s *Store) Snapshot() []domain.InputFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.InputFile(nil), s.transport...)
}

// State returns a copy of the files with their counts and revision.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// resyncLocked rebuilds the upload list from files so it never holds stale
// or duplicated entries.
func (s *Store) resyncLocked() {
	s.transport = make([]domain.InputFile, len(s.files))
	copy(s.transport, s.files)
	s.revision++
}

func (s *Store) stateLocked() State {
	files := append([]domain.InputFile(nil), s.transport...)
	if files == nil {
		files = []domain.InputFile{}
	}
	return State{
		Files:    files,
		Counts:   countClasses(s.files),
		Revision: s.revision,
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	fn := s.onChange
	state := s.stateLocked()
	s.mu.RUnlock()
	if fn != nil {
		fn(state)
	}
}

func countClasses(files []domain.InputFile) Counts {
	return Counts{
		Images: lo.CountBy(files, func(f domain.InputFile) bool { return classOf(f) == domain.MimeClassImage }),
		PDFs:   lo.CountBy(files, func(f domain.InputFile) bool { return classOf(f) == domain.MimeClassPDF }),
		Other:  lo.CountBy(files, func(f domain.InputFile) bool { return classOf(f) == domain.MimeClassOther }),
	}
}

// classOf trusts an explicit class and otherwise derives it from the MIME type.
func classOf(f domain.InputFile) domain.MimeClass {
	if f.Class != "" {
		return f.Class
	}
	return Classify(f.MimeType)
}
