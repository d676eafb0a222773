// Package present holds the result view state for one run: study text,
// mnemonic plan and the audio list with per-item downloads.
package present

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
)

const (
	// EmptyPlaceholder is shown for study text or plan with no content.
	EmptyPlaceholder = "-"
	// NonePlaceholder is shown in the audio area when there is nothing to play.
	NonePlaceholder = "none"
)

// AudioItem is one playable locator returned by song generation.
type AudioItem struct {
	Index    int    `json:"index"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
}

// View is a snapshot of everything the result area displays.
type View struct {
	StudyText        string      `json:"studyText"`
	Plan             string      `json:"plan"`
	PlanHTML         string      `json:"planHtml"`
	Audio            []AudioItem `json:"audio"`
	AudioPlaceholder string      `json:"audioPlaceholder,omitempty"`
}

// Presenter owns the result view. It is safe for concurrent use.
type Presenter struct {
	mu       sync.RWMutex
	view     View
	markdown goldmark.Markdown
	onChange func(View)

	downloader *Downloader
}

// NewPresenter creates a presenter with placeholders in every area.
func NewPresenter(downloader *Downloader) *Presenter {
	if downloader == nil {
		downloader = NewDownloader(nil)
	}
	return &Presenter{
		view: View{
			StudyText:        EmptyPlaceholder,
			Plan:             EmptyPlaceholder,
			Audio:            []AudioItem{},
			AudioPlaceholder: NonePlaceholder,
		},
		markdown:   goldmark.New(),
		downloader: downloader,
	}
}

// OnChange registers a listener called with a fresh View after each update.
func (p *Presenter) OnChange(fn func(View)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// ShowStudyText displays the trimmed study text.
func (p *Presenter) ShowStudyText(text string) {
	p.update(func(v *View) {
		v.StudyText = orPlaceholder(text)
	})
}

// ShowPlan displays the trimmed plan and its rendered HTML.
func (p *Presenter) ShowPlan(text string) {
	plan := orPlaceholder(text)
	html := p.renderPlan(plan)
	p.update(func(v *View) {
		v.Plan = plan
		v.PlanHTML = html
	})
}

// ClearAudio replaces the audio area with the none placeholder.
func (p *Presenter) ClearAudio() {
	p.update(clearAudio)
}

// RenderAudio shows one item per URL in order. An empty list shows the
// none placeholder.
func (p *Presenter) RenderAudio(urls []string) {
	items := make([]AudioItem, 0, len(urls))
	for i, url := range urls {
		items = append(items, AudioItem{
			Index:    i + 1,
			URL:      url,
			FileName: FileName(i + 1),
		})
	}

	p.update(func(v *View) {
		v.Audio = items
		v.AudioPlaceholder = ""
		if len(items) == 0 {
			v.AudioPlaceholder = NonePlaceholder
		}
	})
}

// Reset restores the placeholders in every area in one update. It runs at
// the start of each run so nothing from an earlier run stays on screen.
func (p *Presenter) Reset() {
	p.update(func(v *View) {
		v.StudyText = EmptyPlaceholder
		v.Plan = EmptyPlaceholder
		v.PlanHTML = ""
		clearAudio(v)
	})
}

func clearAudio(v *View) {
	v.Audio = []AudioItem{}
	v.AudioPlaceholder = NonePlaceholder
}

// View returns a copy of the current view.
func (p *Presenter) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyView(p.view)
}

// Item returns the audio item with the given 1-based index.
func (p *Presenter) Item(index int) (AudioItem, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, item := range p.view.Audio {
		if item.Index == index {
			return item, true
		}
	}
	return AudioItem{}, false
}

// Downloader returns the downloader used for audio items.
func (p *Presenter) Downloader() *Downloader {
	return p.downloader
}

// FileName is the suggested save name for the n-th audio item.
func FileName(n int) string {
	return fmt.Sprintf("learning-song-%d.mp3", n)
}

func (p *Presenter) update(mutate func(v *View)) {
	p.mu.Lock()
	mutate(&p.view)
	snapshot := copyView(p.view)
	listener := p.onChange
	p.mu.Unlock()

	if listener != nil {
		listener(snapshot)
	}
}

func (p *Presenter) renderPlan(plan string) string {
	if plan == EmptyPlaceholder {
		return ""
	}
	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(plan), &buf); err != nil {
		log.Printf("render plan html: %v", err)
		return ""
	}
	return buf.String()
}

func orPlaceholder(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return EmptyPlaceholder
	}
	return trimmed
}

func copyView(v View) View {
	out := v
	out.Audio = append([]AudioItem(nil), v.Audio...)
	if out.Audio == nil {
		out.Audio = []AudioItem{}
	}
	return out
}
