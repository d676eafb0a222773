package present

import (
	"strings"
	"testing"
)

// TestPresenterPlaceholders verifies empty text shows the dash placeholder.
func TestPresenterPlaceholders(t *testing.T) {
	p := NewPresenter(nil)
	p.ShowStudyText("   ")
	p.ShowPlan("")

	view := p.View()
	if view.StudyText != EmptyPlaceholder || view.Plan != EmptyPlaceholder {
		t.Fatalf("view = %+v, want placeholders", view)
	}
	if view.PlanHTML != "" {
		t.Fatalf("plan html = %q, want empty", view.PlanHTML)
	}
	if view.AudioPlaceholder != NonePlaceholder || len(view.Audio) != 0 {
		t.Fatalf("audio = %+v / %q", view.Audio, view.AudioPlaceholder)
	}
}

// TestPresenterShowsTrimmedText checks trimming and plan rendering.
func TestPresenterShowsTrimmedText(t *testing.T) {
	p := NewPresenter(nil)
	p.ShowStudyText("  Photosynthesis converts light to energy \n")
	p.ShowPlan("**Verse:** light becomes life...")

	view := p.View()
	if view.StudyText != "Photosynthesis converts light to energy" {
		t.Fatalf("study text = %q", view.StudyText)
	}
	if view.Plan != "**Verse:** light becomes life..." {
		t.Fatalf("plan = %q", view.Plan)
	}
	if !strings.Contains(view.PlanHTML, "<strong>Verse:</strong>") {
		t.Fatalf("plan html = %q", view.PlanHTML)
	}
}

// TestPresenterRenderAudio verifies item order and file names.
func TestPresenterRenderAudio(t *testing.T) {
	p := NewPresenter(nil)
	p.RenderAudio([]string{"http://x/a.mp3", "http://x/b.mp3"})

	view := p.View()
	if len(view.Audio) != 2 || view.AudioPlaceholder != "" {
		t.Fatalf("view = %+v", view)
	}
	if view.Audio[0].URL != "http://x/a.mp3" || view.Audio[0].FileName != "learning-song-1.mp3" {
		t.Fatalf("first item = %+v", view.Audio[0])
	}
	if view.Audio[1].URL != "http://x/b.mp3" || view.Audio[1].FileName != "learning-song-2.mp3" {
		t.Fatalf("second item = %+v", view.Audio[1])
	}

	item, ok := p.Item(2)
	if !ok || item.URL != "http://x/b.mp3" {
		t.Fatalf("Item(2) = %+v, %v", item, ok)
	}
	if _, ok := p.Item(3); ok {
		t.Fatal("Item(3) should not exist")
	}
}

// TestPresenterClearAudio checks the none placeholder replaces old items.
func TestPresenterClearAudio(t *testing.T) {
	p := NewPresenter(nil)
	p.RenderAudio([]string{"http://x/a.mp3"})
	p.ClearAudio()

	view := p.View()
	if len(view.Audio) != 0 || view.AudioPlaceholder != NonePlaceholder {
		t.Fatalf("view = %+v", view)
	}

	p.RenderAudio(nil)
	if got := p.View().AudioPlaceholder; got != NonePlaceholder {
		t.Fatalf("placeholder = %q, want %q", got, NonePlaceholder)
	}
}

// TestPresenterOnChange verifies listeners receive snapshots.
func TestPresenterOnChange(t *testing.T) {
	p := NewPresenter(nil)
	var views []View
	p.OnChange(func(v View) { views = append(views, v) })

	p.ShowStudyText("osmosis")
	p.RenderAudio([]string{"http://x/a.mp3"})

	if len(views) != 2 {
		t.Fatalf("len = %d, want 2", len(views))
	}
	if views[0].StudyText != "osmosis" || len(views[0].Audio) != 0 {
		t.Fatalf("first view = %+v", views[0])
	}
	views[1].Audio[0].URL = "mutated"
	if p.View().Audio[0].URL != "http://x/a.mp3" {
		t.Fatal("listener snapshot must not alias presenter state")
	}
}

// TestPresenterReset checks every area returns to its placeholder at once.
func TestPresenterReset(t *testing.T) {
	p := NewPresenter(nil)
	p.ShowStudyText("osmosis")
	p.ShowPlan("Chorus")
	p.RenderAudio([]string{"http://x/a.mp3"})

	var views []View
	p.OnChange(func(v View) { views = append(views, v) })
	p.Reset()

	if len(views) != 1 {
		t.Fatalf("updates = %d, want 1", len(views))
	}
	view := p.View()
	if view.StudyText != EmptyPlaceholder || view.Plan != EmptyPlaceholder || view.PlanHTML != "" {
		t.Fatalf("view = %+v, want placeholders", view)
	}
	if len(view.Audio) != 0 || view.AudioPlaceholder != NonePlaceholder {
		t.Fatalf("audio = %+v / %q", view.Audio, view.AudioPlaceholder)
	}
}
