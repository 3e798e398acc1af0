package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tapedeck/internal/broadcast"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/tasks"
	tu "github.com/desertthunder/tapedeck/internal/testing"
)

type staticCatalog struct {
	catalog models.Catalog
	err     error
}

func (s *staticCatalog) Load() (models.Catalog, error) { return s.catalog, s.err }

type fakeRunner struct {
	events *broadcast.Broadcaster
	result *tasks.RunResult
	err    error
	calls  []string
}

func (f *fakeRunner) Run(_ context.Context, playlist string) (*tasks.RunResult, error) {
	f.calls = append(f.calls, playlist)
	f.events.Publish(models.ProgressEvent{Playlist: playlist, Percentage: 50})
	f.events.Publish(models.ProgressEvent{Playlist: playlist, Percentage: 100})
	return f.result, f.err
}

func roadTripResult() *tasks.RunResult {
	cat := tu.RoadTrip()
	return &tasks.RunResult{
		Playlist:  "Road Trip",
		Total:     2,
		Succeeded: 1,
		Failed:    1,
		Tracks: []tasks.TrackResult{
			{Track: cat[0].Tracks[0], State: models.StateComplete, MediaPath: "/music/songs/song_a.webm"},
			{Track: cat[0].Tracks[1], State: models.StateResolutionFailed, Err: errors.New("no results")},
		},
	}
}

func newTestModel(t *testing.T, runner *fakeRunner) *Model {
	t.Helper()
	events := broadcast.New()
	if runner != nil {
		runner.events = events
	}
	m := NewModel(context.Background(), &staticCatalog{catalog: tu.RoadTrip()}, runner, events)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(m.loadCatalog()())
	return m
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// drain feeds command output back into the model until the run completes.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 50 {
			t.Fatal("run did not complete")
		}
		_, cmd = m.Update(cmd())
	}
}

func TestNavigation(t *testing.T) {
	t.Run("loads the catalog into the playlist list", func(t *testing.T) {
		m := newTestModel(t, nil)

		if got := len(m.catalog); got != 2 {
			t.Fatalf("expected 2 playlists, got %d", got)
		}
		if !strings.Contains(m.View(), "Road Trip") {
			t.Errorf("expected playlist list to show Road Trip, got %q", m.View())
		}
	})

	t.Run("shows catalog errors", func(t *testing.T) {
		m := NewModel(context.Background(), &staticCatalog{err: errors.New("corrupt catalog")}, nil, broadcast.New())
		m.Update(m.loadCatalog()())

		if m.Err() == nil {
			t.Fatal("expected error to be kept")
		}
		if !strings.Contains(m.View(), "corrupt catalog") {
			t.Errorf("expected error in view, got %q", m.View())
		}
	})

	t.Run("empty catalog hint", func(t *testing.T) {
		m := NewModel(context.Background(), &staticCatalog{}, nil, broadcast.New())
		m.Update(m.loadCatalog()())

		if !strings.Contains(m.View(), "catalog is empty") {
			t.Errorf("expected empty hint, got %q", m.View())
		}
	})

	t.Run("enter opens tracks then confirm", func(t *testing.T) {
		m := newTestModel(t, nil)

		m.Update(keyPress("enter"))
		if m.ViewState() != TrackListView {
			t.Fatalf("expected TrackListView, got %v", m.ViewState())
		}
		if m.selected == nil || m.selected.Name != "Road Trip" {
			t.Fatalf("expected Road Trip selected, got %+v", m.selected)
		}

		m.Update(keyPress("enter"))
		if m.ViewState() != ConfirmView {
			t.Fatalf("expected ConfirmView, got %v", m.ViewState())
		}
		if view := m.View(); !strings.Contains(view, "Download 'Road Trip'?") || !strings.Contains(view, "Tracks: 2") {
			t.Errorf("unexpected confirm view %q", view)
		}
	})

	t.Run("cancel and back", func(t *testing.T) {
		m := newTestModel(t, nil)
		m.Update(keyPress("enter"))
		m.Update(keyPress("enter"))

		m.Update(keyPress("n"))
		if m.ViewState() != TrackListView {
			t.Fatalf("expected TrackListView after cancel, got %v", m.ViewState())
		}

		m.Update(keyPress("esc"))
		if m.ViewState() != PlaylistListView {
			t.Fatalf("expected PlaylistListView after back, got %v", m.ViewState())
		}
	})

	t.Run("quit", func(t *testing.T) {
		m := newTestModel(t, nil)
		_, cmd := m.Update(keyPress("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}

func TestDownload(t *testing.T) {
	t.Run("runs the selected playlist and shows the result", func(t *testing.T) {
		runner := &fakeRunner{result: roadTripResult()}
		m := newTestModel(t, runner)
		m.Update(keyPress("enter"))
		m.Update(keyPress("enter"))

		_, cmd := m.Update(keyPress("y"))
		if m.ViewState() != DownloadView {
			t.Fatalf("expected DownloadView, got %v", m.ViewState())
		}
		if !strings.Contains(m.View(), "Downloading 'Road Trip'") {
			t.Errorf("unexpected download view %q", m.View())
		}

		drain(t, m, cmd)

		if m.ViewState() != ResultView {
			t.Fatalf("expected ResultView, got %v", m.ViewState())
		}
		if len(runner.calls) != 1 || runner.calls[0] != "Road Trip" {
			t.Errorf("expected one run of Road Trip, got %v", runner.calls)
		}
		if m.percent != 100 {
			t.Errorf("expected 100%%, got %d", m.percent)
		}
		if m.sub != nil {
			t.Error("expected subscription to be closed")
		}

		view := m.View()
		for _, want := range []string{"Download complete", "Downloaded: 1/2", "Song B", "resolution_failed", "/music/songs"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected result view to contain %q, got %q", want, view)
			}
		}
	})

	t.Run("run error", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("run in progress")}
		m := newTestModel(t, runner)
		m.Update(keyPress("enter"))
		m.Update(keyPress("enter"))

		_, cmd := m.Update(keyPress("y"))
		drain(t, m, cmd)

		if !strings.Contains(m.View(), "Download failed: run in progress") {
			t.Errorf("expected failure view, got %q", m.View())
		}
	})

	t.Run("run again", func(t *testing.T) {
		runner := &fakeRunner{result: roadTripResult()}
		m := newTestModel(t, runner)
		m.Update(keyPress("enter"))
		m.Update(keyPress("enter"))
		_, cmd := m.Update(keyPress("y"))
		drain(t, m, cmd)

		_, cmd = m.Update(keyPress("r"))
		drain(t, m, cmd)

		if len(runner.calls) != 2 {
			t.Errorf("expected two runs, got %d", len(runner.calls))
		}
	})

	t.Run("track states update the download view", func(t *testing.T) {
		m := newTestModel(t, nil)
		m.Update(keyPress("enter"))
		m.view = DownloadView
		track := m.selected.Tracks[0]

		m.Update(trackStateMsg(TrackStatus{Track: track, State: models.StateDownloading}))
		if !strings.Contains(m.View(), "downloading") {
			t.Errorf("expected current state in view, got %q", m.View())
		}
		if len(m.recent) != 0 {
			t.Errorf("expected no finished tracks, got %d", len(m.recent))
		}

		m.Update(trackStateMsg(TrackStatus{Track: track, State: models.StateComplete}))
		if len(m.recent) != 1 {
			t.Errorf("expected one finished track, got %d", len(m.recent))
		}
	})

	t.Run("progress for other playlists is ignored", func(t *testing.T) {
		m := newTestModel(t, nil)
		m.Update(keyPress("enter"))

		m.Update(progressMsg(models.ProgressEvent{Playlist: "Empty", Percentage: 100}))
		if m.percent != 0 {
			t.Errorf("expected 0%%, got %d", m.percent)
		}
		m.Update(progressMsg(models.ProgressEvent{Playlist: "Road Trip", Percentage: 50}))
		if m.percent != 50 {
			t.Errorf("expected 50%%, got %d", m.percent)
		}
	})
}

func TestTransitionHook(t *testing.T) {
	m := NewModel(context.Background(), &staticCatalog{}, nil, broadcast.New())
	hook := m.TransitionHook()
	track := models.Track{Name: "Song A", Artist: "Artist X"}

	hook(track, models.StatePending, models.StateResolving)
	if got := len(m.status); got != 1 {
		t.Fatalf("expected 1 queued state, got %d", got)
	}
	if st := <-m.status; st.State != models.StateResolving || st.Track.Name != "Song A" {
		t.Errorf("unexpected status %+v", st)
	}

	t.Run("never blocks when the view falls behind", func(t *testing.T) {
		for range cap(m.status) + 10 {
			hook(track, models.StatePending, models.StateResolving)
		}
		if got := len(m.status); got != cap(m.status) {
			t.Errorf("expected full buffer, got %d", got)
		}
	})
}

func TestLookup(t *testing.T) {
	m := NewModel(context.Background(), &staticCatalog{catalog: tu.RoadTrip()}, nil, broadcast.New())

	if err := m.Lookup("Road Trip"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ViewState() != ConfirmView {
		t.Errorf("expected ConfirmView, got %v", m.ViewState())
	}

	if err := m.Lookup("Missing"); err == nil {
		t.Error("expected error for unknown playlist")
	}
}
