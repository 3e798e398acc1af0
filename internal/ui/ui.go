package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tapedeck/internal/broadcast"
	"github.com/desertthunder/tapedeck/internal/catalog"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	ConfirmView
	DownloadView
	ResultView
)

// recentLimit is how many finished tracks the download view lists.
const recentLimit = 5

// CatalogSource loads the catalog shown in the playlist list.
type CatalogSource interface {
	Load() (models.Catalog, error)
}

// Runner mirrors one playlist and blocks until it is done.
type Runner interface {
	Run(ctx context.Context, playlist string) (*tasks.RunResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	catalogSrc   CatalogSource
	runner       Runner
	broadcaster  *broadcast.Broadcaster
	view         ViewState
	width        int
	height       int
	playlistList list.Model
	trackList    list.Model
	catalog      models.Catalog
	selected     *models.Playlist
	status       chan TrackStatus
	events       <-chan models.ProgressEvent
	sub          *broadcast.Subscription
	done         chan runComplete
	percent      int
	current      TrackStatus
	recent       []TrackStatus
	result       *tasks.RunResult
	err          error
	spinner      spinner.Model
	bar          progress.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model. events must be the broadcaster the runner publishes to.
func NewModel(ctx context.Context, src CatalogSource, runner Runner, events *broadcast.Broadcaster) *Model {
	return &Model{
		ctx:          ctx,
		catalogSrc:   src,
		runner:       runner,
		broadcaster:  events,
		view:         PlaylistListView,
		playlistList: newList("Playlists", nil),
		trackList:    newList("Tracks", nil),
		status:       make(chan TrackStatus, 64),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.warn)),
		bar:          progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

// TransitionHook returns a [tasks.TransitionFunc] feeding track states into the download view.
//
// It never blocks the pipeline; states are dropped when the view falls behind.
func (m *Model) TransitionHook() tasks.TransitionFunc {
	status := m.status
	return func(track models.Track, _, to models.TrackState) {
		select {
		case status <- TrackStatus{Track: track, State: to}:
		default:
		}
	}
}

// ViewState returns the current view.
func (m *Model) ViewState() ViewState { return m.view }

// Err returns the last error shown to the user.
func (m *Model) Err() error { return m.err }

// Init initializes the TUI by loading the catalog.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadCatalog(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-6)
		m.trackList.SetSize(msg.Width-4, msg.Height-6)
		if w := msg.Width - 8; w > 10 {
			m.bar.Width = min(w, 80)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case DownloadView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgCatalogLoaded:
		data := msg.data.(catalogLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.catalog = data.catalog
		m.err = nil
		return m, m.playlistList.SetItems(playlistItems(data.catalog))

	case MsgProgress:
		ev := msg.data.(models.ProgressEvent)
		if m.selected != nil && ev.Playlist == m.selected.Name {
			m.percent = ev.Percentage
		}
		return m, m.waitForRun()

	case MsgTrackState:
		st := msg.data.(TrackStatus)
		m.current = st
		if st.State.Terminal() {
			m.recent = append(m.recent, st)
			if len(m.recent) > recentLimit {
				m.recent = m.recent[len(m.recent)-recentLimit:]
			}
		}
		return m, m.waitForRun()

	case MsgRunComplete:
		data := msg.data.(runComplete)
		m.finishRun()
		m.result = data.result
		m.err = data.err
		if data.result != nil {
			m.percent = data.result.Percentage()
		}
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			m.selectPlaylist(pl.playlist)
			return m, nil
		}
	}

	return m.updateLists(msg)
}

func (m *Model) selectPlaylist(pl models.Playlist) {
	m.selected = &pl
	m.trackList.Title = fmt.Sprintf("Tracks in '%s'", pl.Name)
	m.trackList.SetItems(trackItems(pl.Tracks))
	m.trackList.ResetSelected()
	m.view = TrackListView
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		m.view = ConfirmView
		return m, nil
	}

	return m.updateLists(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = TrackListView
		return m, nil
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.yes):
		return m, m.startRun()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.rerun):
		if m.selected != nil {
			return m, m.startRun()
		}
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		m.result = nil
		m.err = nil
		return m, m.loadCatalog()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadCatalog() tea.Cmd {
	src := m.catalogSrc
	return func() tea.Msg {
		cat, err := src.Load()
		return catalogLoadedMsg(cat, err)
	}
}

// startRun subscribes to progress and launches the run. Stale track states from an earlier run are discarded.
func (m *Model) startRun() tea.Cmd {
	for len(m.status) > 0 {
		<-m.status
	}

	m.view = DownloadView
	m.percent = 0
	m.current = TrackStatus{}
	m.recent = nil
	m.result = nil
	m.err = nil

	m.events, m.sub = m.broadcaster.Channel(64)
	m.done = make(chan runComplete, 1)

	ctx, runner, name, done := m.ctx, m.runner, m.selected.Name, m.done
	go func() {
		result, err := runner.Run(ctx, name)
		done <- runComplete{result: result, err: err}
	}()

	return m.waitForRun()
}

func (m *Model) finishRun() {
	if m.sub != nil {
		m.sub.Close()
		m.sub = nil
	}
	m.events = nil
	m.done = nil
}

// waitForRun waits for the next progress event, track state or run completion.
func (m *Model) waitForRun() tea.Cmd {
	events, status, done := m.events, m.status, m.done
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case ev := <-events:
			return progressMsg(ev)
		case st := <-status:
			return trackStateMsg(st)
		case d := <-done:
			return runCompleteMsg(d.result, d.err)
		}
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == PlaylistListView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case DownloadView:
		return m.renderDownload()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderPlaylistList() string {
	if len(m.catalog) == 0 {
		return fmt.Sprintf("%s\n\n%s\n\n%s",
			styles.title.Render("Playlists"),
			styles.warn.Render("The catalog is empty. Run `tapedeck catalog fetch` first."),
			m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderTrackList() string {
	download := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "download"))
	helpView := m.help.ShortHelpView([]key.Binding{download, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Download '%s'?", m.selected.Name))
	info := fmt.Sprintf("\nTracks: %d\n", len(m.selected.Tracks))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderDownload() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("Downloading '%s'", m.selected.Name)))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(float64(m.percent) / 100))
	b.WriteString("\n\n")

	if m.current.Track.Name != "" {
		fmt.Fprintf(&b, "%s %s %s\n", m.spinner.View(), m.current.Track, styles.State(m.current.State).Render(m.current.State.String()))
	} else {
		fmt.Fprintf(&b, "%s starting...\n", m.spinner.View())
	}

	if len(m.recent) > 0 {
		b.WriteString("\n")
		for _, st := range m.recent {
			fmt.Fprintf(&b, "  %s %s\n", styles.State(st.State).Render(mark(st.State)), st.Track)
		}
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func mark(s models.TrackState) string {
	if s == models.StateComplete {
		return "✓"
	}
	return "✗"
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.rerun, m.keys.back, m.keys.quit})

	if m.err != nil && m.result == nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Download failed: %v", m.err)), helpView)
	}
	if m.result == nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render("No result available"), helpView)
	}

	var b strings.Builder
	if m.err != nil {
		b.WriteString(styles.warn.Render(fmt.Sprintf("Stopped early: %v", m.err)))
	} else {
		b.WriteString(styles.ok.Render("✓ Download complete"))
	}
	fmt.Fprintf(&b, "\n\nPlaylist: %s\nDownloaded: %d/%d\n", m.result.Playlist, m.result.Succeeded, m.result.Total)

	if failures := m.result.Failures(); len(failures) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("%d tracks failed:", len(failures))))
		for _, f := range failures {
			fmt.Fprintf(&b, "\n  • %s (%s)", f.Track, f.State)
		}
		b.WriteString("\n")
	}

	if path := layoutHint(m.result); path != "" {
		fmt.Fprintf(&b, "\nFiles in %s\n", path)
	}

	b.WriteString("\n")
	b.WriteString(helpView)
	return b.String()
}

func layoutHint(result *tasks.RunResult) string {
	for _, t := range result.Tracks {
		if t.MediaPath != "" {
			return filepath.Dir(t.MediaPath)
		}
	}
	return ""
}

// Lookup is exposed for the tui command's --playlist flag, which skips the list views.
func (m *Model) Lookup(name string) error {
	cat, err := m.catalogSrc.Load()
	if err != nil {
		return err
	}
	pl, err := catalog.Lookup(cat, name)
	if err != nil {
		return err
	}
	m.catalog = cat
	m.playlistList.SetItems(playlistItems(cat))
	m.selectPlaylist(*pl)
	m.view = ConfirmView
	return nil
}
