package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgCatalogLoaded MsgKind = iota
	MsgProgress
	MsgTrackState
	MsgRunComplete
)

type catalogLoaded struct {
	catalog models.Catalog
	err     error
}

// TrackStatus is the most recent state change of a track in the running playlist.
type TrackStatus struct {
	Track models.Track
	State models.TrackState
}

type runComplete struct {
	result *tasks.RunResult
	err    error
}

// catalogLoadedMsg is the constructor for [MsgCatalogLoaded]
func catalogLoadedMsg(catalog models.Catalog, err error) Msg {
	return Msg{kind: MsgCatalogLoaded, data: catalogLoaded{catalog, err}}
}

// progressMsg is the constructor for [MsgProgress]
func progressMsg(event models.ProgressEvent) Msg {
	return Msg{kind: MsgProgress, data: event}
}

// trackStateMsg is the constructor for [MsgTrackState]
func trackStateMsg(status TrackStatus) Msg {
	return Msg{kind: MsgTrackState, data: status}
}

// runCompleteMsg is the constructor for [MsgRunComplete]
func runCompleteMsg(result *tasks.RunResult, err error) Msg {
	return Msg{kind: MsgRunComplete, data: runComplete{result, err}}
}
