package models

import (
	"github.com/desertthunder/tapedeck/internal/shared"
)

// Track identifies one song in the catalog.
//
// Only these three attributes are ever persisted.
type Track struct {
	Name   string `json:"name"`
	Artist string `json:"artist"` // collaborators joined with ", "
	Album  string `json:"album"`
}

// Key returns the normalized filename stem for the track.
func (t Track) Key() string {
	return shared.NormalizeKey(t.Name)
}

// Query is the search text used to resolve the track.
func (t Track) Query() string {
	return t.Name + " " + t.Artist
}

func (t Track) String() string {
	return t.Artist + " - " + t.Name
}

// Playlist is a named, ordered list of tracks.
type Playlist struct {
	Name   string  `json:"playlist"`
	Tracks []Track `json:"tracks"`
}

// Catalog is the ordered collection of playlists mirrored from the remote service.
type Catalog []Playlist

// ResolvedSource holds the locators found for a track during one run.
//
// An empty locator means nothing was found.
type ResolvedSource struct {
	MediaLocator string
	ArtLocator   string
}

// HasMedia reports whether a media locator was found.
func (r ResolvedSource) HasMedia() bool { return r.MediaLocator != "" }

// HasArt reports whether an art locator was found.
func (r ResolvedSource) HasArt() bool { return r.ArtLocator != "" }

// ProgressEvent is emitted once per processed track, successful or not.
type ProgressEvent struct {
	Playlist   string `json:"playlist"`
	Percentage int    `json:"percentage"`
}

// TrackState is a state in the per-track processing state machine.
type TrackState int

const (
	StatePending TrackState = iota
	StateResolving
	StateResolutionFailed
	StateResolved
	StateDownloading
	StateDownloadFailed
	StateDownloaded
	StateConverting
	StateConversionFailed
	StateComplete
)

func (s TrackState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolving:
		return "resolving"
	case StateResolutionFailed:
		return "resolution_failed"
	case StateResolved:
		return "resolved"
	case StateDownloading:
		return "downloading"
	case StateDownloadFailed:
		return "download_failed"
	case StateDownloaded:
		return "downloaded"
	case StateConverting:
		return "converting"
	case StateConversionFailed:
		return "conversion_failed"
	case StateComplete:
		return "complete"
	default:
		return ""
	}
}

// ParseTrackState is the inverse of [TrackState.String].
func ParseTrackState(s string) (TrackState, bool) {
	for st := StatePending; st <= StateComplete; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return StatePending, false
}

// Terminal reports whether no further transitions are possible.
func (s TrackState) Terminal() bool {
	switch s {
	case StateResolutionFailed, StateDownloadFailed, StateConversionFailed, StateComplete:
		return true
	}
	return false
}

// Failed reports whether the state is a terminal failure.
func (s TrackState) Failed() bool {
	return s.Terminal() && s != StateComplete
}
