package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/samber/lo"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = trackItem{}
)

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	switch n := len(i.playlist.Tracks); n {
	case 0:
		return "empty"
	case 1:
		return "1 track"
	default:
		return fmt.Sprintf("%d tracks", n)
	}
}

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track models.Track
}

func (i trackItem) FilterValue() string { return i.track.Name + " " + i.track.Artist }
func (i trackItem) Title() string       { return i.track.Name }
func (i trackItem) Description() string {
	desc := i.track.Artist
	if i.track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}
	return desc
}

func playlistItems(catalog models.Catalog) []list.Item {
	return lo.Map(catalog, func(p models.Playlist, _ int) list.Item { return playlistItem{playlist: p} })
}

func trackItems(tracks []models.Track) []list.Item {
	return lo.Map(tracks, func(t models.Track, _ int) list.Item { return trackItem{track: t} })
}
