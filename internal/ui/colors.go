package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/tapedeck/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF4C4C", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

// State picks the style for a track state: failures in red, completion in green, the rest muted.
func (p *Palette) State(s models.TrackState) lipgloss.Style {
	switch {
	case s == models.StateComplete:
		return p.ok
	case s.Failed():
		return p.err
	default:
		return p.help
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
