package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a multi-playlist operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LoadCatalog Phase = iota
	MirrorPlaylist
)

func (p Phase) String() string {
	switch p {
	case LoadCatalog:
		return "load_catalog"
	case MirrorPlaylist:
		return "mirror_playlist"
	default:
		return ""
	}
}

func loadingCatalogUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadCatalog,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Queueing %d playlists...", total),
	}
}

func mirroringUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MirrorPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Mirroring: %s...", step, total, name),
	}
}

func mirrorCompletedUpdate(step, total int, res *RunResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MirrorPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d/%d tracks)", step, total, res.Playlist, res.Succeeded, res.Total),
		Data:    res,
	}
}

func mirrorFailedUpdate(step, total int, name, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MirrorPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, name, reason),
	}
}
