package models

import (
	"fmt"
	"time"
)

// RunStatus describes where a run is in its lifecycle.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the journal entry for one pipeline run over a playlist.
type Run struct {
	id         string
	sequence   int
	playlist   string
	status     RunStatus
	total      int
	succeeded  int
	failed     int
	err        string
	startedAt  time.Time
	finishedAt *time.Time
	createdAt  time.Time
	updatedAt  time.Time
	deletedAt  *time.Time
}

// NewRun creates a running journal entry for playlist with total tracks.
func NewRun(playlist string, total int) *Run {
	now := time.Now()
	return &Run{
		playlist:  playlist,
		status:    RunRunning,
		total:     total,
		startedAt: now,
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreRun rebuilds a Run from stored columns.
func RestoreRun(
	id string, sequence int, playlist string, status RunStatus,
	total, succeeded, failed int, errText string,
	startedAt time.Time, finishedAt *time.Time, createdAt, updatedAt time.Time, deletedAt *time.Time,
) *Run {
	return &Run{
		id: id, sequence: sequence, playlist: playlist, status: status,
		total: total, succeeded: succeeded, failed: failed, err: errText,
		startedAt: startedAt, finishedAt: finishedAt,
		createdAt: createdAt, updatedAt: updatedAt, deletedAt: deletedAt,
	}
}

func (r *Run) ID() string               { return r.id }
func (r *Run) Sequence() int            { return r.sequence }
func (r *Run) Playlist() string         { return r.playlist }
func (r *Run) Status() RunStatus        { return r.status }
func (r *Run) Total() int               { return r.total }
func (r *Run) Succeeded() int           { return r.succeeded }
func (r *Run) Failed() int              { return r.failed }
func (r *Run) ErrorText() string        { return r.err }
func (r *Run) StartedAt() time.Time     { return r.startedAt }
func (r *Run) FinishedAt() *time.Time   { return r.finishedAt }
func (r *Run) CreatedAt() time.Time     { return r.createdAt }
func (r *Run) UpdatedAt() time.Time     { return r.updatedAt }
func (r *Run) DeletedAt() *time.Time    { return r.deletedAt }
func (r *Run) SetID(id string)          { r.id = id }
func (r *Run) SetSequence(seq int)      { r.sequence = seq }
func (r *Run) SetUpdatedAt(t time.Time) { r.updatedAt = t }

// Processed returns how many tracks have reached a terminal state.
func (r *Run) Processed() int { return r.succeeded + r.failed }

// Count tallies one terminal track state.
func (r *Run) Count(state TrackState) {
	if state == StateComplete {
		r.succeeded++
	} else if state.Failed() {
		r.failed++
	}
}

// Finish marks the run finished; a non-nil err marks it failed.
func (r *Run) Finish(err error) {
	now := time.Now()
	r.finishedAt = &now
	r.updatedAt = now
	if err != nil {
		r.status = RunFailed
		r.err = err.Error()
		return
	}
	r.status = RunCompleted
}

// Duration is the wall time of a finished run, or the time elapsed so far.
func (r *Run) Duration() time.Duration {
	if r.finishedAt == nil {
		return time.Since(r.startedAt)
	}
	return r.finishedAt.Sub(r.startedAt)
}

func (r *Run) Validate() error {
	if r.playlist == "" {
		return fmt.Errorf("playlist is required")
	}
	if r.total < 0 {
		return fmt.Errorf("total must not be negative")
	}
	switch r.status {
	case RunRunning, RunCompleted, RunFailed:
	default:
		return fmt.Errorf("invalid status %q", r.status)
	}
	if r.Processed() > r.total {
		return fmt.Errorf("processed %d exceeds total %d", r.Processed(), r.total)
	}
	return nil
}

// TrackOutcome records the terminal state of one track in a run.
type TrackOutcome struct {
	ID        string     `json:"id"`
	RunID     string     `json:"run_id"`
	Position  int        `json:"position"`
	Track     Track      `json:"track"`
	State     TrackState `json:"-"`
	Error     string     `json:"error,omitempty"`
	MediaPath string     `json:"media_path,omitempty"`
	ArtPath   string     `json:"art_path,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
