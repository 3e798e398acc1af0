// package tasks implements the per-track state machine and the playlist mirroring pipeline.
//
// The core abstraction is PipelineEngine, which runs every track of a catalog playlist through a TrackProcessor.
// Runs publish one ProgressEvent per processed track to a Publisher.
package tasks

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/catalog"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/samber/lo"
)

// CatalogSource loads the current catalog.
type CatalogSource interface {
	Load() (models.Catalog, error)
}

// Publisher receives progress events.
type Publisher interface {
	Publish(event models.ProgressEvent)
}

// RunRecorder journals runs. Its errors are logged and never fail a run.
type RunRecorder interface {
	Begin(ctx context.Context, run *models.Run) error
	Record(ctx context.Context, outcome models.TrackOutcome) error
	Finish(ctx context.Context, run *models.Run) error
}

// RunResult contains all data from one run over a playlist.
type RunResult struct {
	RunID      string
	Playlist   string
	Total      int
	Succeeded  int
	Failed     int
	Tracks     []TrackResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Percentage is the share of tracks processed so far.
func (r *RunResult) Percentage() int {
	return Percentage(len(r.Tracks), r.Total)
}

// Failures returns the results that did not complete.
func (r *RunResult) Failures() []TrackResult {
	return lo.Filter(r.Tracks, func(t TrackResult, _ int) bool { return !t.Succeeded() })
}

// Percentage returns round(completed/total*100), rounding halves away from zero. An empty total is 100.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// Engine runs playlists through the pipeline.
type Engine interface {
	// Run mirrors one playlist and blocks until every track is processed.
	Run(ctx context.Context, playlist string) (*RunResult, error)

	// Start launches Run in the background and returns once the run is claimed.
	Start(playlist string) error

	// MirrorAll runs several playlists with a bounded worker pool.
	MirrorAll(ctx context.Context, prog chan<- ProgressUpdate, names []string, opts MirrorOpts) (*MirrorResult, error)
}

// PipelineEngine implements Engine.
type PipelineEngine struct {
	catalog   CatalogSource
	processor *TrackProcessor
	publisher Publisher
	recorder  RunRecorder
	logger    *log.Logger

	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// EngineOption customizes a [PipelineEngine].
type EngineOption func(*PipelineEngine)

// WithRecorder journals every run to r.
func WithRecorder(r RunRecorder) EngineOption {
	return func(e *PipelineEngine) { e.recorder = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) EngineOption {
	return func(e *PipelineEngine) { e.logger = l }
}

// NewPipelineEngine creates a PipelineEngine. publisher may be nil.
func NewPipelineEngine(src CatalogSource, processor *TrackProcessor, publisher Publisher, opts ...EngineOption) *PipelineEngine {
	e := &PipelineEngine{
		catalog:   src,
		processor: processor,
		publisher: publisher,
		logger:    log.Default(),
		running:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// claim takes the per-playlist run guard.
func (e *PipelineEngine) claim(playlist string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.running[playlist]; busy {
		return fmt.Errorf("%w: %s", shared.ErrRunInProgress, playlist)
	}
	e.running[playlist] = struct{}{}
	return nil
}

func (e *PipelineEngine) release(playlist string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, playlist)
}

// Running lists the playlists with a run in flight, sorted by name.
func (e *PipelineEngine) Running() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.running))
	for name := range e.running {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run mirrors the named playlist.
//
// Only [shared.ErrPlaylistNotFound], [shared.ErrRunInProgress], catalog load errors
// and cancellation are returned; per-track failures are reported in the result.
func (e *PipelineEngine) Run(ctx context.Context, playlist string) (*RunResult, error) {
	if err := e.claim(playlist); err != nil {
		return nil, err
	}
	defer e.release(playlist)
	return e.run(ctx, playlist)
}

// Start claims playlist and runs it in the background with a context that is never cancelled.
func (e *PipelineEngine) Start(playlist string) error {
	if playlist == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}
	if err := e.claim(playlist); err != nil {
		return err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.release(playlist)

		if _, err := e.run(context.Background(), playlist); err != nil {
			e.logger.Error("background run failed", "playlist", playlist, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every run launched by Start has returned.
func (e *PipelineEngine) Wait() {
	e.wg.Wait()
}

func (e *PipelineEngine) run(ctx context.Context, playlist string) (*RunResult, error) {
	cat, err := e.catalog.Load()
	if err != nil {
		return nil, err
	}

	pl, err := catalog.Lookup(cat, playlist)
	if err != nil {
		return nil, err
	}
	tracks := pl.Tracks

	total := len(tracks)
	result := &RunResult{
		Playlist:  playlist,
		Total:     total,
		Tracks:    make([]TrackResult, 0, total),
		StartedAt: time.Now(),
	}

	journal := models.NewRun(playlist, total)
	e.begin(ctx, journal)
	result.RunID = journal.ID()

	e.logger.Info("run started", "playlist", playlist, "tracks", total, "transcode", e.processor.Transcode())

	var runErr error
	for i, track := range tracks {
		if err := ctx.Err(); err != nil {
			runErr = err
			e.logger.Warn("run cancelled", "playlist", playlist, "processed", i, "total", total)
			break
		}

		res := e.processor.Process(ctx, track)
		result.Tracks = append(result.Tracks, res)
		if res.Succeeded() {
			result.Succeeded++
		} else {
			result.Failed++
		}

		journal.Count(res.State)
		e.record(ctx, res.Outcome(journal.ID(), i))
		e.publish(models.ProgressEvent{Playlist: playlist, Percentage: Percentage(i+1, total)})
	}

	result.FinishedAt = time.Now()
	journal.Finish(runErr)
	e.finish(ctx, journal)

	e.logger.Info("run finished",
		"playlist", playlist,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"elapsed", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))

	return result, runErr
}

func (e *PipelineEngine) publish(event models.ProgressEvent) {
	if e.publisher != nil {
		e.publisher.Publish(event)
	}
}

func (e *PipelineEngine) begin(ctx context.Context, run *models.Run) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Begin(context.WithoutCancel(ctx), run); err != nil {
		e.logger.Warn("journal begin failed", "playlist", run.Playlist(), "error", err)
	}
}

func (e *PipelineEngine) record(ctx context.Context, outcome models.TrackOutcome) {
	if e.recorder == nil || outcome.RunID == "" {
		return
	}
	if err := e.recorder.Record(context.WithoutCancel(ctx), outcome); err != nil {
		e.logger.Warn("journal record failed", "track", outcome.Track.Name, "error", err)
	}
}

func (e *PipelineEngine) finish(ctx context.Context, run *models.Run) {
	if e.recorder == nil || run.ID() == "" {
		return
	}
	if err := e.recorder.Finish(context.WithoutCancel(ctx), run); err != nil {
		e.logger.Warn("journal finish failed", "playlist", run.Playlist(), "error", err)
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PipelineEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
