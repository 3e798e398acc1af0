package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/fetcher"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// Resolver finds the media and cover-art locators for a track.
type Resolver interface {
	Resolve(ctx context.Context, track models.Track) (models.ResolvedSource, error)
}

// Fetcher transfers remote files to disk and converts downloaded media.
type Fetcher interface {
	Fetch(ctx context.Context, locator, dest string) error
	Convert(ctx context.Context, src, dest string) error
}

// transitions lists the states reachable from each non-terminal state.
var transitions = map[models.TrackState][]models.TrackState{
	models.StatePending:     {models.StateResolving},
	models.StateResolving:   {models.StateResolutionFailed, models.StateResolved},
	models.StateResolved:    {models.StateDownloading},
	models.StateDownloading: {models.StateDownloadFailed, models.StateDownloaded},
	models.StateDownloaded:  {models.StateConverting, models.StateComplete},
	models.StateConverting:  {models.StateConversionFailed, models.StateComplete},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to models.TrackState) bool {
	return slices.Contains(transitions[from], to)
}

// Layout maps normalized keys to file paths under the output root.
type Layout struct {
	SongsDir string
	ArtDir   string
}

// NewLayout returns the songs/ and album-art/ layout under root.
func NewLayout(root string) Layout {
	return Layout{SongsDir: filepath.Join(root, "songs"), ArtDir: filepath.Join(root, "album-art")}
}

// MediaPath is {songs}/{key}.mp3 when transcoding and {songs}/{key}.webm otherwise.
func (l Layout) MediaPath(key string, transcode bool) string {
	ext := ".webm"
	if transcode {
		ext = ".mp3"
	}
	return filepath.Join(l.SongsDir, key+ext)
}

// ArtPath is {album-art}/{key}.jpg.
func (l Layout) ArtPath(key string) string {
	return filepath.Join(l.ArtDir, key+".jpg")
}

// TrackResult is the outcome of processing one track. Failures are reported here, never as a returned error.
type TrackResult struct {
	Track     models.Track
	State     models.TrackState
	Source    models.ResolvedSource
	MediaPath string // set once media is on disk
	ArtPath   string // set only when art was saved
	Err       error
}

// Succeeded reports whether the track reached Complete.
func (r TrackResult) Succeeded() bool {
	return r.State == models.StateComplete
}

// Outcome converts the result to a journal record.
func (r TrackResult) Outcome(runID string, position int) models.TrackOutcome {
	outcome := models.TrackOutcome{
		RunID:     runID,
		Position:  position,
		Track:     r.Track,
		State:     r.State,
		MediaPath: r.MediaPath,
		ArtPath:   r.ArtPath,
	}
	if r.Err != nil {
		outcome.Error = r.Err.Error()
	}
	return outcome
}

// keyLocks serializes writers of the same normalized key.
//
// Runs of different playlists may overlap and share tracks; their media, temp and art paths are derived
// from the key alone. The zero value is ready to use.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

// lock blocks until key is free and returns the matching unlock.
func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		defer k.mu.Unlock()
		if l.refs--; l.refs == 0 {
			delete(k.locks, key)
		}
	}
}

// TransitionFunc observes a state change.
type TransitionFunc func(track models.Track, from, to models.TrackState)

// TrackProcessor drives one track through resolve, download and optional conversion.
type TrackProcessor struct {
	resolver  Resolver
	fetcher   Fetcher
	layout    Layout
	transcode bool
	logger    *log.Logger
	keys      keyLocks

	// OnTransition, when set, is called after every state change.
	OnTransition TransitionFunc
}

// NewTrackProcessor creates a processor writing under layout. transcode selects MP3 output.
func NewTrackProcessor(resolver Resolver, fetcher Fetcher, layout Layout, transcode bool, logger *log.Logger) *TrackProcessor {
	if logger == nil {
		logger = log.Default()
	}
	return &TrackProcessor{resolver: resolver, fetcher: fetcher, layout: layout, transcode: transcode, logger: logger}
}

// Transcode reports whether media is converted to MP3.
func (p *TrackProcessor) Transcode() bool { return p.transcode }

// Layout returns the output layout.
func (p *TrackProcessor) Layout() Layout { return p.layout }

type trackRun struct {
	p      *TrackProcessor
	result TrackResult
}

func (t *trackRun) move(to models.TrackState) {
	from := t.result.State
	if !CanTransition(from, to) {
		panic(fmt.Sprintf("invalid track transition %s -> %s", from, to))
	}
	t.result.State = to
	t.p.logger.Debug("track transition", "track", t.result.Track.Name, "from", from, "to", to)
	if t.p.OnTransition != nil {
		t.p.OnTransition(t.result.Track, from, to)
	}
}

func (t *trackRun) fail(to models.TrackState, err error) TrackResult {
	t.move(to)
	t.result.Err = err
	t.p.logger.Error("track failed",
		"name", t.result.Track.Name,
		"artist", t.result.Track.Artist,
		"state", to,
		"error", err)
	return t.result
}

// Process runs track to a terminal state.
//
// Cover art is fetched only after the media succeeds and its failure does not change the outcome.
// Writes for one normalized key are serialized across concurrent calls.
func (p *TrackProcessor) Process(ctx context.Context, track models.Track) TrackResult {
	t := &trackRun{p: p, result: TrackResult{Track: track, State: models.StatePending}}
	key := track.Key()

	t.move(models.StateResolving)
	source, err := p.resolver.Resolve(ctx, track)
	t.result.Source = source
	if !source.HasMedia() {
		if err == nil {
			err = fmt.Errorf("%w: no media found for %q", shared.ErrSourceUnavailable, track.Query())
		}
		return t.fail(models.StateResolutionFailed, err)
	}
	if err != nil {
		p.logger.Warn("partial resolution", "name", track.Name, "artist", track.Artist, "error", err)
	}
	t.move(models.StateResolved)

	unlock := p.keys.lock(key)
	defer unlock()

	dest := p.layout.MediaPath(key, p.transcode)
	download := dest
	if p.transcode {
		download = fetcher.TempPath(dest)
	}

	t.move(models.StateDownloading)
	if err := p.fetcher.Fetch(ctx, source.MediaLocator, download); err != nil {
		return t.fail(models.StateDownloadFailed, err)
	}
	t.move(models.StateDownloaded)

	if p.transcode {
		t.move(models.StateConverting)
		if err := p.fetcher.Convert(ctx, download, dest); err != nil {
			return t.fail(models.StateConversionFailed, err)
		}
	}
	t.result.MediaPath = dest

	if source.HasArt() {
		artPath := p.layout.ArtPath(key)
		if err := p.fetcher.Fetch(ctx, source.ArtLocator, artPath); err != nil {
			p.logger.Warn("cover art download failed", "name", track.Name, "artist", track.Artist, "error", err)
		} else {
			t.result.ArtPath = artPath
		}
	}

	t.move(models.StateComplete)
	p.logger.Info("track complete", "name", track.Name, "artist", track.Artist, "path", dest)
	return t.result
}
