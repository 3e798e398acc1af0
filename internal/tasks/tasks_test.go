package tasks

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tapedeck/internal/broadcast"
	"github.com/desertthunder/tapedeck/internal/fetcher"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	tu "github.com/desertthunder/tapedeck/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCatalog struct {
	catalog models.Catalog
	err     error
}

func (s *staticCatalog) Load() (models.Catalog, error) { return s.catalog, s.err }

type eventLog struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (l *eventLog) Publish(e models.ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) percentages() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Percentage)
	}
	return out
}

// gateResolver blocks every resolve until release is closed.
type gateResolver struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateResolver) Resolve(ctx context.Context, track models.Track) (models.ResolvedSource, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return models.ResolvedSource{}, nil
}

type memoryRecorder struct {
	mu       sync.Mutex
	begun    []*models.Run
	outcomes []models.TrackOutcome
	finished []*models.Run
	fail     bool
}

func (m *memoryRecorder) Begin(_ context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	run.SetID(shared.GenerateID())
	m.begun = append(m.begun, run)
	return nil
}

func (m *memoryRecorder) Record(_ context.Context, o models.TrackOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *memoryRecorder) Finish(_ context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, run)
	return nil
}

// slowReader yields one byte per read after a pause, keeping transfers in flight.
type slowReader struct {
	data  []byte
	delay time.Duration
}

func (s *slowReader) Read(p []byte) (int, error) {
	if len(s.data) == 0 {
		return 0, io.EOF
	}
	time.Sleep(s.delay)
	n := copy(p[:1], s.data)
	s.data = s.data[n:]
	return n, nil
}

// slowOpener streams the locator itself as the body.
type slowOpener struct {
	delay time.Duration
}

func (o slowOpener) Open(_ context.Context, locator string) (io.ReadCloser, int64, error) {
	return io.NopCloser(&slowReader{data: []byte(locator), delay: o.delay}), int64(len(locator)), nil
}

func roadTripResolver() *tu.FakeResolver {
	return &tu.FakeResolver{Sources: map[string]models.ResolvedSource{
		"Song A": {MediaLocator: mediaA, ArtLocator: artA},
		"Song B": {MediaLocator: mediaB},
	}}
}

func newEngine(t *testing.T, cat models.Catalog, resolver Resolver, pub Publisher, opts ...EngineOption) (*PipelineEngine, Layout) {
	t.Helper()
	p, layout := newProcessor(t, resolver, &tu.FakeTransport{}, false, 0)
	opts = append([]EngineOption{WithLogger(quietLogger())}, opts...)
	return NewPipelineEngine(&staticCatalog{catalog: cat}, p, pub, opts...), layout
}

func TestPipelineEngine_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("road trip", func(t *testing.T) {
		events := &eventLog{}
		engine, layout := newEngine(t, tu.RoadTrip(), roadTripResolver(), events)

		result, err := engine.Run(ctx, "Road Trip")
		require.NoError(t, err)
		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 2, result.Succeeded)
		assert.Equal(t, []int{50, 100}, events.percentages())
		tu.AssertFileExists(t, layout.MediaPath("song_a", false))
		tu.AssertFileExists(t, layout.MediaPath("song_b", false))
		tu.AssertFileExists(t, layout.ArtPath("song_a"))
		tu.AssertNoFile(t, layout.ArtPath("song_b"))
	})

	t.Run("road trip with unresolvable second track", func(t *testing.T) {
		events := &eventLog{}
		resolver := &tu.FakeResolver{Sources: map[string]models.ResolvedSource{"Song A": {MediaLocator: mediaA}}}
		engine, layout := newEngine(t, tu.RoadTrip(), resolver, events)

		result, err := engine.Run(ctx, "Road Trip")
		require.NoError(t, err)
		assert.Equal(t, []int{50, 100}, events.percentages())
		assert.Equal(t, 1, result.Succeeded)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Failures(), 1)
		assert.Equal(t, models.StateResolutionFailed, result.Failures()[0].State)
		tu.AssertFileExists(t, layout.MediaPath("song_a", false))
		tu.AssertNoFile(t, layout.MediaPath("song_b", false))
	})

	t.Run("unresolvable first track does not stop the second", func(t *testing.T) {
		events := &eventLog{}
		resolver := &tu.FakeResolver{Sources: map[string]models.ResolvedSource{"Song B": {MediaLocator: mediaB}}}
		engine, layout := newEngine(t, tu.RoadTrip(), resolver, events)

		result, err := engine.Run(ctx, "Road Trip")
		require.NoError(t, err)
		assert.Equal(t, []int{50, 100}, events.percentages())
		assert.Equal(t, models.StateComplete, result.Tracks[1].State)
		tu.AssertFileExists(t, layout.MediaPath("song_b", false))
	})

	t.Run("missing playlist publishes nothing", func(t *testing.T) {
		events := &eventLog{}
		engine, _ := newEngine(t, tu.RoadTrip(), roadTripResolver(), events)

		_, err := engine.Run(ctx, "road trip")
		assert.ErrorIs(t, err, shared.ErrPlaylistNotFound)
		assert.Empty(t, events.percentages())
	})

	t.Run("empty playlist completes without events", func(t *testing.T) {
		events := &eventLog{}
		engine, _ := newEngine(t, tu.RoadTrip(), roadTripResolver(), events)

		result, err := engine.Run(ctx, "Empty")
		require.NoError(t, err)
		assert.Zero(t, result.Total)
		assert.Empty(t, events.percentages())
	})

	t.Run("catalog errors are returned", func(t *testing.T) {
		p, _ := newProcessor(t, roadTripResolver(), &tu.FakeTransport{}, false, 0)
		engine := NewPipelineEngine(&staticCatalog{err: shared.ErrInvalidInput}, p, nil, WithLogger(quietLogger()))

		_, err := engine.Run(ctx, "Road Trip")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("three tracks round percentages", func(t *testing.T) {
		cat := models.Catalog{{Name: "Trio", Tracks: []models.Track{songA, songB, {Name: "Song C", Artist: "Artist Z"}}}}
		resolver := roadTripResolver()
		resolver.Sources["Song C"] = models.ResolvedSource{MediaLocator: "https://www.youtube.com/watch?v=ccccccccccc"}
		events := &eventLog{}
		engine, _ := newEngine(t, cat, resolver, events)

		_, err := engine.Run(ctx, "Trio")
		require.NoError(t, err)
		assert.Equal(t, []int{33, 67, 100}, events.percentages())
	})

	t.Run("rerun writes identical filenames", func(t *testing.T) {
		engine, layout := newEngine(t, tu.RoadTrip(), roadTripResolver(), nil)

		first, err := engine.Run(ctx, "Road Trip")
		require.NoError(t, err)
		second, err := engine.Run(ctx, "Road Trip")
		require.NoError(t, err)

		for i := range first.Tracks {
			assert.Equal(t, first.Tracks[i].MediaPath, second.Tracks[i].MediaPath)
		}
		tu.AssertFileExists(t, layout.MediaPath("song_a", false))
	})

	t.Run("cancellation stops between tracks", func(t *testing.T) {
		events := &eventLog{}
		cctx, cancel := context.WithCancel(ctx)
		p, _ := newProcessor(t, roadTripResolver(), &tu.FakeTransport{}, false, 0)
		p.OnTransition = func(_ models.Track, _, to models.TrackState) {
			if to == models.StateComplete {
				cancel()
			}
		}
		engine := NewPipelineEngine(&staticCatalog{catalog: tu.RoadTrip()}, p, events, WithLogger(quietLogger()))

		result, err := engine.Run(cctx, "Road Trip")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, result.Tracks, 1)
		assert.Equal(t, []int{50}, events.percentages())
	})

	t.Run("broadcaster subscribers see every event", func(t *testing.T) {
		b := broadcast.New()
		var got []models.ProgressEvent
		sub := b.Subscribe(func(e models.ProgressEvent) { got = append(got, e) })
		defer sub.Close()

		engine, _ := newEngine(t, tu.RoadTrip(), roadTripResolver(), b)
		_, err := engine.Run(ctx, "Road Trip")
		require.NoError(t, err)

		assert.Equal(t, []models.ProgressEvent{
			{Playlist: "Road Trip", Percentage: 50},
			{Playlist: "Road Trip", Percentage: 100},
		}, got)
	})
}

func TestPipelineEngine_RunGuard(t *testing.T) {
	gate := &gateResolver{entered: make(chan struct{}), release: make(chan struct{})}
	engine, _ := newEngine(t, tu.RoadTrip(), gate, nil)

	done := make(chan error, 1)
	go func() {
		_, err := engine.Run(context.Background(), "Road Trip")
		done <- err
	}()
	<-gate.entered

	_, err := engine.Run(context.Background(), "Road Trip")
	assert.ErrorIs(t, err, shared.ErrRunInProgress)
	assert.ErrorIs(t, engine.Start("Road Trip"), shared.ErrRunInProgress)
	assert.Equal(t, []string{"Road Trip"}, engine.Running())

	_, err = engine.Run(context.Background(), "Empty")
	assert.NoError(t, err, "other playlists may run concurrently")

	close(gate.release)
	require.NoError(t, <-done)
	assert.Empty(t, engine.Running())
}

func TestPipelineEngine_Start(t *testing.T) {
	t.Run("requires a name", func(t *testing.T) {
		engine, _ := newEngine(t, tu.RoadTrip(), roadTripResolver(), nil)
		assert.ErrorIs(t, engine.Start(""), shared.ErrMissingArgument)
	})

	t.Run("names are not trimmed", func(t *testing.T) {
		events := &eventLog{}
		engine, _ := newEngine(t, tu.RoadTrip(), roadTripResolver(), events)

		require.NoError(t, engine.Start(" Road Trip "))
		engine.Wait()
		assert.Empty(t, events.percentages(), "a padded name must not start Road Trip")
	})

	t.Run("runs in the background", func(t *testing.T) {
		events := &eventLog{}
		engine, layout := newEngine(t, tu.RoadTrip(), roadTripResolver(), events)

		require.NoError(t, engine.Start("Road Trip"))
		engine.Wait()

		assert.Equal(t, []int{50, 100}, events.percentages())
		tu.AssertFileExists(t, layout.MediaPath("song_b", false))
	})

	t.Run("unknown playlist is logged not returned", func(t *testing.T) {
		engine, _ := newEngine(t, tu.RoadTrip(), roadTripResolver(), nil)
		require.NoError(t, engine.Start("Nope"))
		engine.Wait()
		assert.Empty(t, engine.Running())
	})
}

func TestPipelineEngine_Recorder(t *testing.T) {
	t.Run("journals each track", func(t *testing.T) {
		rec := &memoryRecorder{}
		resolver := &tu.FakeResolver{Sources: map[string]models.ResolvedSource{"Song A": {MediaLocator: mediaA}}}
		engine, _ := newEngine(t, tu.RoadTrip(), resolver, nil, WithRecorder(rec))

		result, err := engine.Run(context.Background(), "Road Trip")
		require.NoError(t, err)

		require.Len(t, rec.finished, 1)
		run := rec.finished[0]
		assert.Equal(t, result.RunID, run.ID())
		assert.Equal(t, models.RunCompleted, run.Status())
		assert.Equal(t, 1, run.Succeeded())
		assert.Equal(t, 1, run.Failed())

		require.Len(t, rec.outcomes, 2)
		assert.Equal(t, 0, rec.outcomes[0].Position)
		assert.Equal(t, models.StateComplete, rec.outcomes[0].State)
		assert.Equal(t, models.StateResolutionFailed, rec.outcomes[1].State)
		assert.NotEmpty(t, rec.outcomes[1].Error)
	})

	t.Run("recorder failures do not fail the run", func(t *testing.T) {
		rec := &memoryRecorder{fail: true}
		events := &eventLog{}
		engine, _ := newEngine(t, tu.RoadTrip(), roadTripResolver(), events, WithRecorder(rec))

		result, err := engine.Run(context.Background(), "Road Trip")
		require.NoError(t, err)
		assert.Equal(t, 2, result.Succeeded)
		assert.Empty(t, rec.outcomes)
		assert.Equal(t, []int{50, 100}, events.percentages())
	})
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{1, 2, 50},
		{2, 2, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{0, 0, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.completed, tt.total), "%d/%d", tt.completed, tt.total)
	}
}

func TestMirrorAll(t *testing.T) {
	t.Run("runs each playlist", func(t *testing.T) {
		engine, _ := newEngine(t, tu.RoadTrip(), roadTripResolver(), nil)
		prog := make(chan ProgressUpdate, 16)
		manifest := t.TempDir() + "/manifest.json"

		result, err := engine.MirrorAll(context.Background(), prog, []string{"Road Trip", "Missing", "Empty"}, MirrorOpts{
			NumWorkers:   2,
			RateLimit:    100,
			ManifestPath: manifest,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, result.TotalPlaylists)
		assert.Equal(t, 2, result.SuccessfulPlaylists)
		assert.Equal(t, 1, result.FailedPlaylists)
		assert.Equal(t, manifest, result.ManifestPath)
		assert.Contains(t, tu.MustReadFile(t, manifest), `"successful_playlists": 2`)

		for _, r := range result.Results {
			if r.Playlist == "Missing" {
				assert.Contains(t, r.Error, shared.ErrPlaylistNotFound.Error())
			}
		}
		assert.NotEmpty(t, prog)
	})

	t.Run("concurrent playlists sharing a track", func(t *testing.T) {
		song := models.Track{Name: "Shared Song", Artist: "Artist Z"}
		cat := models.Catalog{
			{Name: "P1", Tracks: []models.Track{song}},
			{Name: "P2", Tracks: []models.Track{song}},
		}
		resolver := &tu.FakeResolver{Sources: map[string]models.ResolvedSource{
			"Shared Song": {MediaLocator: "https://cdn.example/shared_song"},
		}}
		transport := &fetcher.StreamTransport{Opener: slowOpener{delay: 2 * time.Millisecond}}
		layout := NewLayout(t.TempDir())
		f := fetcher.New(fetcher.Options{Media: transport, Direct: transport, Logger: quietLogger()})
		p := NewTrackProcessor(resolver, f, layout, false, quietLogger())
		engine := NewPipelineEngine(&staticCatalog{catalog: cat}, p, nil, WithLogger(quietLogger()))

		result, err := engine.MirrorAll(context.Background(), nil, []string{"P1", "P2"}, MirrorOpts{
			NumWorkers: 2,
			RateLimit:  1000,
		})
		require.NoError(t, err)
		require.Len(t, result.Results, 2)
		for _, r := range result.Results {
			assert.Equal(t, 1, r.Succeeded, "%s: %s", r.Playlist, r.Error)
			assert.Zero(t, r.Failed, r.Playlist)
		}

		dest := layout.MediaPath("shared_song", false)
		assert.Equal(t, "https://cdn.example/shared_song", tu.MustReadFile(t, dest))
		parts, err := filepath.Glob(filepath.Join(layout.SongsDir, "*.part"))
		require.NoError(t, err)
		assert.Empty(t, parts)
	})

	t.Run("honors cancellation", func(t *testing.T) {
		engine, _ := newEngine(t, tu.RoadTrip(), roadTripResolver(), nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := engine.MirrorAll(ctx, nil, []string{"Road Trip"}, MirrorOpts{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, result.SuccessfulPlaylists)
	})
}

func TestProgressUpdate_NonBlocking(t *testing.T) {
	engine, _ := newEngine(t, tu.RoadTrip(), roadTripResolver(), nil)
	prog := make(chan ProgressUpdate)

	done := make(chan struct{})
	go func() {
		engine.sendProgress(prog, mirroringUpdate(1, 1, "Road Trip"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sendProgress blocked on a full channel")
	}
}
