package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Download runs one playlist, or with --all every playlist, through the pipeline and prints each progress event.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("playlist")
	all := cmd.Bool("all")

	if name == "" && !all {
		return fmt.Errorf("%w: playlist name or --all", shared.ErrMissingArgument)
	}
	if name != "" && all {
		return fmt.Errorf("%w: cannot combine a playlist name with --all", shared.ErrInvalidArgument)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := r.newPipeline(pipelineOpts{
		transcode: cmd.Bool("transcode"),
		backend:   cmd.String("backend"),
		journal:   true,
	})
	if err != nil {
		return err
	}
	defer p.Close()

	var mu sync.Mutex
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		r.writePlain(format, args...)
	}

	sub := r.events.Subscribe(func(ev models.ProgressEvent) {
		printf("%s: %d%%\n", ev.Playlist, ev.Percentage)
	})
	defer sub.Close()

	p.processor.OnTransition = func(track models.Track, _, to models.TrackState) {
		switch {
		case to == models.StateComplete:
			printf("  ✓ %s\n", track)
		case to.Failed():
			printf("  ✗ %s (%s)\n", track, to)
		}
	}

	if all {
		return r.downloadAll(ctx, p, cmd, printf)
	}
	return r.downloadOne(ctx, p, name)
}

func (r *Runner) downloadOne(ctx context.Context, p *pipeline, name string) error {
	r.writePlain("Downloading %s...\n\n", name)

	result, err := p.engine.Run(ctx, name)
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Download Complete!")
	r.writePlain("Playlist: %s\n", result.Playlist)
	r.writePlain("Downloaded: %d/%d\n", result.Succeeded, result.Total)
	r.writePlain("Songs: %s\n", r.config.Library.SongsPath())
	if result.RunID != "" {
		r.writePlain("Run: %s\n", result.RunID)
	}

	if failures := result.Failures(); len(failures) > 0 {
		r.writePlain("\nFailed %d tracks:\n", len(failures))
		for _, f := range failures {
			r.writePlain("  - %s (%s)", f.Track, f.State)
			if f.Err != nil {
				r.writePlain(": %v", f.Err)
			}
			r.writePlain("\n")
		}
	}
	return nil
}

func (r *Runner) downloadAll(ctx context.Context, p *pipeline, cmd *cli.Command, printf func(string, ...any)) error {
	names, err := r.store().Names()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return r.writePlain("The catalog is empty. Run 'tapedeck catalog fetch' first.\n")
	}

	workers := int(cmd.Int("workers"))
	if workers <= 0 {
		workers = r.config.Pipeline.Workers
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			printf("%s\n", update.Message)
		}
	}()

	result, err := p.engine.MirrorAll(ctx, progressCh, names, tasks.MirrorOpts{
		NumWorkers:   workers,
		ManifestPath: cmd.String("manifest"),
	})
	close(progressCh)
	<-done

	if result != nil {
		r.writePlain("\n")
		r.writePlainHeader("Download Complete!")
		r.writePlain("Playlists: %d/%d succeeded\n", result.SuccessfulPlaylists, result.TotalPlaylists)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %s\n", res.Playlist, res.Error)
			}
		}
		if result.ManifestPath != "" {
			r.writePlain("Manifest: %s\n", result.ManifestPath)
		}
	}
	return err
}
