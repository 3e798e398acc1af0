package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/desertthunder/tapedeck/internal/shared"
	"golang.org/x/time/rate"
)

// MirrorOpts contains configuration for mirroring several playlists.
type MirrorOpts struct {
	NumWorkers   int     // Concurrent runs (default: 1)
	RateLimit    float64 // Run launches per second (default: 1)
	ManifestPath string  // Optional JSON summary written after all runs
}

// PlaylistMirrorResult is the outcome of one playlist within MirrorAll.
type PlaylistMirrorResult struct {
	Playlist  string `json:"playlist"`
	Success   bool   `json:"success"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	RunID     string `json:"run_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// MirrorResult summarizes a MirrorAll call.
type MirrorResult struct {
	TotalPlaylists      int                    `json:"total_playlists"`
	SuccessfulPlaylists int                    `json:"successful_playlists"`
	FailedPlaylists     int                    `json:"failed_playlists"`
	Results             []PlaylistMirrorResult `json:"results"`
	ManifestPath        string                 `json:"-"`
}

// MirrorAll runs each named playlist through [PipelineEngine.Run] with a worker pool.
//
// Launches are rate limited. A playlist that fails (not found, already running) does not stop the others.
// Results are in completion order.
func (e *PipelineEngine) MirrorAll(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	names []string,
	opts MirrorOpts,
) (*MirrorResult, error) {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1.0
	}

	result := &MirrorResult{
		TotalPlaylists: len(names),
		Results:        make([]PlaylistMirrorResult, 0, len(names)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan string, len(names))
	results := make(chan PlaylistMirrorResult, len(names))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.mirrorWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		e.sendProgress(prog, loadingCatalogUpdate(len(names)))
		for i, name := range names {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- name
			e.sendProgress(prog, mirroringUpdate(i+1, len(names), name))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulPlaylists++
			e.sendProgress(prog, mirrorCompletedUpdate(completed, len(names), &RunResult{
				Playlist: res.Playlist, Total: res.Total, Succeeded: res.Succeeded, Failed: res.Failed,
			}))
		} else {
			result.FailedPlaylists++
			e.sendProgress(prog, mirrorFailedUpdate(completed, len(names), res.Playlist, res.Error))
		}
	}

	if opts.ManifestPath != "" {
		if err := writeManifest(result, opts.ManifestPath); err != nil {
			return result, fmt.Errorf("mirror completed but failed to write manifest: %w", err)
		}
		result.ManifestPath = opts.ManifestPath
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// mirrorWorker is a worker goroutine that runs playlists from the jobs channel.
func (e *PipelineEngine) mirrorWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan string,
	results chan<- PlaylistMirrorResult,
) {
	defer wg.Done()

	for name := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res := PlaylistMirrorResult{Playlist: name}
		run, err := e.Run(ctx, name)
		if run != nil {
			res.Total, res.Succeeded, res.Failed, res.RunID = run.Total, run.Succeeded, run.Failed, run.RunID
		}
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Success = true
		}
		results <- res
	}
}

func writeManifest(result *MirrorResult, path string) error {
	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
