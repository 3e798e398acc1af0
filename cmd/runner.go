package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/broadcast"
	"github.com/desertthunder/tapedeck/internal/catalog"
	"github.com/desertthunder/tapedeck/internal/fetcher"
	"github.com/desertthunder/tapedeck/internal/repositories"
	"github.com/desertthunder/tapedeck/internal/resolver"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    *services.SpotifyService
	events     *broadcast.Broadcaster
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    *services.SpotifyService
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		events:     broadcast.New(),
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:     "tapedeck",
		Usage:    "Mirror Spotify playlists to local audio files",
		Version:  "0.1.0",
		Flags:    r.globalFlags(),
		Before:   r.before,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, catalogCommand, downloadCommand, serveCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   defaultConfigPath,
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

// before reloads the config when --config names another file and applies --verbose.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.IsSet("config") && cmd.String("config") != r.configPath {
		path := cmd.String("config")
		r.configPath = path

		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			config.ApplyEnv()
			r.config = config
			r.spotify = nil
			if svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map()); err == nil {
				r.spotify = svc
			}
		}
	}

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// fileLogger opens a log file at the current level.
func (r *Runner) fileLogger(path string) (*log.Logger, error) {
	l, err := shared.NewFileLogger(path)
	if err != nil {
		return nil, err
	}
	l.SetLevel(r.logger.GetLevel())
	return l, nil
}

func (r *Runner) store() *catalog.Store {
	return catalog.NewStore(r.config.Library.Catalog)
}

func (r *Runner) layout() tasks.Layout {
	return tasks.Layout{SongsDir: r.config.Library.SongsPath(), ArtDir: r.config.Library.ArtPath()}
}

// requireSpotify returns the Spotify collaborator with the saved user token installed.
//
// Refreshed tokens are written back to the config file.
func (r *Runner) requireSpotify(ctx context.Context) (*services.SpotifyService, error) {
	if r.spotify == nil {
		return nil, fmt.Errorf("%w: set credentials.spotify.client_id and client_secret", shared.ErrMissingCredentials)
	}

	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: run `tapedeck auth` first", shared.ErrNotAuthenticated)
	}

	r.spotify.SetTokenRefreshCallback(func(t *oauth2.Token) {
		if err := r.config.Credentials.Spotify.Update(t); err != nil {
			r.logger.Warn("refreshed token rejected", "error", err)
			return
		}
		if r.configPath == "" {
			return
		}
		if err := shared.SaveConfig(r.configPath, r.config); err != nil {
			r.logger.Warn("failed to save refreshed token", "error", err)
		}
	})
	r.spotify.SetToken(ctx, token)
	return r.spotify, nil
}

// pipelineOpts selects per-invocation overrides of the [shared.PipelineConfig].
type pipelineOpts struct {
	transcode bool
	backend   string
	journal   bool
}

// pipeline is one fully wired acquisition pipeline.
type pipeline struct {
	engine    *tasks.PipelineEngine
	processor *tasks.TrackProcessor
	resolver  *resolver.Resolver
	journal   *repositories.Journal
	db        *sql.DB
}

// Close stops the resolver cache and closes the journal database.
func (p *pipeline) Close() error {
	p.resolver.Stop()
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// newPipeline wires resolver, fetcher, processor and engine from the config.
//
// With opts.journal set, runs are recorded to the SQLite journal; a journal that cannot be opened is logged and skipped.
func (r *Runner) newPipeline(opts pipelineOpts) (*pipeline, error) {
	cfg := r.config.Pipeline

	ytClient, err := shared.NewYouTubeClient(r.config.Credentials.YouTube.HeadersPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load youtube headers: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.SearchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SearchRate), 1)
	}

	var art resolver.ArtSearcher
	if r.spotify != nil {
		art = r.spotify
	}

	res := resolver.New(services.NewYouTubeService("", ytClient), art, resolver.Options{
		Limiter:   limiter,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL.Duration,
		Logger:    shared.WithLogger(r.logger, "component", "resolver"),
	})

	backend := cfg.Backend
	if opts.backend != "" {
		backend = opts.backend
	}
	media, err := fetcher.NewTransport(backend, cfg.YtDlp, ytClient, r.logger)
	if err != nil {
		res.Stop()
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	fetch := fetcher.New(fetcher.Options{
		Media: media,
		FFmpeg: fetcher.FFmpeg{
			Path:       cfg.FFmpeg,
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
			Bitrate:    cfg.Bitrate,
		},
		Logger: shared.WithLogger(r.logger, "component", "fetcher"),
	})

	processor := tasks.NewTrackProcessor(res, fetch, r.layout(), opts.transcode || cfg.Transcode, r.logger)
	p := &pipeline{processor: processor, resolver: res}

	engineOpts := []tasks.EngineOption{tasks.WithLogger(r.logger)}
	if opts.journal {
		if db, err := shared.OpenDatabase(r.config.Database); err != nil {
			r.logger.Warn("run journal unavailable", "path", r.config.Database.Path, "error", err)
		} else {
			p.db = db
			p.journal = repositories.NewJournal(db)
			engineOpts = append(engineOpts, tasks.WithRecorder(p.journal))
		}
	}

	p.engine = tasks.NewPipelineEngine(r.store(), processor, r.events, engineOpts...)
	return p, nil
}

// openJournal opens the run journal for read-only commands.
func (r *Runner) openJournal() (*repositories.Journal, func(), error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run journal: %w", err)
	}
	return repositories.NewJournal(db), func() { db.Close() }, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
