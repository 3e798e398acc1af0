// Package web implements the HTTP surface of the mirror: Spotify login, catalog retrieval, run triggers,
// live progress over Server-Sent Events and a small JSON API over the catalog and the run journal.
//
// # Routes
//
//	GET  /login                       → 302 to the Spotify authorize page, state in a cookie
//	GET  /callback                    → state check, code exchange, 302 to /playlists?access_token=
//	GET  /playlists?access_token=     → catalog retrieval, writes the catalog file
//	POST /start-downloads?playlist=   → starts a run in the background
//	GET  /progress-updates            → SSE stream of progress events
//	GET  /api/catalog                 → the catalog as JSON
//	GET  /api/playlists/{name}/tracks → tracks with media_url and art_url
//	GET  /api/runs, /api/runs/{ref}   → run journal (only when a journal is configured)
//	GET  /songs/, /album-art/         → static media
//
// # Progress Streaming
//
// Each SSE client gets its own broadcaster subscription, removed when the request context ends.
// Events are framed as "data: <json>\n\n". Clients that read too slowly miss events rather than
// stall the pipeline.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/broadcast"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/repositories"
	"github.com/desertthunder/tapedeck/internal/server"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"golang.org/x/oauth2"
)

// Authorizer drives the Spotify authorization-code flow.
type Authorizer interface {
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// CatalogStore is the catalog file.
type CatalogStore interface {
	Load() (models.Catalog, error)
	Save(catalog models.Catalog) error
	Path() string
}

// Starter launches background runs.
type Starter interface {
	Start(playlist string) error
}

// History reads the run journal.
type History interface {
	Recent(playlist string, limit int) ([]*models.Run, error)
	Report(ref string) (*repositories.RunReport, error)
}

// CatalogFetcher retrieves the remote catalog with a user access token.
type CatalogFetcher func(ctx context.Context, accessToken string) (models.Catalog, error)

// Options configures an [App].
type Options struct {
	Auth      Authorizer
	Catalog   CatalogStore
	Fetch     CatalogFetcher
	Runner    Starter
	Events    *broadcast.Broadcaster
	History   History // optional
	Layout    tasks.Layout
	Transcode bool
	KeepAlive time.Duration // SSE comment interval, default 15s
	Logger    *log.Logger
}

// App holds the handlers of the HTTP surface.
type App struct {
	opts   Options
	logger *log.Logger
}

// New creates an App.
func New(opts Options) *App {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}
	if opts.Events == nil {
		opts.Events = broadcast.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &App{opts: opts, logger: logger}
}

// Register adds every route to r.
func (a *App) Register(r server.Router) {
	r.Handle(http.MethodGet, "/login", http.HandlerFunc(a.login))
	r.Handle(http.MethodGet, "/callback", http.HandlerFunc(a.callback))
	r.Handle(http.MethodGet, "/playlists", http.HandlerFunc(a.playlists))
	r.Handle(http.MethodPost, "/start-downloads", http.HandlerFunc(a.startDownloads))
	r.Handle(http.MethodGet, "/progress-updates", http.HandlerFunc(a.progressUpdates))
	r.Handle(http.MethodGet, "/api/catalog", http.HandlerFunc(a.catalogJSON))
	r.Handle(http.MethodGet, "/api/playlists/{name}/tracks", http.HandlerFunc(a.tracks))
	r.Handle(http.MethodGet, "/api/runs", http.HandlerFunc(a.runs))
	r.Handle(http.MethodGet, "/api/runs/{ref}", http.HandlerFunc(a.run))
	r.Handle(http.MethodGet, "/songs/", http.StripPrefix("/songs/", http.FileServer(http.Dir(a.opts.Layout.SongsDir))))
	r.Handle(http.MethodGet, "/album-art/", http.StripPrefix("/album-art/", http.FileServer(http.Dir(a.opts.Layout.ArtDir))))
}

// Handler returns a router with every route and the stock middleware.
func (a *App) Handler() http.Handler {
	r := server.NewBasicRouter()
	r.Use(server.Recover(a.logger), server.Logging(a.logger), server.CORS())
	a.Register(r)
	return r
}
