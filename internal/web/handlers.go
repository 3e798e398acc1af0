package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/desertthunder/tapedeck/internal/catalog"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/server"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

const stateCookie = "tapedeck_oauth_state"

// TrackView is a catalog track with the URLs of its local files.
type TrackView struct {
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	Key        string `json:"key"`
	MediaURL   string `json:"media_url"`
	ArtURL     string `json:"art_url"`
	Downloaded bool   `json:"downloaded"`
}

// RunView is the API shape of a journal run.
type RunView struct {
	ID        string             `json:"id"`
	Sequence  int                `json:"sequence"`
	Playlist  string             `json:"playlist"`
	Status    models.RunStatus   `json:"status"`
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Error     string             `json:"error,omitempty"`
	StartedAt string             `json:"started_at"`
	Tracks    []TrackOutcomeView `json:"tracks,omitempty"`
}

// TrackOutcomeView is the API shape of a journal outcome.
type TrackOutcomeView struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	if a.opts.Auth == nil {
		http.Error(w, "Spotify is not configured", http.StatusServiceUnavailable)
		return
	}

	state, err := server.NewState()
	if err != nil {
		a.logger.Error("failed to create oauth state", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, a.opts.Auth.GetAuthURL(state), http.StatusFound)
}

func (a *App) callback(w http.ResponseWriter, r *http.Request) {
	if a.opts.Auth == nil {
		http.Error(w, "Spotify is not configured", http.StatusServiceUnavailable)
		return
	}

	var state string
	if c, err := r.Cookie(stateCookie); err == nil {
		state = c.Value
	}

	code, err := server.CallbackCode(r, state)
	if err != nil {
		a.logger.Warn("oauth callback rejected", "error", err)
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := a.opts.Auth.Exchange(r.Context(), code)
	if err != nil {
		a.logger.Error("token exchange failed", "error", err)
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/playlists?access_token="+url.QueryEscape(token.AccessToken), http.StatusFound)
}

func (a *App) playlists(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		http.Error(w, "Access token is required", http.StatusBadRequest)
		return
	}
	if a.opts.Fetch == nil {
		http.Error(w, "Spotify is not configured", http.StatusServiceUnavailable)
		return
	}

	cat, err := a.opts.Fetch(r.Context(), token)
	if err != nil {
		a.logger.Error("catalog retrieval failed", "error", err)
		http.Error(w, "CatalogFetchFailed", http.StatusInternalServerError)
		return
	}

	if err := a.opts.Catalog.Save(cat); err != nil {
		a.logger.Error("catalog save failed", "path", a.opts.Catalog.Path(), "error", err)
		http.Error(w, "CatalogFetchFailed", http.StatusInternalServerError)
		return
	}

	a.logger.Info("catalog saved", "path", a.opts.Catalog.Path(), "playlists", len(cat))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Playlists saved to %s", a.opts.Catalog.Path())
}

func (a *App) startDownloads(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("playlist")
	if name == "" {
		http.Error(w, "Playlist name is required", http.StatusBadRequest)
		return
	}

	cat, err := a.opts.Catalog.Load()
	if err != nil {
		a.logger.Error("catalog load failed", "error", err)
		http.Error(w, "Failed to read catalog", http.StatusInternalServerError)
		return
	}
	if _, err := catalog.Lookup(cat, name); err != nil {
		http.Error(w, "Playlist not found", http.StatusNotFound)
		return
	}

	switch err := a.opts.Runner.Start(name); {
	case err == nil:
	case errors.Is(err, shared.ErrRunInProgress):
		http.Error(w, "Download already in progress", http.StatusConflict)
		return
	case errors.Is(err, shared.ErrMissingArgument):
		http.Error(w, "Playlist name is required", http.StatusBadRequest)
		return
	default:
		a.logger.Error("failed to start run", "playlist", name, "error", err)
		http.Error(w, "Failed to start download", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "Download started")
}

func (a *App) catalogJSON(w http.ResponseWriter, r *http.Request) {
	cat, err := a.opts.Catalog.Load()
	if err != nil {
		a.logger.Error("catalog load failed", "error", err)
		http.Error(w, "Failed to read catalog", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, cat)
}

func (a *App) tracks(w http.ResponseWriter, r *http.Request) {
	cat, err := a.opts.Catalog.Load()
	if err != nil {
		a.logger.Error("catalog load failed", "error", err)
		http.Error(w, "Failed to read catalog", http.StatusInternalServerError)
		return
	}

	pl, err := catalog.Lookup(cat, r.PathValue("name"))
	if err != nil {
		http.Error(w, "Playlist not found", http.StatusNotFound)
		return
	}

	a.writeJSON(w, http.StatusOK, lo.Map(pl.Tracks, func(t models.Track, _ int) TrackView {
		return a.trackView(t)
	}))
}

func (a *App) trackView(t models.Track) TrackView {
	key := t.Key()
	media := a.opts.Layout.MediaPath(key, a.opts.Transcode)

	_, statErr := os.Stat(media)
	return TrackView{
		Name:       t.Name,
		Artist:     t.Artist,
		Album:      t.Album,
		Key:        key,
		MediaURL:   "/songs/" + url.PathEscape(key+mediaExt(a.opts.Transcode)),
		ArtURL:     "/album-art/" + url.PathEscape(key+".jpg"),
		Downloaded: statErr == nil,
	}
}

func mediaExt(transcode bool) string {
	if transcode {
		return ".mp3"
	}
	return ".webm"
}

func (a *App) runs(w http.ResponseWriter, r *http.Request) {
	if a.opts.History == nil {
		http.Error(w, "Run journal is not configured", http.StatusNotFound)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := a.opts.History.Recent(r.URL.Query().Get("playlist"), limit)
	if err != nil {
		a.logger.Error("journal query failed", "error", err)
		http.Error(w, "Failed to read run journal", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, http.StatusOK, lo.Map(runs, func(run *models.Run, _ int) RunView {
		return runView(run, nil)
	}))
}

func (a *App) run(w http.ResponseWriter, r *http.Request) {
	if a.opts.History == nil {
		http.Error(w, "Run journal is not configured", http.StatusNotFound)
		return
	}

	report, err := a.opts.History.Report(r.PathValue("ref"))
	if errors.Is(err, shared.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error("journal query failed", "error", err)
		http.Error(w, "Failed to read run journal", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, http.StatusOK, runView(report.Run, report.Outcomes))
}

func runView(run *models.Run, outcomes []models.TrackOutcome) RunView {
	return RunView{
		ID:        run.ID(),
		Sequence:  run.Sequence(),
		Playlist:  run.Playlist(),
		Status:    run.Status(),
		Total:     run.Total(),
		Succeeded: run.Succeeded(),
		Failed:    run.Failed(),
		Error:     run.ErrorText(),
		StartedAt: run.StartedAt().UTC().Format("2006-01-02T15:04:05Z"),
		Tracks: lo.Map(outcomes, func(o models.TrackOutcome, _ int) TrackOutcomeView {
			return TrackOutcomeView{
				Position: o.Position,
				Name:     o.Track.Name,
				Artist:   o.Track.Artist,
				State:    o.State.String(),
				Error:    o.Error,
			}
		}),
	}
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		a.logger.Error("failed to encode response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
