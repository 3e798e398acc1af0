package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tapedeck/internal/catalog"
	"github.com/desertthunder/tapedeck/internal/formatter"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// fetchCatalog retrieves every playlist with a user access token.
//
// Each call builds its own Spotify client so concurrent HTTP requests never share a token.
func (r *Runner) fetchCatalog(ctx context.Context, accessToken string) (models.Catalog, error) {
	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map())
	if err != nil {
		return nil, err
	}
	svc.SetToken(ctx, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return services.FetchCatalog(ctx, svc)
}

// CatalogFetch retrieves every Spotify playlist and writes the catalog file.
func (r *Runner) CatalogFetch(ctx context.Context, cmd *cli.Command) error {
	var (
		cat models.Catalog
		err error
	)

	if token := cmd.String("token"); token != "" {
		cat, err = r.fetchCatalog(ctx, token)
	} else {
		var svc *services.SpotifyService
		if svc, err = r.requireSpotify(ctx); err != nil {
			return err
		}
		cat, err = services.FetchCatalog(ctx, svc)
	}
	if err != nil {
		return err
	}

	store := r.store()
	if err := store.Save(cat); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCatalogFetchFailed, err)
	}

	tracks := 0
	for _, pl := range cat {
		tracks += len(pl.Tracks)
	}

	r.logger.Info("catalog saved", "path", store.Path(), "playlists", len(cat), "tracks", tracks)
	return r.writePlain("Playlists saved to %s (%d playlists, %d tracks)\n", store.Path(), len(cat), tracks)
}

// CatalogShow lists the playlists in the catalog, or the tracks of one playlist.
func (r *Runner) CatalogShow(ctx context.Context, cmd *cli.Command) error {
	cat, err := r.store().Load()
	if err != nil {
		return err
	}

	name := cmd.StringArg("playlist")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if name == "" {
		if useJSON {
			return r.writeJSON(cat, pretty)
		}
		if len(cat) == 0 {
			return r.writePlain("The catalog is empty. Run 'tapedeck catalog fetch' first.\n")
		}

		r.writePlain("Found %d playlists:\n\n", len(cat))
		for i, pl := range cat {
			r.writePlain("%d. %s\n", i+1, pl.Name)
			r.writePlain("   Tracks: %d\n", len(pl.Tracks))
		}
		return nil
	}

	pl, err := catalog.Lookup(cat, name)
	if err != nil {
		return err
	}
	if useJSON {
		return r.writeJSON(pl, pretty)
	}

	layout := r.layout()
	transcode := r.config.Pipeline.Transcode

	r.writePlainHeader(pl.Name)
	r.writePlain("Tracks: %d\n\n", len(pl.Tracks))
	for i, t := range pl.Tracks {
		mark := " "
		if _, err := os.Stat(layout.MediaPath(t.Key(), transcode)); err == nil {
			mark = "✓"
		}
		r.writePlain("%s %d. %s - %s\n", mark, i+1, t.Artist, t.Name)
		if t.Album != "" {
			r.writePlain("     Album: %s\n", t.Album)
		}
	}
	return nil
}

// CatalogExport writes a playlist from the catalog as CSV, Markdown or text.
func (r *Runner) CatalogExport(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("playlist")
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	pl, err := r.store().Find(name)
	if err != nil {
		return err
	}

	output := cmd.String("output")

	switch format {
	case formatter.FormatCSV:
		result, err := formatter.WriteCSVExport(*pl, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Playlist exported\n")
		r.writePlain("  Tracks: %s\n", result.TracksFile)
		r.writePlain("  Metadata: %s\n", result.MetadataFile)

	case formatter.FormatMarkdown:
		var imageURL string
		if cmd.Bool("cover") {
			imageURL = r.coverURL(ctx, *pl)
		}

		result, err := formatter.WriteMarkdownExport(ctx, *pl, output, imageURL)
		if err != nil {
			return err
		}
		if result.Warning != nil {
			r.logger.Warn("cover image skipped", "playlist", pl.Name, "error", result.Warning)
		}
		r.writePlain("✓ Playlist exported to %s\n", result.Directory)
		for _, f := range result.Files {
			r.writePlain("  %s\n", f)
		}

	case formatter.FormatText:
		path, err := formatter.WriteTextExport(*pl, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Playlist exported to %s\n", path)

	default:
		return fmt.Errorf("%w: %s exports are not supported for playlists", shared.ErrInvalidArgument, format)
	}

	r.logger.Info("playlist exported", "playlist", pl.Name, "format", format, "tracks", len(pl.Tracks))
	return nil
}

// coverSearchLimit caps how many tracks are tried when looking for a playlist cover.
const coverSearchLimit = 5

// coverURL looks up album art for the first track that has any.
func (r *Runner) coverURL(ctx context.Context, pl models.Playlist) string {
	if r.spotify == nil {
		return ""
	}
	for _, t := range lo.Slice(pl.Tracks, 0, coverSearchLimit) {
		url, err := r.spotify.SearchArt(ctx, t.Name, t.Artist)
		if err != nil {
			r.logger.Warn("cover search failed", "track", t.Name, "artist", t.Artist, "error", err)
			return ""
		}
		if url != "" {
			return url
		}
	}
	return ""
}
