// package services defines interface Service for reading playlists from a remote catalog
package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"golang.org/x/oauth2"
)

// Service is a remote catalog that can list and export playlists.
type Service interface {
	// Authenticate performs OAuth or API key authentication with the service.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// GetPlaylists retrieves all playlists for the authenticated user.
	GetPlaylists(ctx context.Context) ([]Playlist, error)

	// ExportPlaylist retrieves a playlist with all its tracks.
	ExportPlaylist(ctx context.Context, playlistID string) (*PlaylistExport, error)

	// Name returns the name of the service
	Name() string
}

// OAuthService is a [Service] that authenticates with the authorization-code flow.
type OAuthService interface {
	Service
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Playlist is playlist metadata from a remote service
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
}

// PlaylistExport is a playlist with all its tracks
type PlaylistExport struct {
	Playlist Playlist       `json:"playlist"`
	Tracks   []models.Track `json:"tracks"`
}

// FetchCatalog exports every playlist from svc, in the order the service lists them.
//
// Playlist names must be unique in a catalog, so later duplicates get a " (n)" suffix.
func FetchCatalog(ctx context.Context, svc Service) (models.Catalog, error) {
	if svc == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}

	playlists, err := svc.GetPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing playlists: %v", shared.ErrCatalogFetchFailed, err)
	}

	seen := make(map[string]int, len(playlists))
	catalog := make(models.Catalog, 0, len(playlists))

	for _, pl := range playlists {
		export, err := svc.ExportPlaylist(ctx, pl.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: exporting %q: %v", shared.ErrCatalogFetchFailed, pl.Name, err)
		}

		name := pl.Name
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}

		tracks := export.Tracks
		if tracks == nil {
			tracks = []models.Track{}
		}
		catalog = append(catalog, models.Playlist{Name: name, Tracks: tracks})
	}

	return catalog, nil
}
