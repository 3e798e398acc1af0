// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	DefaultRedirectURI = "http://localhost:3000/callback"

	// artPath is the gjson path of the first album image in a track search response.
	artPath = "tracks.items.0.album.images.0.url"
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   SpotifyAlbum    `json:"album"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for items Spotify can no longer resolve.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks is one page of playlist items.
type SpotifyPaginatedTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithSpotifyEndpoints points the service at alternate API, authorize and token URLs.
func WithSpotifyEndpoints(apiURL, authURL, tokenURL string) SpotifyOption {
	return func(s *SpotifyService) {
		s.baseURL = strings.TrimRight(apiURL, "/")
		s.config.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
		s.app.TokenURL = tokenURL
	}
}

// WithMaxElapsed bounds how long a request is retried on rate limiting or server errors.
func WithMaxElapsed(d time.Duration) SpotifyOption {
	return func(s *SpotifyService) { s.maxElapsed = d }
}

// SpotifyService implements the Service interface for Spotify API interactions.
// Uses [oauth2] for user authentication and [clientcredentials] for app-only search.
type SpotifyService struct {
	config         *oauth2.Config
	app            *clientcredentials.Config
	token          *oauth2.Token
	httpClient     *http.Client
	baseURL        string
	maxElapsed     time.Duration
	onTokenRefresh func(*oauth2.Token)

	appOnce   sync.Once
	appClient *http.Client
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"playlist-read-private", "playlist-read-collaborative"},
			Endpoint:     oauth2.Endpoint{AuthURL: spotifyAuthURL, TokenURL: spotifyTokenURL},
		},
		app: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyTokenURL,
		},
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
		maxElapsed: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// OAuthConfig exposes the authorization-code configuration for callback handlers.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token without changing the service's own token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExchangeFailed, err)
	}
	return token, nil
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.SetToken(ctx, &oauth2.Token{AccessToken: accessToken, RefreshToken: credentials["refresh_token"]})
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.Exchange(ctx, authCode)
		if err != nil {
			return err
		}
		s.SetToken(ctx, token)
		return nil
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// SetToken installs a user token. The HTTP client refreshes it when it expires and a refresh token is present.
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) {
	s.token = token
	src := s.config.TokenSource(context.WithoutCancel(ctx), token)
	if s.onTokenRefresh != nil {
		src = &refreshableTokenSource{source: src, callback: s.onTokenRefresh, last: token.AccessToken}
	}
	s.httpClient = oauth2.NewClient(context.WithoutCancel(ctx), src)
}

// SetTokenRefreshCallback registers fn to be called whenever a new access token is issued.
//
// Must be called before [SpotifyService.SetToken] or [SpotifyService.Authenticate].
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// refreshableTokenSource reports new tokens to a callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	mu       sync.Mutex
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

// apiError carries the status of a failed API call so retry decisions can inspect it.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("spotify API error: status %d", e.status)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.status, e.body)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// get performs a GET against the API with client, retrying rate limits and server errors with exponential backoff.
func (s *SpotifyService) get(ctx context.Context, client *http.Client, endpoint string) ([]byte, error) {
	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http") {
		apiURL = s.baseURL + endpoint
	}

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &apiError{status: resp.StatusCode, body: gjson.GetBytes(data, "error.message").String()}
			if retryable(resp.StatusCode) {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		body = data
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = s.maxElapsed

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && !retryable(apiErr.status) {
			return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return body, nil
}

// doRequest performs an authenticated GET and decodes the JSON response into result.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	body, err := s.get(ctx, s.httpClient, endpoint)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// UserPlaylists retrieves the current user's playlists with pagination.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	limit = clampLimit(limit, 50)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// PlaylistTracks retrieves one page of a playlist's items.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*SpotifyPaginatedTracks, error) {
	limit = clampLimit(limit, 100)

	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), limit, offset)
	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func clampLimit(limit, ceiling int) int {
	if limit <= 0 || limit > ceiling {
		return ceiling
	}
	return limit
}

// GetPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) GetPlaylists(ctx context.Context) ([]Playlist, error) {
	var all []Playlist
	limit, offset := 50, 0

	for {
		response, err := s.UserPlaylists(ctx, limit, offset)
		if err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			all = append(all, Playlist{
				ID:          sp.ID,
				Name:        sp.Name,
				Description: sp.Description,
				TrackCount:  sp.Tracks.Total,
				Public:      sp.Public,
			})
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += len(response.Items)
	}

	return all, nil
}

// ExportPlaylist pages through a playlist's items and converts them to catalog tracks.
//
// Items without a track (removed or local files) are skipped. Collaborating artists are joined with ", ".
func (s *SpotifyService) ExportPlaylist(ctx context.Context, playlistID string) (*PlaylistExport, error) {
	export := &PlaylistExport{Playlist: Playlist{ID: playlistID}, Tracks: []models.Track{}}
	limit, offset := 100, 0

	for {
		page, err := s.PlaylistTracks(ctx, playlistID, limit, offset)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.Name == "" {
				continue
			}
			export.Tracks = append(export.Tracks, ToTrack(*item.Track))
		}
		export.Playlist.TrackCount = page.Total

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	return export, nil
}

// ToTrack converts a Spotify track to a catalog track.
func ToTrack(st SpotifyTrack) models.Track {
	names := lo.FilterMap(st.Artists, func(a SpotifyArtist, _ int) (string, bool) {
		return a.Name, a.Name != ""
	})
	return models.Track{
		Name:   st.Name,
		Artist: strings.Join(names, ", "),
		Album:  st.Album.Name,
	}
}

// appHTTPClient lazily builds the client-credentials client used for search.
func (s *SpotifyService) appHTTPClient() *http.Client {
	s.appOnce.Do(func() {
		s.appClient = s.app.Client(context.Background())
	})
	return s.appClient
}

// SearchArt finds cover art for a track using an app token.
//
// Returns an empty string and no error when Spotify has no match or the match has no images.
func (s *SpotifyService) SearchArt(ctx context.Context, name, artist string) (string, error) {
	q := url.Values{}
	q.Set("q", strings.TrimSpace(name+" "+artist))
	q.Set("type", "track")
	q.Set("limit", "1")

	body, err := s.get(ctx, s.appHTTPClient(), "/search?"+q.Encode())
	if err != nil {
		return "", err
	}

	return gjson.GetBytes(body, artPath).String(), nil
}
