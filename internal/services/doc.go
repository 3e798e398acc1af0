// Package services wraps the remote APIs the mirror depends on.
//
// # Catalog Retrieval
//
// [Service] is the catalog source abstraction: list playlists, export one playlist with its tracks.
// [SpotifyService] implements it over the Spotify Web API using an OAuth2 user token.
// [FetchCatalog] walks every playlist and produces the [models.Catalog] written to disk.
//
// # Search
//
// [YouTubeService.Search] scrapes the YouTube results page and returns video IDs in page order.
// [SpotifyService.SearchArt] looks up a track with an app token (client-credentials flow) and returns the first album image URL.
//
// # OAuth
//
// [OAuthService] covers the authorization-code flow used by the CLI and the web server.
// The [oauth2] client refreshes expired tokens; [SpotifyService.SetTokenRefreshCallback] lets callers persist them.
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExchangeFailed] : authorization code exchange failed
//   - [shared.ErrAPIRequest] : non-retryable HTTP failure
//   - [shared.ErrServiceUnavailable] : transport failure or server error after retries
//   - [shared.ErrCatalogFetchFailed] : catalog retrieval failed
package services
