// YouTube search scraping
//
// YouTube exposes no keyless search API, so the results page is fetched and
// scanned for watch links in the order they appear.
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/samber/lo"
)

const (
	defaultYTBaseURL = "https://www.youtube.com"
	watchURLPrefix   = "https://www.youtube.com/watch?v="
)

var videoIDRe = regexp.MustCompile(`/watch\?v=([a-zA-Z0-9_-]{11})`)

// YouTubeService searches YouTube for videos matching a free-text query.
type YouTubeService struct {
	baseURL    string
	httpClient *http.Client
}

// NewYouTubeService creates a YouTube search client rooted at baseURL.
//
// A nil client falls back to [http.DefaultClient]; see [shared.NewYouTubeClient] for replaying browser headers.
func NewYouTubeService(baseURL string, client *http.Client) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &YouTubeService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

// Search returns the IDs of videos on the results page for query, first occurrence first, without duplicates.
func (y *YouTubeService) Search(ctx context.Context, query string) ([]string, error) {
	q := url.Values{}
	q.Set("search_query", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/results?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: youtube search returned status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	return ExtractVideoIDs(body), nil
}

// ExtractVideoIDs scans an HTML page for watch links.
func ExtractVideoIDs(page []byte) []string {
	matches := videoIDRe.FindAllSubmatch(page, -1)
	ids := lo.Map(matches, func(m [][]byte, _ int) string { return string(m[1]) })
	return lo.Uniq(ids)
}

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(id string) string {
	return watchURLPrefix + id
}
