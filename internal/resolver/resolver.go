// package resolver maps catalog tracks to a media locator and a cover-art locator.
//
// Media and art are looked up independently. A search that finds nothing is a
// normal outcome and yields an empty locator with no error.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/karlseguin/ccache/v3"
	"golang.org/x/time/rate"
)

const (
	DefaultCacheSize = 1000
	DefaultCacheTTL  = 30 * time.Minute
)

// MediaSearcher returns candidate video IDs for a query, best match first.
type MediaSearcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// ArtSearcher returns a cover-art URL for a track, or "" when none exists.
type ArtSearcher interface {
	SearchArt(ctx context.Context, name, artist string) (string, error)
}

// Ranker picks one candidate for track. It reports false when none is acceptable.
type Ranker func(track models.Track, candidates []string) (string, bool)

// FirstMatch selects the first candidate in source order.
func FirstMatch(_ models.Track, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[0], true
}

// Options configures a [Resolver]. Zero values select the defaults.
type Options struct {
	Ranker    Ranker
	Limiter   *rate.Limiter // shared by media and art searches; nil means unlimited
	CacheSize int64
	CacheTTL  time.Duration
	Locator   func(id string) string // turns a chosen candidate into a media locator
	Logger    *log.Logger
}

// Resolver looks up sources for tracks, memoizing search results by query.
type Resolver struct {
	media   MediaSearcher
	art     ArtSearcher
	rank    Ranker
	limiter *rate.Limiter
	ttl     time.Duration
	locator func(string) string
	cache   *ccache.Cache[[]string]
	logger  *log.Logger
}

// New creates a Resolver. art may be nil, in which case no cover art is resolved.
func New(media MediaSearcher, art ArtSearcher, opts Options) *Resolver {
	if opts.Ranker == nil {
		opts.Ranker = FirstMatch
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Locator == nil {
		opts.Locator = services.WatchURL
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Resolver{
		media:   media,
		art:     art,
		rank:    opts.Ranker,
		limiter: opts.Limiter,
		ttl:     opts.CacheTTL,
		locator: opts.Locator,
		cache:   ccache.New(ccache.Configure[[]string]().MaxSize(opts.CacheSize).GetsPerPromote(3).ItemsToPrune(1)),
		logger:  opts.Logger,
	}
}

// Resolve finds the media and art locators for track.
//
// Whatever was found is always returned. The error joins the media and art
// search failures, each wrapping [shared.ErrServiceUnavailable].
func (r *Resolver) Resolve(ctx context.Context, track models.Track) (models.ResolvedSource, error) {
	var source models.ResolvedSource

	media, mediaErr := r.resolveMedia(ctx, track)
	if mediaErr == nil {
		source.MediaLocator = media
	}

	art, artErr := r.resolveArt(ctx, track)
	if artErr == nil {
		source.ArtLocator = art
	}

	r.logger.Debug("resolved track", "track", track.String(), "media", source.MediaLocator, "art", source.ArtLocator)
	return source, errors.Join(mediaErr, artErr)
}

func (r *Resolver) resolveMedia(ctx context.Context, track models.Track) (string, error) {
	if r.media == nil {
		return "", nil
	}

	query := track.Query()
	candidates, err := r.search(ctx, "media:"+query, func() ([]string, error) {
		return r.media.Search(ctx, query)
	})
	if err != nil {
		return "", fmt.Errorf("%w: media search for %q: %v", shared.ErrServiceUnavailable, query, err)
	}

	id, ok := r.rank(track, candidates)
	if !ok || id == "" {
		return "", nil
	}
	return r.locator(id), nil
}

func (r *Resolver) resolveArt(ctx context.Context, track models.Track) (string, error) {
	if r.art == nil {
		return "", nil
	}

	found, err := r.search(ctx, "art:"+track.Query(), func() ([]string, error) {
		u, err := r.art.SearchArt(ctx, track.Name, track.Artist)
		if err != nil || u == "" {
			return nil, err
		}
		return []string{u}, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: art search for %q: %v", shared.ErrServiceUnavailable, track.Query(), err)
	}
	if len(found) == 0 {
		return "", nil
	}
	return found[0], nil
}

// search serves key from the cache or waits on the limiter and calls fetch. Errors are not cached.
func (r *Resolver) search(ctx context.Context, key string, fetch func() ([]string, error)) ([]string, error) {
	item, err := r.cache.Fetch(key, r.ttl, func() ([]string, error) {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return fetch()
	})
	if err != nil {
		return nil, err
	}
	return item.Value(), nil
}

// Purge drops every cached search result.
func (r *Resolver) Purge() {
	r.cache.Clear()
}

// Stop releases the cache's background worker.
func (r *Resolver) Stop() {
	r.cache.Stop()
}
