package songapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/psptunes/psptunes/internal/logger"
)

// Cache is the byte store backing the short-lived memoization layer.
type Cache interface {
	GetCache(key string) ([]byte, error)
	SetCache(key string, data []byte, ttl time.Duration) error
}

// CachedProvider memoizes GetSong calls for a short TTL to bound the request
// rate against the upstream API. It is not a correctness mechanism: provider
// failures are swallowed, logged, and cached as a not-found marker so
// repeated lookups within the TTL do not hammer a failing upstream. Searches
// pass through uncached.
type CachedProvider struct {
	provider Provider
	cache    Cache
	ttl      time.Duration
	log      *logger.Logger
}

var _ Provider = (*CachedProvider)(nil)

func NewCachedProvider(provider Provider, cache Cache, ttl time.Duration, log *logger.Logger) *CachedProvider {
	if log == nil {
		log = logger.Default()
	}
	return &CachedProvider{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		log:      log.WithComponent("songcache"),
	}
}

type cachedSong struct {
	Song     *Song `json:"song"`
	NotFound bool  `json:"not_found"`
}

// GetSong returns the cached record when fresh, otherwise consults the
// provider. A nil song with nil error means the upstream failed or had no
// record; callers must fall back. GetSong never returns an error.
func (c *CachedProvider) GetSong(ctx context.Context, videoID string) (*Song, error) {
	cacheKey := "song:" + videoID

	data, err := c.cache.GetCache(cacheKey)
	if err != nil {
		c.log.Warn("Cache read failed", "video_id", videoID, "error", err)
	}
	if data != nil {
		var cached cachedSong
		if unmarshalErr := json.Unmarshal(data, &cached); unmarshalErr == nil {
			return cached.Song, nil
		}
	}

	song, err := c.provider.GetSong(ctx, videoID)
	if err != nil {
		c.log.Warn("Song lookup failed", "video_id", videoID, "error", err)
		song = nil
	}

	cached := cachedSong{Song: song}
	if song == nil {
		cached.NotFound = true
	}
	if data, marshalErr := json.Marshal(cached); marshalErr == nil {
		if setErr := c.cache.SetCache(cacheKey, data, c.ttl); setErr != nil {
			c.log.Warn("Cache write failed", "video_id", videoID, "error", setErr)
		}
	}

	return song, nil
}

// Search passes through to the provider.
func (c *CachedProvider) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return c.provider.Search(ctx, query, limit)
}
