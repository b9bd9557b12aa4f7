package calendarcache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/always-cache/calendar-cache/cache"
	cachekey "github.com/always-cache/calendar-cache/pkg/cache-key"
	validator "github.com/always-cache/calendar-cache/pkg/payload-validator"
	"github.com/always-cache/calendar-cache/rfc9211"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// StaleAfter is how long a fetched calendar satisfies hash requests.
const StaleAfter = time.Hour

type CalendarConfig struct {
	// Storage for payloads. Usually shared with the realization cache.
	Store cache.Store
	// Fetch times of calendar keys. A new index is created if nil.
	FetchTimes *cache.FetchTimes
	// Client for upstream requests. http.DefaultClient is used if nil.
	Client *http.Client
	// Clock to read the current time from. The wall clock is used if nil.
	Clock clock.Clock
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Share one upstream request between concurrent misses of the same URL.
	// Off by default: concurrent misses each fetch, and the last write wins.
	CoalesceFetches bool
}

// CalendarCache serves iCalendar payloads from the store,
// fetching and validating them from the upstream on a miss.
type CalendarCache struct {
	store      cache.Store
	fetchTimes *cache.FetchTimes
	client     *http.Client
	clock      clock.Clock
	log        zerolog.Logger
	coalesce   bool
	inflight   singleflight.Group
	// held while a payload and its fetch time are written or read as a pair
	pairMutex sync.RWMutex
}

type CalendarResult struct {
	Payload     string
	WasCached   bool
	CacheStatus rfc9211.CacheStatus
}

type HashResult struct {
	// Hex encoded SHA-256 of the payload.
	Hash      string
	WasCached bool
	// Time of the fetch that produced the hashed payload.
	CachedAt    *time.Time
	CacheStatus rfc9211.CacheStatus
}

// fetched is the outcome of one successful fetch-and-cache cycle.
type fetched struct {
	payload string
	at      time.Time
	// upstream response status
	status int
}

func NewCalendarCache(config CalendarConfig) *CalendarCache {
	c := &CalendarCache{
		store:      config.Store,
		fetchTimes: config.FetchTimes,
		client:     config.Client,
		clock:      config.Clock,
		log:        newLogger(config.Logger, "calendar"),
		coalesce:   config.CoalesceFetches,
	}
	if c.store == nil {
		c.store = cache.NewMemStore(0)
	}
	if c.fetchTimes == nil {
		c.fetchTimes = cache.NewFetchTimes()
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	return c
}

// GetCalendar returns the cached payload for rawURL regardless of its age,
// or fetches it if it has never been cached.
func (c *CalendarCache) GetCalendar(ctx context.Context, rawURL string) (CalendarResult, error) {
	key := cachekey.CalendarKey(rawURL)
	payload, ok, err := c.store.Get(key)
	if err != nil {
		return CalendarResult{}, errors.Wrap(err, "read calendar cache")
	}
	if ok {
		c.log.Trace().Str("kind", cachekey.Kind(key)).Str("key", key).Msg("Serving cached calendar")
		cs := rfc9211.CacheStatus{}
		cs.Hit()
		return CalendarResult{Payload: string(payload), WasCached: true, CacheStatus: cs}, nil
	}

	f, collapsed, err := c.refresh(ctx, rawURL)
	if err != nil {
		return CalendarResult{}, err
	}
	cs := rfc9211.CacheStatus{FwdStatus: f.status, Stored: true, Collapsed: collapsed}
	cs.Forward(rfc9211.FwdReasonUriMiss)
	return CalendarResult{Payload: f.payload, WasCached: false, CacheStatus: cs}, nil
}

// GetCalendarHash returns the SHA-256 of the payload for rawURL.
// Unlike GetCalendar, it fetches again once the cached payload is older than StaleAfter.
func (c *CalendarCache) GetCalendarHash(ctx context.Context, rawURL string) (HashResult, error) {
	key := cachekey.CalendarKey(rawURL)
	c.pairMutex.RLock()
	payload, ok, err := c.store.Get(key)
	at, _ := c.fetchTimes.LastFetch(key)
	stale := c.fetchTimes.IsStale(key, StaleAfter, c.clock.Now())
	c.pairMutex.RUnlock()
	if err != nil {
		return HashResult{}, errors.Wrap(err, "read calendar cache")
	}
	if ok && !stale {
		c.log.Trace().Str("kind", cachekey.Kind(key)).Str("key", key).Time("cachedAt", at).Msg("Serving cached calendar hash")
		cs := rfc9211.CacheStatus{}
		cs.Hit()
		return HashResult{Hash: Hash(payload), WasCached: true, CachedAt: &at, CacheStatus: cs}, nil
	}

	reason := rfc9211.FwdReasonUriMiss
	if ok {
		reason = rfc9211.FwdReasonStale
	}
	f, collapsed, err := c.refresh(ctx, rawURL)
	if err != nil {
		return HashResult{}, err
	}
	cs := rfc9211.CacheStatus{FwdStatus: f.status, Stored: true, Collapsed: collapsed}
	cs.Forward(reason)
	return HashResult{Hash: Hash([]byte(f.payload)), WasCached: false, CachedAt: &f.at, CacheStatus: cs}, nil
}

// Refresh fetches rawURL from the upstream and caches it if it is a valid calendar.
// On failure the cache is left untouched.
func (c *CalendarCache) Refresh(ctx context.Context, rawURL string) (string, error) {
	f, _, err := c.refresh(ctx, rawURL)
	return f.payload, err
}

// refresh runs a fetch-and-cache cycle, possibly shared with concurrent callers.
// The boolean reports whether the result was shared.
func (c *CalendarCache) refresh(ctx context.Context, rawURL string) (fetched, bool, error) {
	if !c.coalesce {
		f, err := c.fetchAndCache(ctx, rawURL)
		return f, false, err
	}
	v, err, shared := c.inflight.Do(cachekey.CalendarKey(rawURL), func() (interface{}, error) {
		// one caller going away must not fail the others
		return c.fetchAndCache(context.WithoutCancel(ctx), rawURL)
	})
	if err != nil {
		return fetched{}, shared, err
	}
	return v.(fetched), shared, nil
}

func (c *CalendarCache) fetchAndCache(ctx context.Context, rawURL string) (fetched, error) {
	key := cachekey.CalendarKey(rawURL)
	log := c.log.With().Str("kind", cachekey.Kind(key)).Str("url", rawURL).Logger()
	log.Debug().Msg("Requesting calendar from upstream")

	body, status, err := get(ctx, c.client, rawURL)
	if err != nil {
		log.Warn().Err(err).Msg("Could not fetch calendar")
		return fetched{}, err
	}
	payload := string(body)
	if !validator.IsValidICalendar(payload) {
		err := &InvalidPayloadError{URL: rawURL, Kind: PayloadICalendar}
		log.Warn().Err(err).Str("size", humanize.Bytes(uint64(len(body)))).Msg("Not caching calendar")
		return fetched{}, err
	}

	c.pairMutex.Lock()
	err = c.store.Put(key, body)
	at := c.clock.Now()
	if err == nil {
		c.fetchTimes.RecordFetch(key, at)
	}
	c.pairMutex.Unlock()
	if err != nil {
		log.Error().Err(err).Msg("Could not write calendar to cache")
		return fetched{}, errors.Wrap(err, "write calendar cache")
	}

	log.Debug().Str("size", humanize.Bytes(uint64(len(body)))).Msg("Cached calendar")
	return fetched{payload: payload, at: at, status: status}, nil
}

// Hash returns the hex encoded SHA-256 digest of payload.
func Hash(payload []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(payload))
}
