package calendarcache

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/always-cache/calendar-cache/cache"
	cachekey "github.com/always-cache/calendar-cache/pkg/cache-key"
	validator "github.com/always-cache/calendar-cache/pkg/payload-validator"
	"github.com/always-cache/calendar-cache/rfc9211"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const realizationPath = "/rest/realization/"

type RealizationConfig struct {
	// Storage for payloads. Usually shared with the calendar cache.
	Store cache.Store
	// URL of the realization API origin, e.g. https://host.
	// A path on the origin is kept as a prefix.
	Origin url.URL
	// Client for upstream requests. http.DefaultClient is used if nil.
	Client *http.Client
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
}

// RealizationCache serves realization JSON documents.
// Once fetched, a realization is served for the lifetime of the process.
type RealizationCache struct {
	store  cache.Store
	origin url.URL
	client *http.Client
	log    zerolog.Logger
}

type RealizationResult struct {
	Payload     json.RawMessage
	WasCached   bool
	Status      int
	CacheStatus rfc9211.CacheStatus
}

func NewRealizationCache(config RealizationConfig) *RealizationCache {
	r := &RealizationCache{
		store:  config.Store,
		origin: config.Origin,
		client: config.Client,
		log:    newLogger(config.Logger, "realization"),
	}
	if r.store == nil {
		r.store = cache.NewMemStore(0)
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	r.log = r.log.With().Str("origin", r.origin.String()).Logger()
	return r
}

// GetRealization returns the realization with the given id.
// The id must already have passed ValidateRealizationID.
func (r *RealizationCache) GetRealization(ctx context.Context, id string) (RealizationResult, error) {
	key := cachekey.RealizationKey(id)
	payload, ok, err := r.store.Get(key)
	if err != nil {
		return RealizationResult{}, errors.Wrap(err, "read realization cache")
	}
	if ok {
		r.log.Trace().Str("kind", cachekey.Kind(key)).Str("key", key).Msg("Serving cached realization")
		cs := rfc9211.CacheStatus{}
		cs.Hit()
		return RealizationResult{Payload: bytes.Clone(payload), WasCached: true, Status: http.StatusOK, CacheStatus: cs}, nil
	}

	log := r.log.With().Str("kind", cachekey.Kind(key)).Str("realizationId", id).Logger()
	log.Debug().Msg("Requesting realization from upstream")
	body, status, err := get(ctx, r.client, r.realizationURL(id))
	if err != nil {
		log.Warn().Err(err).Msg("Could not fetch realization")
		return RealizationResult{}, err
	}
	if !validator.IsValidJSON(body) {
		err := &InvalidPayloadError{URL: r.realizationURL(id), Kind: PayloadJSON}
		log.Warn().Err(err).Msg("Not caching realization")
		return RealizationResult{}, err
	}
	if err := r.store.Put(key, body); err != nil {
		log.Error().Err(err).Msg("Could not write realization to cache")
		return RealizationResult{}, errors.Wrap(err, "write realization cache")
	}
	log.Debug().Str("size", humanize.Bytes(uint64(len(body)))).Msg("Cached realization")

	cs := rfc9211.CacheStatus{FwdStatus: status, Stored: true}
	cs.Forward(rfc9211.FwdReasonUriMiss)
	return RealizationResult{Payload: bytes.Clone(body), WasCached: false, Status: http.StatusOK, CacheStatus: cs}, nil
}

func (r *RealizationCache) realizationURL(id string) string {
	u := r.origin
	u.Path = strings.TrimSuffix(u.Path, "/") + realizationPath + id
	u.RawPath = ""
	return u.String()
}
