package api

import (
	"encoding/json"
	"net/http"
	"time"

	calendarcache "github.com/always-cache/calendar-cache"
	"github.com/always-cache/calendar-cache/rfc9211"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// TimestampFormat matches JavaScript's Date.prototype.toISOString.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type calendarResponse struct {
	Data      string `json:"data"`
	Timestamp string `json:"timestamp"`
}

type hashResponse struct {
	Hash      string  `json:"hash"`
	Cached    bool    `json:"cached"`
	CachedAt  *string `json:"cachedAt"`
	Timestamp string  `json:"timestamp"`
}

type realizationResponse struct {
	Data      json.RawMessage `json:"data"`
	Cached    bool            `json:"cached"`
	Timestamp string          `json:"timestamp"`
}

type errorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	URL           string `json:"url,omitempty"`
	RealizationID string `json:"realizationId,omitempty"`
}

func (s *server) timestamp() string {
	return formatTime(s.clock.Now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Timestamp: s.timestamp()})
}

func (s *server) calendar(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if err := calendarcache.ValidateCalendarURL(rawURL); err != nil {
		writeJSON(w, r, http.StatusBadRequest, validationError(err))
		return
	}
	res, err := s.calendars.GetCalendar(r.Context(), rawURL)
	if err != nil {
		writeCalendarError(w, r, rawURL, err)
		return
	}
	setCacheStatus(w, r, res.CacheStatus)
	writeJSON(w, r, http.StatusOK, calendarResponse{Data: res.Payload, Timestamp: s.timestamp()})
}

func (s *server) calendarHash(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if err := calendarcache.ValidateCalendarURL(rawURL); err != nil {
		writeJSON(w, r, http.StatusBadRequest, validationError(err))
		return
	}
	res, err := s.calendars.GetCalendarHash(r.Context(), rawURL)
	if err != nil {
		writeCalendarError(w, r, rawURL, err)
		return
	}
	body := hashResponse{Hash: res.Hash, Cached: res.WasCached, Timestamp: s.timestamp()}
	if res.CachedAt != nil {
		cachedAt := formatTime(*res.CachedAt)
		body.CachedAt = &cachedAt
	}
	setCacheStatus(w, r, res.CacheStatus)
	writeJSON(w, r, http.StatusOK, body)
}

func (s *server) realization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := calendarcache.ValidateRealizationID(id); err != nil {
		body := validationError(err)
		body.RealizationID = id
		writeJSON(w, r, http.StatusBadRequest, body)
		return
	}
	res, err := s.realizations.GetRealization(r.Context(), id)
	if err != nil {
		writeRealizationError(w, r, id, err)
		return
	}
	setCacheStatus(w, r, res.CacheStatus)
	writeJSON(w, r, res.Status, realizationResponse{Data: res.Payload, Cached: res.WasCached, Timestamp: s.timestamp()})
}

func writeCalendarError(w http.ResponseWriter, r *http.Request, rawURL string, err error) {
	if !calendarcache.IsFetchFailure(err) {
		hlog.FromRequest(r).Error().Err(err).Str("url", rawURL).Msg("Could not serve calendar")
		writeJSON(w, r, http.StatusInternalServerError, internalError())
		return
	}
	writeJSON(w, r, http.StatusBadRequest, errorResponse{
		Error:   "Failed to fetch calendar",
		Message: publicMessage(err),
		URL:     rawURL,
	})
}

func writeRealizationError(w http.ResponseWriter, r *http.Request, id string, err error) {
	var (
		upstream *calendarcache.UpstreamFetchError
		payload  *calendarcache.InvalidPayloadError
	)
	switch {
	case errors.As(err, &upstream):
		writeJSON(w, r, upstream.StatusCode, errorResponse{
			Error:         "Failed to fetch realization",
			Message:       publicMessage(err),
			RealizationID: id,
		})
	case errors.As(err, &payload):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{
			Error:         "Failed to fetch realization",
			Message:       publicMessage(err),
			RealizationID: id,
		})
	default:
		hlog.FromRequest(r).Error().Err(err).Str("realizationId", id).Msg("Could not serve realization")
		body := internalError()
		body.RealizationID = id
		writeJSON(w, r, http.StatusInternalServerError, body)
	}
}

// publicMessage describes a fetch failure without forwarding transport details.
func publicMessage(err error) string {
	var (
		upstream *calendarcache.UpstreamFetchError
		payload  *calendarcache.InvalidPayloadError
		network  *calendarcache.NetworkError
	)
	switch {
	case errors.As(err, &upstream):
		return upstream.Error()
	case errors.As(err, &payload):
		return payload.Error()
	case errors.As(err, &network):
		return "could not reach upstream"
	}
	return "unexpected error"
}

func validationError(err error) errorResponse {
	var v *calendarcache.ValidationError
	if errors.As(err, &v) && v.Field == "url" {
		return errorResponse{Error: "Invalid URL", Message: v.Error()}
	}
	if v != nil {
		return errorResponse{Error: "Invalid realization ID", Message: v.Error()}
	}
	return errorResponse{Error: "Invalid request", Message: err.Error()}
}

func internalError() errorResponse {
	return errorResponse{Error: "Internal server error", Message: "An unexpected error occurred"}
}

func setCacheStatus(w http.ResponseWriter, r *http.Request, cs rfc9211.CacheStatus) {
	w.Header().Add(rfc9211.HeaderName, cs.String())
	hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("cacheStatus", cs.String())
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not write response body to client")
	}
}
