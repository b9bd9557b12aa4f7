package api

import (
	"context"
	"net/http"
	"time"

	calendarcache "github.com/always-cache/calendar-cache"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type CalendarService interface {
	GetCalendar(ctx context.Context, rawURL string) (calendarcache.CalendarResult, error)
	GetCalendarHash(ctx context.Context, rawURL string) (calendarcache.HashResult, error)
}

type RealizationService interface {
	GetRealization(ctx context.Context, id string) (calendarcache.RealizationResult, error)
}

type Config struct {
	Calendars    CalendarService
	Realizations RealizationService
	// Clock for response timestamps. The wall clock is used if nil.
	Clock clock.Clock
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

type server struct {
	calendars    CalendarService
	realizations RealizationService
	clock        clock.Clock
}

// NewRouter returns the HTTP handler serving the health, calendar and realization routes.
func NewRouter(config Config) http.Handler {
	s := &server{
		calendars:    config.Calendars,
		realizations: config.Realizations,
		clock:        config.Clock,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	} else {
		logger = *config.Logger
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.CleanPath)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("requestId", "X-Request-Id"))
	r.Use(hlog.AccessHandler(logRequest))
	r.Use(recoverer)

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/calendar", s.calendar)
		r.Get("/calendar/hash", s.calendarHash)
		r.Get("/realization/{id}", s.realization)
	})
	return r
}

func logRequest(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("sourceIp", r.RemoteAddr).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("Sending response to client")
}

// recoverer turns a panicking handler into a generic JSON 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				hlog.FromRequest(r).Error().Interface("panic", p).Msg("Handler panicked")
				writeJSON(w, r, http.StatusInternalServerError, internalError())
			}
		}()
		next.ServeHTTP(w, r)
	})
}
