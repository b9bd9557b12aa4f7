package calendarcache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Refresher fetches and caches a calendar. It is implemented by *CalendarCache.
type Refresher interface {
	Refresh(ctx context.Context, rawURL string) (string, error)
}

type PrecacheReport struct {
	Succeeded int
	// Failed maps each URL that could not be cached to its error.
	Failed   map[string]error
	Duration time.Duration
}

// Precache fetches all urls concurrently so that the first clients find them cached.
// A failing URL is logged and does not stop the others.
// It returns once every fetch has finished.
func Precache(ctx context.Context, refresher Refresher, urls []string, logger *zerolog.Logger) PrecacheReport {
	log := newLogger(logger, "precache")
	report := PrecacheReport{Failed: make(map[string]error)}
	if len(urls) == 0 {
		log.Info().Msg("No calendars to precache")
		return report
	}

	log.Info().Int("calendars", len(urls)).Msg("Precaching calendars")
	start := time.Now()
	var (
		mutex sync.Mutex
		group errgroup.Group
	)
	for _, u := range urls {
		u := u
		group.Go(func() error {
			_, err := refresher.Refresh(ctx, u)
			mutex.Lock()
			defer mutex.Unlock()
			if err != nil {
				log.Error().Err(err).Str("url", u).Msg("Could not precache calendar")
				report.Failed[u] = err
			} else {
				report.Succeeded++
			}
			// never cancel the other fetches
			return nil
		})
	}
	group.Wait()
	report.Duration = time.Since(start)

	log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", len(report.Failed)).
		Dur("duration", report.Duration).
		Msg("Precache finished")
	return report
}
