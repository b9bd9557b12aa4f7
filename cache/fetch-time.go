package cache

import (
	"sync"
	"time"
)

// FetchTimes records when each key was last fetched successfully.
// It only tracks recency; payloads live in a Store.
type FetchTimes struct {
	mutex sync.RWMutex
	db    map[string]time.Time
}

func NewFetchTimes() *FetchTimes {
	return &FetchTimes{
		db: make(map[string]time.Time),
	}
}

// RecordFetch sets the last fetch instant of key, replacing any previous one.
func (f *FetchTimes) RecordFetch(key string, at time.Time) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.db[key] = at
}

// LastFetch returns the last fetch instant of key.
// The boolean is false if the key has never been fetched.
func (f *FetchTimes) LastFetch(key string) (time.Time, bool) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	at, ok := f.db[key]
	return at, ok
}

// IsStale reports whether key needs to be fetched again.
// A key that was never fetched is always stale.
// Otherwise it is stale once threshold has fully elapsed:
// an age of exactly threshold is stale, one nanosecond less is not.
func (f *FetchTimes) IsStale(key string, threshold time.Duration, now time.Time) bool {
	at, ok := f.LastFetch(key)
	if !ok {
		return true
	}
	return now.Sub(at) >= threshold
}
