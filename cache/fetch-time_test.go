package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNeverFetchedIsStale(t *testing.T) {
	f := NewFetchTimes()
	now := time.Now()
	for _, threshold := range []time.Duration{0, time.Hour, 1000 * time.Hour} {
		assert.True(t, f.IsStale("calendar_x", threshold, now), "threshold %s", threshold)
	}
}

func TestStaleBoundary(t *testing.T) {
	f := NewFetchTimes()
	fetched := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f.RecordFetch("k", fetched)

	assert.False(t, f.IsStale("k", time.Hour, fetched.Add(3599999*time.Millisecond)))
	assert.True(t, f.IsStale("k", time.Hour, fetched.Add(3600000*time.Millisecond)))
	assert.False(t, f.IsStale("k", time.Hour, fetched))
}

func TestRecordFetchOverwrites(t *testing.T) {
	f := NewFetchTimes()
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(2 * time.Hour)

	_, ok := f.LastFetch("k")
	assert.False(t, ok)

	f.RecordFetch("k", first)
	f.RecordFetch("k", second)

	at, ok := f.LastFetch("k")
	assert.True(t, ok)
	assert.Equal(t, second, at)
	assert.False(t, f.IsStale("k", time.Hour, second.Add(time.Minute)))
}
