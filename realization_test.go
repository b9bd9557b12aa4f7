package calendarcache

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/always-cache/calendar-cache/cache"
	cachekey "github.com/always-cache/calendar-cache/pkg/cache-key"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const realizationJSON = `{"id":"abc123","name":{"fi":"Ohjelmointi 1","en":"Programming 1"},"activityPeriod":{"startDate":"2024-09-02"}}`

func newTestRealizationCache(t *testing.T, up *upstream, store cache.Store) *RealizationCache {
	t.Helper()
	origin, err := url.Parse(up.url("/api"))
	require.NoError(t, err)
	return NewRealizationCache(RealizationConfig{
		Store:  store,
		Origin: *origin,
		Logger: nopLogger(),
	})
}

func TestGetRealizationIsCachedForever(t *testing.T) {
	up := newUpstream(t, http.StatusOK, realizationJSON)
	store := cache.NewMemStore(0)
	r := newTestRealizationCache(t, up, store)
	// realizations have no notion of time; advancing a clock changes nothing
	mock := clock.NewMock()

	first, err := r.GetRealization(context.Background(), "abc123")
	require.NoError(t, err)
	assert.False(t, first.WasCached)
	assert.Equal(t, http.StatusOK, first.Status)
	assert.JSONEq(t, realizationJSON, string(first.Payload))

	up.respond(http.StatusOK, `{"id":"abc123","changed":true}`)
	for i := 0; i < 5; i++ {
		mock.Add(24 * time.Hour)
		res, err := r.GetRealization(context.Background(), "abc123")
		require.NoError(t, err)
		assert.True(t, res.WasCached)
		assert.Equal(t, http.StatusOK, res.Status)
		assert.Equal(t, []byte(first.Payload), []byte(res.Payload))
	}

	assert.Equal(t, 1, up.count())
	assert.Equal(t, []string{"/api/rest/realization/abc123"}, up.paths)
}

func TestGetRealizationUpstreamError(t *testing.T) {
	up := newUpstream(t, http.StatusNotFound, `{"message":"not found"}`)
	store := cache.NewMemStore(0)
	r := newTestRealizationCache(t, up, store)

	_, err := r.GetRealization(context.Background(), "missing")
	var upErr *UpstreamFetchError
	require.True(t, errors.As(err, &upErr), "error is %v", err)
	assert.Equal(t, http.StatusNotFound, upErr.StatusCode)
	assert.Equal(t, "Not Found", upErr.Status)

	_, ok, _ := store.Get(cachekey.RealizationKey("missing"))
	assert.False(t, ok)
}

func TestGetRealizationRejectsNonJSON(t *testing.T) {
	up := newUpstream(t, http.StatusOK, "<html>maintenance</html>")
	store := cache.NewMemStore(0)
	r := newTestRealizationCache(t, up, store)

	_, err := r.GetRealization(context.Background(), "abc123")
	var payloadErr *InvalidPayloadError
	require.True(t, errors.As(err, &payloadErr), "error is %v", err)
	assert.Equal(t, PayloadJSON, payloadErr.Kind)
	assert.Equal(t, 0, store.Len())
}

func TestRealizationAndCalendarShareStore(t *testing.T) {
	up := newUpstream(t, http.StatusOK, realizationJSON)
	store := cache.NewMemStore(0)
	r := newTestRealizationCache(t, up, store)

	_, err := r.GetRealization(context.Background(), "abc123")
	require.NoError(t, err)
	value, ok, _ := store.Get("realization_abc123")
	require.True(t, ok)
	assert.Equal(t, realizationJSON, string(value))
}

func TestValidateRealizationID(t *testing.T) {
	for _, id := range []string{"abc123", "otm-1234_ABCD", "-", "_"} {
		assert.NoError(t, ValidateRealizationID(id), id)
	}
	for _, id := range []string{"", "a/b", "../etc", "a b", "abc?x=1", "ä", "a.b"} {
		err := ValidateRealizationID(id)
		var valErr *ValidationError
		assert.True(t, errors.As(err, &valErr), "id %q", id)
	}
}

func TestValidateCalendarURL(t *testing.T) {
	for _, u := range []string{
		"http://x/cal.ics",
		"https://calendar.example.com/ical/abc.ics?lang=en",
		"https://calendar.example.com/cal.ics ",
		"webcal://calendar.example.com/cal.ics",
	} {
		assert.NoError(t, ValidateCalendarURL(u), u)
	}
	for _, u := range []string{"", "   ", "cal.ics", "/relative/cal.ics", "http://", "://nope"} {
		err := ValidateCalendarURL(u)
		var valErr *ValidationError
		assert.True(t, errors.As(err, &valErr), "url %q", u)
	}
}

func TestIsFetchFailure(t *testing.T) {
	assert.True(t, IsFetchFailure(&UpstreamFetchError{StatusCode: 500}))
	assert.True(t, IsFetchFailure(errors.Wrap(&NetworkError{Err: errors.New("refused")}, "fetch")))
	assert.True(t, IsFetchFailure(&InvalidPayloadError{Kind: PayloadICalendar}))
	assert.False(t, IsFetchFailure(errors.New("disk full")))
	assert.False(t, IsFetchFailure(&ValidationError{}))
}

func TestRealizationPayloadIsACopy(t *testing.T) {
	up := newUpstream(t, http.StatusOK, realizationJSON)
	store := cache.NewMemStore(0)
	r := newTestRealizationCache(t, up, store)

	first, err := r.GetRealization(context.Background(), "abc123")
	require.NoError(t, err)
	first.Payload[0] = 'X'

	second, err := r.GetRealization(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, second.WasCached)
	second.Payload[0] = 'Y'

	stored, _, _ := store.Get(cachekey.RealizationKey("abc123"))
	assert.Equal(t, realizationJSON, string(stored))
	third, err := r.GetRealization(context.Background(), "abc123")
	require.NoError(t, err)
	assert.JSONEq(t, realizationJSON, string(third.Payload))
}
