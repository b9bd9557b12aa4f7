package cachekey

import "strings"

// Resource kinds. The kind is the first part of every key.
const (
	KindCalendar    = "calendar"
	KindRealization = "realization"

	kindSeparator = "_"
)

// CalendarKey returns the cache key for a calendar URL.
// The URL is used verbatim: two URLs differing only in casing or
// surrounding whitespace are different keys.
func CalendarKey(rawURL string) string {
	return KindCalendar + kindSeparator + rawURL
}

// RealizationKey returns the cache key for a realization id.
func RealizationKey(id string) string {
	return KindRealization + kindSeparator + id
}

// Kind returns the resource kind encoded in key,
// or an empty string if the key was not created by this package.
func Kind(key string) string {
	kind, _, found := strings.Cut(key, kindSeparator)
	if !found {
		return ""
	}
	switch kind {
	case KindCalendar, KindRealization:
		return kind
	}
	return ""
}
