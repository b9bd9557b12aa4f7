package rfc9211

import (
	"fmt"
	"strings"
)

// CacheName identifies this cache in Cache-Status field values.
const CacheName = "Calendar-Cache"

// HeaderName is the name of the response header field.
const HeaderName = "Cache-Status"

type Status string

const (
	StatusHit Status = "hit"
	StatusFwd Status = "fwd"
)

// §  2.2.  The fwd Parameter
// §
// §     "fwd" indicates that the request went forward towards the origin.
type FwdReason string

const (
	// §     uri-miss:  The cache did not contain any responses that matched the
	// §        request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"

	// §     stale:  The cache was able to select a response for the request, but
	// §        it was stale.
	FwdReasonStale FwdReason = "stale"
)

// CacheStatus describes how the cache handled one request.
// The zero value renders as a bare cache name.
type CacheStatus struct {
	Status    Status
	FwdReason FwdReason
	// §  2.3.  The fwd-status Parameter
	FwdStatus int
	// §  2.5.  The stored Parameter
	Stored bool
	// §  2.6.  The collapsed Parameter
	Collapsed bool
}

func (cs *CacheStatus) Hit() {
	cs.Status = StatusHit
	cs.FwdReason = ""
}

func (cs *CacheStatus) Forward(reason FwdReason) {
	cs.Status = StatusFwd
	cs.FwdReason = reason
}

// IsHit reports whether the response was served from the cache.
func (cs CacheStatus) IsHit() bool {
	return cs.Status == StatusHit
}

// §  2.  The Cache-Status HTTP Response Header Field
// §
// §     Cache-Status   = sf-list
// §
// §     Each member of the list represents a cache that has handled the
// §     request.  The first member of the list represents the cache closest
// §     to the origin server, and the last member of the list represents the
// §     cache closest to the user (possibly including the user agent's cache
// §     itself if it appends a value).
func (cs CacheStatus) String() string {
	parts := []string{CacheName}
	switch cs.Status {
	case StatusHit:
		parts = append(parts, string(StatusHit))
	case StatusFwd:
		parts = append(parts, fmt.Sprintf("%s=%s", StatusFwd, cs.FwdReason))
		if cs.FwdStatus != 0 {
			parts = append(parts, fmt.Sprintf("fwd-status=%d", cs.FwdStatus))
		}
	}
	if cs.Stored {
		parts = append(parts, "stored")
	}
	if cs.Collapsed {
		parts = append(parts, "collapsed")
	}
	return strings.Join(parts, "; ")
}
