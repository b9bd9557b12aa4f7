package calendarcache

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Payload kinds reported by InvalidPayloadError.
const (
	PayloadICalendar = "icalendar"
	PayloadJSON      = "json"
)

// ValidationError means caller input was malformed.
// It is returned before any cache or upstream access.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// UpstreamFetchError means the upstream answered with a non-2xx status.
type UpstreamFetchError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("upstream responded %d %s", e.StatusCode, e.Status)
}

// InvalidPayloadError means the upstream body did not have the expected shape.
type InvalidPayloadError struct {
	URL  string
	Kind string
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("upstream payload is not valid %s", e.Kind)
}

// NetworkError means the upstream could not be reached or read from.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("could not reach upstream: %s", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

var realizationIDPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

// ValidateRealizationID returns a *ValidationError unless id is safe to use
// as a single URL path segment.
func ValidateRealizationID(id string) error {
	if !realizationIDPattern.MatchString(id) {
		return &ValidationError{
			Field:  "realizationId",
			Value:  id,
			Reason: "only letters, digits, '-' and '_' are allowed",
		}
	}
	return nil
}

// ValidateCalendarURL returns a *ValidationError unless rawURL is an absolute URL.
// Surrounding whitespace is tolerated here but is still part of the cache key.
func ValidateCalendarURL(rawURL string) error {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return &ValidationError{Field: "url", Value: rawURL, Reason: "parameter is required"}
	}
	u, err := url.Parse(trimmed)
	if err != nil || !u.IsAbs() {
		return &ValidationError{Field: "url", Value: rawURL, Reason: "not an absolute URL"}
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return &ValidationError{Field: "url", Value: rawURL, Reason: "missing host"}
	}
	return nil
}

// IsFetchFailure reports whether err came from talking to the upstream,
// as opposed to a local failure.
func IsFetchFailure(err error) bool {
	var (
		upstream *UpstreamFetchError
		payload  *InvalidPayloadError
		network  *NetworkError
	)
	return errors.As(err, &upstream) || errors.As(err, &payload) || errors.As(err, &network)
}
