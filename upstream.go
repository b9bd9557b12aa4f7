package calendarcache

import (
	"context"
	"io"
	"net/http"
	"strings"
)

const userAgent = "calendar-cache"

// get issues a GET request to rawURL and returns the body and status code of a 2xx response.
// Failures are returned as *NetworkError or *UpstreamFetchError.
func get(ctx context.Context, client *http.Client, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(rawURL), nil)
	if err != nil {
		return nil, 0, &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := client.Do(req)
	if err != nil {
		return nil, 0, &NetworkError{URL: rawURL, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, 0, &UpstreamFetchError{
			URL:        rawURL,
			StatusCode: res.StatusCode,
			Status:     statusText(res),
		}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, &NetworkError{URL: rawURL, Err: err}
	}
	return body, res.StatusCode, nil
}

// statusText returns the reason phrase sent by the upstream,
// falling back to the standard text for the code.
func statusText(res *http.Response) string {
	if _, text, found := strings.Cut(res.Status, " "); found && text != "" {
		return text
	}
	return http.StatusText(res.StatusCode)
}
