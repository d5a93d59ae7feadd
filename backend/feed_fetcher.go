package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultUserAgent = "backloggd-discord (+https://github.com/ellis-vester/backloggd-discord)"

// FeedFetcher performs a conditional GET of a feed document.
type FeedFetcher interface {
	Fetch(ctx context.Context, url, etag string) (*FetchResult, error)
}

type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher returns a fetcher whose requests time out after timeout. An empty userAgent uses a default.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url, etag string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchTransport, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	if etag != "" {
		req.Header.Add("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: FetchTransport, URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &FetchError{Kind: FetchTransport, URL: url, Err: fmt.Errorf("unable to read response body: %w", err)}
		}

		return &FetchResult{Body: body, ETag: resp.Header.Get("Etag")}, nil
	case http.StatusNotModified:
		return &FetchResult{NotModified: true, ETag: resp.Header.Get("Etag")}, nil
	default:
		return nil, &FetchError{Kind: FetchUnexpectedStatus, URL: url, StatusCode: resp.StatusCode}
	}
}
