package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedProbe checks that a URL serves a feed before anyone subscribes to it.
type FeedProbe interface {
	FeedExists(ctx context.Context, url string) (bool, error)
}

// GofeedProbe downloads and parses the feed with gofeed, which accepts any RSS, Atom, or JSON feed.
type GofeedProbe struct {
	parser *gofeed.Parser
}

func NewGofeedProbe(timeout time.Duration, userAgent string) *GofeedProbe {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	parser.UserAgent = userAgent

	return &GofeedProbe{parser: parser}
}

// FeedExists reports false when the server answers 404 or 410. Any other failure is an error.
func (p *GofeedProbe) FeedExists(ctx context.Context, url string) (bool, error) {
	_, err := p.parser.ParseURLWithContext(url, ctx)
	if err == nil {
		return true, nil
	}

	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusNotFound || httpErr.StatusCode == http.StatusGone) {
		return false, nil
	}

	return false, fmt.Errorf("probe %s: %w", url, err)
}
