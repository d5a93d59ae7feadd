package backend

import (
	"time"
)

type ParsedFeed struct {
	Title       string
	Link        string
	Description string
	Items       []ParsedItem
}

// ParsedItem is one review in a feed document.
type ParsedItem struct {
	Title          string
	Link           string
	PublishedAt    time.Time
	Description    string
	GUID           string
	ReviewerName   string
	ReviewerRating int // half stars, 0 through 10. 0 is unrated.
	ImageURL       string
}

func (i *ParsedItem) IsValid() bool {
	return i.Title != "" && i.Link != "" && !i.PublishedAt.IsZero()
}

// FetchResult is the outcome of a conditional fetch. NotModified means the server answered 304 and Body is nil. ETag is
// the token the server sent, if any.
type FetchResult struct {
	Body        []byte
	ETag        string
	NotModified bool
}

// Clock is the source of time for the scheduler.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
