package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ellis-vester/backloggd-discord/backend/data"
	log "gopkg.in/inconshreveable/log15.v2"
)

func newTestLogger() log.Logger {
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	return logger
}

type fakeClock struct {
	mutex    sync.Mutex
	now      time.Time
	ticks    chan time.Time
	sleeping chan time.Duration
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{
		now:      now,
		ticks:    make(chan time.Time),
		sleeping: make(chan time.Duration, 16),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.sleeping <- d
	return c.ticks
}

type sentNotification struct {
	channelID string
	n         *Notification
}

type recordingSink struct {
	mutex       sync.Mutex
	sent        []sentNotification
	failChannel map[string]bool
}

func newRecordingSink(failChannels ...string) *recordingSink {
	s := &recordingSink{failChannel: make(map[string]bool)}
	for _, c := range failChannels {
		s.failChannel[c] = true
	}
	return s
}

func (s *recordingSink) Send(ctx context.Context, channelID string, n *Notification) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.failChannel[channelID] {
		return errors.New("unknown channel")
	}
	s.sent = append(s.sent, sentNotification{channelID: channelID, n: n})
	return nil
}

func (s *recordingSink) Sent() []sentNotification {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]sentNotification(nil), s.sent...)
}

type fakeFetch struct {
	result *FetchResult
	err    error
}

type fakeFetcher struct {
	mutex     sync.Mutex
	responses map[string]fakeFetch
	requests  []string
	etags     map[string]string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: make(map[string]fakeFetch), etags: make(map[string]string)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, etag string) (*FetchResult, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.requests = append(f.requests, url)
	f.etags[url] = etag

	r, ok := f.responses[url]
	if !ok {
		return nil, &FetchError{Kind: FetchUnexpectedStatus, URL: url, StatusCode: 404}
	}
	return r.result, r.err
}

func (f *fakeFetcher) Requests() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]string(nil), f.requests...)
}

// blockingFetcher holds every fetch until release is closed. started receives the URL of each fetch as it begins.
type blockingFetcher struct {
	inner   FeedFetcher
	started chan string
	release chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context, url, etag string) (*FetchResult, error) {
	f.started <- url
	<-f.release
	return f.inner.Fetch(ctx, url, etag)
}

// flakyStore fails SelectDueFeeds while selectErr is set.
type flakyStore struct {
	data.FeedStore
	mutex       sync.Mutex
	selectErr   error
	selectCalls atomic.Int32
}

func (s *flakyStore) SelectDueFeeds(ctx context.Context, limit int) ([]data.Feed, error) {
	s.selectCalls.Add(1)

	s.mutex.Lock()
	err := s.selectErr
	s.mutex.Unlock()

	if err != nil {
		return nil, &data.StorageError{Op: "select due feeds", Err: err}
	}
	return s.FeedStore.SelectDueFeeds(ctx, limit)
}

func (s *flakyStore) setSelectErr(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.selectErr = err
}
