package backend

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ellis-vester/backloggd-discord/backend/data"
	"golang.org/x/sync/errgroup"
	log "gopkg.in/inconshreveable/log15.v2"
)

type SchedulerState int32

const (
	StateIdle SchedulerState = iota
	StateRunning
	StateSleeping
	StateCancelled
)

func (s SchedulerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// FeedResult is the outcome of refreshing a single feed.
type FeedResult struct {
	FeedID      int64
	NotModified bool
	NewItems    int
	Publish     PublishReport
	Err         error
}

// CycleReport summarizes one pass over a batch of due feeds.
type CycleReport struct {
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Selected         int       `json:"selected"`
	Succeeded        int       `json:"succeeded"`
	NotModified      int       `json:"not_modified"`
	Failed           int       `json:"failed"`
	ItemsPublished   int       `json:"items_published"`
	DeliveriesFailed int       `json:"deliveries_failed"`
}

type FeedUpdater struct {
	store      data.FeedStore
	fetcher    FeedFetcher
	parser     FeedParser
	dispatcher *Dispatcher
	logger     log.Logger
	clock      Clock

	BatchSize                int
	Interval                 time.Duration
	MaxConcurrentFeedFetches int

	state atomic.Int32

	mutex     sync.Mutex
	lastCycle *CycleReport
}

func NewFeedUpdater(store data.FeedStore, fetcher FeedFetcher, parser FeedParser, dispatcher *Dispatcher, logger log.Logger) *FeedUpdater {
	feedUpdater := &FeedUpdater{}
	feedUpdater.store = store
	feedUpdater.fetcher = fetcher
	feedUpdater.parser = parser
	feedUpdater.dispatcher = dispatcher
	feedUpdater.logger = logger
	feedUpdater.clock = SystemClock
	feedUpdater.BatchSize = 100
	feedUpdater.Interval = time.Hour
	feedUpdater.MaxConcurrentFeedFetches = 25
	return feedUpdater
}

func (u *FeedUpdater) SetClock(clock Clock) {
	u.clock = clock
}

func (u *FeedUpdater) State() SchedulerState {
	return SchedulerState(u.state.Load())
}

func (u *FeedUpdater) setState(s SchedulerState) {
	u.state.Store(int32(s))
}

// LastCycle returns the report of the most recently completed cycle or nil if none has completed.
func (u *FeedUpdater) LastCycle() *CycleReport {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if u.lastCycle == nil {
		return nil
	}
	report := *u.lastCycle
	return &report
}

// KeepFeedsFresh runs cycles separated by Interval until ctx is cancelled. Cancellation is observed before each batch
// and during the sleep. Feeds already started when ctx is cancelled are finished before it returns.
func (u *FeedUpdater) KeepFeedsFresh(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			u.setState(StateCancelled)
			return
		}

		u.setState(StateRunning)
		if _, err := u.RunCycle(ctx); err != nil {
			u.logger.Error("SelectDueFeeds failed", "error", err)
		}

		u.setState(StateSleeping)
		select {
		case <-ctx.Done():
			u.setState(StateCancelled)
			return
		case <-u.clock.After(u.Interval):
		}
	}
}

// RunCycle refreshes one batch of due feeds. Only a failure to select the batch is returned. Per feed failures are
// logged and counted in the report.
func (u *FeedUpdater) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{StartTime: u.clock.Now()}

	feeds, err := u.store.SelectDueFeeds(ctx, u.BatchSize)
	if err != nil {
		return report, err
	}
	u.logger.Info("SelectDueFeeds succeeded", "n", len(feeds))
	report.Selected = len(feeds)

	results := make([]FeedResult, len(feeds))
	started := make([]bool, len(feeds))

	g := new(errgroup.Group)
	g.SetLimit(max(u.MaxConcurrentFeedFetches, 1))
	for i, feed := range feeds {
		i, feed := i, feed
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			// Cancelled while waiting for a slot.
			if ctx.Err() != nil {
				return nil
			}

			// A started feed always runs to completion.
			started[i] = true
			results[i] = u.RefreshFeed(context.WithoutCancel(ctx), feed)
			return nil
		})
	}
	g.Wait()

	skipped := 0
	for _, s := range started {
		if !s {
			skipped++
		}
	}
	if skipped > 0 {
		u.logger.Info("cycle interrupted", "skipped", skipped)
	}

	for i, r := range results {
		if !started[i] {
			continue
		}
		switch {
		case r.Err != nil:
			report.Failed++
		case r.NotModified:
			report.NotModified++
		default:
			report.Succeeded++
		}
		report.ItemsPublished += r.Publish.Items
		report.DeliveriesFailed += r.Publish.Failed
	}
	report.EndTime = u.clock.Now()

	u.mutex.Lock()
	u.lastCycle = &report
	u.mutex.Unlock()

	u.logger.Info("cycle finished",
		"selected", report.Selected,
		"succeeded", report.Succeeded,
		"notModified", report.NotModified,
		"failed", report.Failed,
		"items", report.ItemsPublished,
		"deliveriesFailed", report.DeliveriesFailed,
	)

	return report, nil
}

// RefreshFeed fetches, parses and publishes one feed, then advances its cursor. On any failure the cursor is left
// unchanged so the feed stays due.
func (u *FeedUpdater) RefreshFeed(ctx context.Context, feed data.Feed) FeedResult {
	result := FeedResult{FeedID: feed.ID}
	checkedAt := u.clock.Now()

	fetched, err := u.fetcher.Fetch(ctx, feed.URL, feed.ETag)
	if err != nil {
		u.logger.Error("fetchFeed failed", "url", feed.URL, "error", err)
		result.Err = err
		return result
	}

	lastChecked := nextLastChecked(feed.LastChecked, checkedAt)

	// The stored token is only replaced by a response that carried one.
	etag := fetched.ETag
	if etag == "" {
		etag = feed.ETag
	}

	if fetched.NotModified {
		u.logger.Info("fetchFeed 304 unchanged", "url", feed.URL)
		if err := u.store.UpdateCursor(ctx, feed.ID, lastChecked, etag); err != nil {
			u.logger.Error("UpdateCursor failed", "url", feed.URL, "error", err)
			result.Err = err
			return result
		}
		result.NotModified = true
		return result
	}

	parsed, err := u.parser.Parse(fetched.Body)
	if err != nil {
		u.logger.Error("parseFeed failed", "url", feed.URL, "error", err)
		result.Err = err
		return result
	}

	newItems := SelectNewItems(parsed.Items, feed.LastChecked)
	result.NewItems = len(newItems)

	if len(newItems) > 0 {
		channelIDs, err := u.store.ListSubscribers(ctx, feed.ID)
		if err != nil {
			u.logger.Error("ListSubscribers failed", "url", feed.URL, "error", err)
			result.Err = err
			return result
		}

		result.Publish = u.dispatcher.Publish(ctx, feed, newItems, channelIDs)
	}

	if err := u.store.UpdateCursor(ctx, feed.ID, lastChecked, etag); err != nil {
		u.logger.Error("UpdateCursor failed", "url", feed.URL, "error", err)
		result.Err = err
		return result
	}

	u.logger.Info("refreshFeed succeeded", "url", feed.URL, "id", feed.ID, "newItems", len(newItems), "sent", result.Publish.Sent, "failed", result.Publish.Failed)
	return result
}

// nextLastChecked returns checkedAt at storage precision, never earlier than previous.
func nextLastChecked(previous, checkedAt time.Time) time.Time {
	next := checkedAt.UTC().Truncate(time.Second)
	if next.Before(previous) {
		return previous
	}
	return next
}
