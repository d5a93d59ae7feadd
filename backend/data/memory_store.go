package data

import (
	"context"
	"sort"
	"sync"
	"time"
)

type int64Seq struct {
	current int64
	mutex   sync.Mutex
}

func (s *int64Seq) next() int64 {
	s.mutex.Lock()
	s.current++
	n := s.current
	s.mutex.Unlock()
	return n
}

// MemoryStore is a FeedStore that keeps everything in process memory. It is used by tests and by dry runs.
type MemoryStore struct {
	mutex         sync.Mutex
	feedsIDSeq    int64Seq
	feedsByID     map[int64]*Feed
	feedsByURL    map[string]*Feed
	subsIDSeq     int64Seq
	subscriptions []Subscription
}

func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{}
	store.feedsByID = make(map[int64]*Feed)
	store.feedsByURL = make(map[string]*Feed)
	return store
}

func (store *MemoryStore) SelectDueFeeds(ctx context.Context, limit int) ([]Feed, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	feeds := make([]Feed, 0, len(store.feedsByID))
	for _, f := range store.feedsByID {
		feeds = append(feeds, *f)
	}

	sort.Slice(feeds, func(i, j int) bool {
		if feeds[i].LastChecked.Equal(feeds[j].LastChecked) {
			return feeds[i].ID < feeds[j].ID
		}
		return feeds[i].LastChecked.Before(feeds[j].LastChecked)
	})

	if limit < 0 {
		limit = 0
	}
	if len(feeds) > limit {
		feeds = feeds[:limit]
	}

	return feeds, nil
}

func (store *MemoryStore) ListSubscribers(ctx context.Context, feedID int64) ([]string, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	seen := make(map[string]struct{})
	channelIDs := make([]string, 0)
	for _, s := range store.subscriptions {
		if s.FeedID != feedID {
			continue
		}
		if _, ok := seen[s.ChannelID]; ok {
			continue
		}
		seen[s.ChannelID] = struct{}{}
		channelIDs = append(channelIDs, s.ChannelID)
	}

	return channelIDs, nil
}

func (store *MemoryStore) UpdateCursor(ctx context.Context, feedID int64, lastChecked time.Time, etag string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	feed, ok := store.feedsByID[feedID]
	if !ok {
		return nil
	}

	feed.LastChecked = normalizeTimestamp(lastChecked)
	feed.ETag = etag

	return nil
}

func (store *MemoryStore) UpsertFeed(ctx context.Context, url string) (int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if feed, ok := store.feedsByURL[url]; ok {
		return feed.ID, nil
	}

	feed := &Feed{ID: store.feedsIDSeq.next(), URL: url, LastChecked: NeverChecked}
	store.feedsByID[feed.ID] = feed
	store.feedsByURL[feed.URL] = feed

	return feed.ID, nil
}

func (store *MemoryStore) GetFeedIDByURL(ctx context.Context, url string) (int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	feed, ok := store.feedsByURL[url]
	if !ok {
		return 0, ErrNotFound
	}

	return feed.ID, nil
}

func (store *MemoryStore) CreateSubscription(ctx context.Context, feedID int64, channelID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if _, ok := store.feedsByID[feedID]; !ok {
		return storageError("create subscription", ErrNotFound)
	}

	store.subscriptions = append(store.subscriptions, Subscription{
		ID:        store.subsIDSeq.next(),
		FeedID:    feedID,
		ChannelID: channelID,
	})

	return nil
}

func (store *MemoryStore) DeleteSubscription(ctx context.Context, feedID int64, channelID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	kept := store.subscriptions[:0]
	for _, s := range store.subscriptions {
		if s.FeedID != feedID || s.ChannelID != channelID {
			kept = append(kept, s)
		}
	}

	deleted := len(store.subscriptions) - len(kept)
	store.subscriptions = kept
	if deleted == 0 {
		return ErrNotFound
	}

	return nil
}

func (store *MemoryStore) ListChannelSubscriptions(ctx context.Context, channelID string) ([]Feed, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	seen := make(map[int64]struct{})
	feeds := make([]Feed, 0)
	for _, s := range store.subscriptions {
		if s.ChannelID != channelID {
			continue
		}
		if _, ok := seen[s.FeedID]; ok {
			continue
		}
		seen[s.FeedID] = struct{}{}
		feeds = append(feeds, *store.feedsByID[s.FeedID])
	}

	sort.Slice(feeds, func(i, j int) bool { return feeds[i].URL < feeds[j].URL })

	return feeds, nil
}
