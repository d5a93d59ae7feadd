package testdata

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ellis-vester/backloggd-discord/backend/data"
	"github.com/jackc/pgxutil"
	"github.com/stretchr/testify/require"
)

var counter atomic.Int64

// FeedAttrs overrides the defaults of CreateFeed. Zero values keep the defaults.
type FeedAttrs struct {
	URL         string
	LastChecked time.Time
	ETag        string
}

// CreateFeed inserts a feed and returns it as stored.
func CreateFeed(t testing.TB, ctx context.Context, store data.FeedStore, attrs FeedAttrs) data.Feed {
	if attrs.URL == "" {
		attrs.URL = fmt.Sprintf("https://backloggd.com/u/user%d/reviews/rss/", counter.Add(1))
	}

	id, err := store.UpsertFeed(ctx, attrs.URL)
	require.NoError(t, err)

	feed := data.Feed{ID: id, URL: attrs.URL, LastChecked: data.NeverChecked}
	if !attrs.LastChecked.IsZero() || attrs.ETag != "" {
		if !attrs.LastChecked.IsZero() {
			feed.LastChecked = attrs.LastChecked.UTC().Truncate(time.Second)
		}
		feed.ETag = attrs.ETag
		err = store.UpdateCursor(ctx, id, feed.LastChecked, feed.ETag)
		require.NoError(t, err)
	}

	return feed
}

// CreateSubscription subscribes channelID to feedID. When channelID is empty a unique one is generated and returned.
func CreateSubscription(t testing.TB, ctx context.Context, store data.FeedStore, feedID int64, channelID string) string {
	if channelID == "" {
		channelID = fmt.Sprintf("%d", 1000000000000000000+counter.Add(1))
	}

	err := store.CreateSubscription(ctx, feedID, channelID)
	require.NoError(t, err)

	return channelID
}

// InsertFeedRow writes a feeds row directly to PostgreSQL. attrs may set any column, including last_checked as a
// time.Time, which is stored in the persisted timestamp form.
func InsertFeedRow(t testing.TB, ctx context.Context, db pgxutil.Queryer, attrs map[string]any) map[string]any {
	if _, ok := attrs["url"]; !ok {
		attrs["url"] = fmt.Sprintf("https://backloggd.com/u/user%d/reviews/rss/", counter.Add(1))
	}
	if lastChecked, ok := attrs["last_checked"].(time.Time); ok {
		attrs["last_checked"] = data.FormatTimestamp(lastChecked)
	}

	feed, err := pgxutil.Insert(ctx, db, "feeds", attrs)
	require.NoError(t, err)

	return feed
}

// InsertSubscriptionRow writes a subscriptions row directly to PostgreSQL.
func InsertSubscriptionRow(t testing.TB, ctx context.Context, db pgxutil.Queryer, feedID any, channelID string) map[string]any {
	subscription, err := pgxutil.Insert(ctx, db, "subscriptions", map[string]any{"feed_id": feedID, "channel_id": channelID})
	require.NoError(t, err)

	return subscription
}
