package data

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

// StorageError wraps any failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// FeedStore persists feeds, their freshness cursors, and the channels subscribed to them. Implementations must be safe
// for concurrent use. Every method is a single transactional unit.
type FeedStore interface {
	// SelectDueFeeds returns at most limit feeds ordered by LastChecked ascending, ties broken by ID.
	SelectDueFeeds(ctx context.Context, limit int) ([]Feed, error)

	// ListSubscribers returns the distinct channel IDs subscribed to feedID.
	ListSubscribers(ctx context.Context, feedID int64) ([]string, error)

	// UpdateCursor overwrites the LastChecked and ETag of feedID.
	UpdateCursor(ctx context.Context, feedID int64, lastChecked time.Time, etag string) error

	// UpsertFeed returns the ID of the feed with url, creating it with a NeverChecked cursor when absent.
	UpsertFeed(ctx context.Context, url string) (int64, error)

	// GetFeedIDByURL returns ErrNotFound when no feed has url.
	GetFeedIDByURL(ctx context.Context, url string) (int64, error)

	CreateSubscription(ctx context.Context, feedID int64, channelID string) error

	// DeleteSubscription removes every subscription of channelID to feedID. It returns ErrNotFound when there were
	// none. The feed itself is kept.
	DeleteSubscription(ctx context.Context, feedID int64, channelID string) error

	// ListChannelSubscriptions returns the feeds channelID is subscribed to ordered by URL.
	ListChannelSubscriptions(ctx context.Context, channelID string) ([]Feed, error)
}
