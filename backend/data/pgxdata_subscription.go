package data

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgxutil"
)

const selectSubscribersSQL = `select distinct channel_id from subscriptions where feed_id=$1 order by channel_id`

func (store *PgxStore) ListSubscribers(ctx context.Context, feedID int64) ([]string, error) {
	channelIDs, err := pgxutil.SelectColumn[string](ctx, store.pool, selectSubscribersSQL, feedID)
	if err != nil {
		return nil, storageError("list subscribers", err)
	}
	return channelIDs, nil
}

func (store *PgxStore) CreateSubscription(ctx context.Context, feedID int64, channelID string) error {
	_, err := pgxutil.Insert(ctx, store.pool, "subscriptions", map[string]any{"feed_id": feedID, "channel_id": channelID})
	return storageError("create subscription", err)
}

const deleteSubscriptionSQL = `delete from subscriptions where feed_id=$1 and channel_id=$2`

func (store *PgxStore) DeleteSubscription(ctx context.Context, feedID int64, channelID string) error {
	ct, err := store.pool.Exec(ctx, deleteSubscriptionSQL, feedID, channelID)
	if err != nil {
		return storageError("delete subscription", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

const selectChannelSubscriptionsSQL = selectFeedSQL + `
where exists(select 1 from subscriptions where subscriptions.feed_id=feeds.id and channel_id=$1)
order by url`

func (store *PgxStore) ListChannelSubscriptions(ctx context.Context, channelID string) ([]Feed, error) {
	rows, _ := store.pool.Query(ctx, selectChannelSubscriptionsSQL, channelID)
	feeds, err := pgx.CollectRows(rows, rowToFeed)
	if err != nil {
		return nil, storageError("list channel subscriptions", err)
	}
	return feeds, nil
}
