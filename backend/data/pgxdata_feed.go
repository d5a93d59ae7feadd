package data

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgxutil"
)

const selectFeedSQL = `select id, url, last_checked, etag from feeds`

func rowToFeed(row pgx.CollectableRow) (Feed, error) {
	var f Feed
	var lastChecked string
	err := row.Scan(&f.ID, &f.URL, &lastChecked, &f.ETag)
	if err != nil {
		return f, err
	}

	f.LastChecked, err = ParseTimestamp(lastChecked)
	return f, err
}

const selectDueFeedsSQL = selectFeedSQL + ` order by last_checked, id limit $1`

func SelectDueFeeds(ctx context.Context, db Queryer, limit int) ([]Feed, error) {
	rows, _ := db.Query(ctx, selectDueFeedsSQL, limit)
	return pgx.CollectRows(rows, rowToFeed)
}

func (store *PgxStore) SelectDueFeeds(ctx context.Context, limit int) ([]Feed, error) {
	feeds, err := SelectDueFeeds(ctx, store.pool, limit)
	if err != nil {
		return nil, storageError("select due feeds", err)
	}
	return feeds, nil
}

func (store *PgxStore) UpdateCursor(ctx context.Context, feedID int64, lastChecked time.Time, etag string) error {
	_, err := pgxutil.Update(ctx, store.pool, "feeds",
		map[string]any{"last_checked": FormatTimestamp(lastChecked), "etag": etag},
		map[string]any{"id": feedID},
	)
	return storageError("update cursor", err)
}

const insertFeedSQL = `insert into feeds(url, last_checked, etag) values($1, $2, '') on conflict (url) do nothing`
const selectFeedIDByURLSQL = `select id from feeds where url=$1`

func (store *PgxStore) UpsertFeed(ctx context.Context, url string) (int64, error) {
	tx, err := store.pool.Begin(ctx)
	if err != nil {
		return 0, storageError("upsert feed", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, insertFeedSQL, url, FormatTimestamp(NeverChecked))
	if err != nil {
		return 0, storageError("upsert feed", err)
	}

	id, err := pgxutil.SelectValue[int64](ctx, tx, selectFeedIDByURLSQL, url)
	if err != nil {
		return 0, storageError("upsert feed", err)
	}

	return id, storageError("upsert feed", tx.Commit(ctx))
}

func (store *PgxStore) GetFeedIDByURL(ctx context.Context, url string) (int64, error) {
	ids, err := pgxutil.SelectColumn[int64](ctx, store.pool, selectFeedIDByURLSQL, url)
	if err != nil {
		return 0, storageError("get feed id", err)
	}
	if len(ids) == 0 {
		return 0, ErrNotFound
	}

	return ids[0], nil
}
