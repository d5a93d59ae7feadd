package data

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a FeedStore backed by a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the database at path and ensures the schema exists.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, storageError("open", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := MigrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// sqliteDSN applies the connection pragmas through the DSN so that every connection the pool opens gets them.
func sqliteDSN(path string) string {
	pragmas := url.Values{"_pragma": {"foreign_keys(1)", "journal_mode(WAL)"}}
	return path + "?" + pragmas.Encode()
}

func (store *SQLiteStore) Close() error {
	return store.db.Close()
}

func scanFeeds(rows *sql.Rows) ([]Feed, error) {
	defer rows.Close()

	feeds := make([]Feed, 0)
	for rows.Next() {
		var f Feed
		var lastChecked string
		if err := rows.Scan(&f.ID, &f.URL, &lastChecked, &f.ETag); err != nil {
			return nil, err
		}

		var err error
		f.LastChecked, err = ParseTimestamp(lastChecked)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, f)
	}

	return feeds, rows.Err()
}

func (store *SQLiteStore) SelectDueFeeds(ctx context.Context, limit int) ([]Feed, error) {
	rows, err := store.db.QueryContext(ctx, `select id, url, last_checked, etag from feeds order by last_checked, id limit ?`, limit)
	if err != nil {
		return nil, storageError("select due feeds", err)
	}

	feeds, err := scanFeeds(rows)
	if err != nil {
		return nil, storageError("select due feeds", err)
	}

	return feeds, nil
}

func (store *SQLiteStore) ListSubscribers(ctx context.Context, feedID int64) ([]string, error) {
	rows, err := store.db.QueryContext(ctx, `select distinct channel_id from subscriptions where feed_id = ? order by channel_id`, feedID)
	if err != nil {
		return nil, storageError("list subscribers", err)
	}
	defer rows.Close()

	channelIDs := make([]string, 0)
	for rows.Next() {
		var channelID string
		if err := rows.Scan(&channelID); err != nil {
			return nil, storageError("list subscribers", err)
		}
		channelIDs = append(channelIDs, channelID)
	}

	return channelIDs, storageError("list subscribers", rows.Err())
}

func (store *SQLiteStore) UpdateCursor(ctx context.Context, feedID int64, lastChecked time.Time, etag string) error {
	_, err := store.db.ExecContext(ctx, `update feeds set last_checked = ?, etag = ? where id = ?`, FormatTimestamp(lastChecked), etag, feedID)
	return storageError("update cursor", err)
}

func (store *SQLiteStore) UpsertFeed(ctx context.Context, url string) (int64, error) {
	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageError("upsert feed", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `insert or ignore into feeds(url, last_checked, etag) values(?, ?, '')`, url, FormatTimestamp(NeverChecked))
	if err != nil {
		return 0, storageError("upsert feed", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, `select id from feeds where url = ?`, url).Scan(&id)
	if err != nil {
		return 0, storageError("upsert feed", err)
	}

	return id, storageError("upsert feed", tx.Commit())
}

func (store *SQLiteStore) GetFeedIDByURL(ctx context.Context, url string) (int64, error) {
	var id int64
	err := store.db.QueryRowContext(ctx, `select id from feeds where url = ?`, url).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, storageError("get feed id", err)
	}

	return id, nil
}

func (store *SQLiteStore) CreateSubscription(ctx context.Context, feedID int64, channelID string) error {
	_, err := store.db.ExecContext(ctx, `insert into subscriptions(feed_id, channel_id) values(?, ?)`, feedID, channelID)
	return storageError("create subscription", err)
}

func (store *SQLiteStore) DeleteSubscription(ctx context.Context, feedID int64, channelID string) error {
	result, err := store.db.ExecContext(ctx, `delete from subscriptions where feed_id = ? and channel_id = ?`, feedID, channelID)
	if err != nil {
		return storageError("delete subscription", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return storageError("delete subscription", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

func (store *SQLiteStore) ListChannelSubscriptions(ctx context.Context, channelID string) ([]Feed, error) {
	rows, err := store.db.QueryContext(ctx, `select id, url, last_checked, etag
from feeds
where exists(select 1 from subscriptions where subscriptions.feed_id = feeds.id and channel_id = ?)
order by url`, channelID)
	if err != nil {
		return nil, storageError("list channel subscriptions", err)
	}

	feeds, err := scanFeeds(rows)
	if err != nil {
		return nil, storageError("list channel subscriptions", err)
	}

	return feeds, nil
}
