package data

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/tern/v2/migrate"
)

const sqliteSchemaSQL = `
create table if not exists feeds(
  id integer primary key autoincrement,
  url text not null unique,
  last_checked text not null default '1970-01-01T00:00:00',
  etag text not null default ''
);

create table if not exists subscriptions(
  id integer primary key autoincrement,
  feed_id integer not null references feeds(id),
  channel_id text not null
);

create index if not exists subscriptions_feed_id_idx on subscriptions(feed_id);
create index if not exists subscriptions_channel_id_idx on subscriptions(channel_id);
create index if not exists feeds_last_checked_idx on feeds(last_checked);
`

// MigrateSQLite creates the schema if it does not exist yet. It is safe to call on every start.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, sqliteSchemaSQL)
	return storageError("migrate", err)
}

// MigratePostgres brings the PostgreSQL schema up to date. onStart, when not nil, is called before each migration
// that is applied.
func MigratePostgres(ctx context.Context, conn *pgx.Conn, onStart func(sequence int32, name string)) error {
	m, err := migrate.NewMigrator(ctx, conn, "schema_version")
	if err != nil {
		return storageError("migrate", err)
	}

	if onStart != nil {
		m.OnStart = func(sequence int32, name, direction, sql string) {
			onStart(sequence, name)
		}
	}

	m.AppendMigration("Create feeds", `
    create table feeds(
      id bigserial primary key,
      url varchar not null,
      last_checked varchar not null default '1970-01-01T00:00:00',
      etag varchar not null default ''
    );

    create unique index feeds_url_unq on feeds (url);
    create index feeds_last_checked_idx on feeds (last_checked);
  `, "drop table feeds;")

	m.AppendMigration("Create subscriptions", `
    create table subscriptions(
      id bigserial primary key,
      feed_id bigint not null references feeds,
      channel_id varchar not null
    );

    create index subscriptions_feed_id_idx on subscriptions (feed_id);
    create index subscriptions_channel_id_idx on subscriptions (channel_id);
  `, "drop table subscriptions;")

	return storageError("migrate", m.Migrate(ctx))
}
