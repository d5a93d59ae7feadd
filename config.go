package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ellis-vester/backloggd-discord/backend"
	"github.com/ellis-vester/backloggd-discord/backend/data"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/urfave/cli"
	"github.com/vaughan0/go-ini"
	log "gopkg.in/inconshreveable/log15.v2"
)

type pollerConfig struct {
	batchSize            int
	interval             time.Duration
	maxConcurrentFetches int
	requestTimeout       time.Duration
	userAgent            string
}

type statusConfig struct {
	address  string
	apiToken string
}

func loadConfig(path string) (ini.File, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("Invalid config path: %v", err)
	}

	file, err := ini.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Failed to load config file: %v", err)
	}

	return file, nil
}

func loadPollerConfig(conf ini.File) (pollerConfig, error) {
	config := pollerConfig{
		batchSize:            100,
		interval:             time.Hour,
		maxConcurrentFetches: 25,
		requestTimeout:       30 * time.Second,
	}

	var err error
	if s, ok := conf.Get("poller", "batch_size"); ok {
		if config.batchSize, err = strconv.Atoi(s); err != nil || config.batchSize < 1 {
			return config, fmt.Errorf("Bad poller batch_size: %q", s)
		}
	}
	if s, ok := conf.Get("poller", "interval"); ok {
		if config.interval, err = time.ParseDuration(s); err != nil || config.interval <= 0 {
			return config, fmt.Errorf("Bad poller interval: %q", s)
		}
	}
	if s, ok := conf.Get("poller", "max_concurrent_fetches"); ok {
		if config.maxConcurrentFetches, err = strconv.Atoi(s); err != nil || config.maxConcurrentFetches < 1 {
			return config, fmt.Errorf("Bad poller max_concurrent_fetches: %q", s)
		}
	}
	if s, ok := conf.Get("poller", "request_timeout"); ok {
		if config.requestTimeout, err = time.ParseDuration(s); err != nil || config.requestTimeout <= 0 {
			return config, fmt.Errorf("Bad poller request_timeout: %q", s)
		}
	}
	config.userAgent, _ = conf.Get("poller", "user_agent")

	return config, nil
}

func loadStatusConfig(c *cli.Context, conf ini.File) statusConfig {
	config := statusConfig{address: c.String("status-address")}
	if !c.IsSet("status-address") {
		config.address, _ = conf.Get("status", "address")
	}
	config.apiToken, _ = readSecret(conf, "status", "api_token")

	return config
}

// readSecret returns key from section or, when key is absent, the trimmed contents of the file named by key_file.
// Container runtimes mount secrets that way (e.g. /run/secrets/discord_token).
func readSecret(conf ini.File, section, key string) (string, error) {
	if value, ok := conf.Get(section, key); ok && value != "" {
		return value, nil
	}

	path, ok := conf.Get(section, key+"_file")
	if !ok || path == "" {
		return "", nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("Failed to read %s.%s_file: %v", section, key, err)
	}

	return strings.TrimSpace(string(buf)), nil
}

// openStore opens the store selected by [database] driver. The returned close function releases it.
func openStore(ctx context.Context, conf ini.File, logger log.Logger, output *logOutput) (data.FeedStore, func(), error) {
	driver, _ := conf.Get("database", "driver")
	switch driver {
	case "", "sqlite":
		path, _ := conf.Get("database", "path")
		if path == "" {
			path = "backloggd.db"
		}
		store, err := data.OpenSQLite(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "postgres":
		pool, err := newPool(ctx, conf, logger, output)
		if err != nil {
			return nil, nil, err
		}
		return data.NewPgxStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("Unknown database driver: %q", driver)
	}
}

func newPool(ctx context.Context, conf ini.File, logger log.Logger, output *logOutput) (*pgxpool.Pool, error) {
	connString, _ := conf.Get("database", "url")
	if connString == "" {
		return nil, errors.New("Config must contain database.url but it does not")
	}

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("Bad database.url: %v", err)
	}

	if level, ok := conf.Get("log", "pgx_level"); ok && level != "none" {
		pgxLogLevel, err := tracelog.LogLevelFromString(level)
		if err != nil {
			return nil, fmt.Errorf("Bad log pgx_level: %v", err)
		}

		handlerLevel := level
		if level == "trace" {
			handlerLevel = "debug"
		}
		pgxLogger := logger.New("module", "pgx")
		if err := setFilterHandler(handlerLevel, pgxLogger, output.handler); err != nil {
			return nil, err
		}

		config.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   backend.NewPgxLogger(pgxLogger),
			LogLevel: pgxLogLevel,
		}
	}

	return pgxpool.NewWithConfig(ctx, config)
}

func newSink(conf ini.File, dryRun bool, logger log.Logger) (backend.NotificationSink, error) {
	token, err := readSecret(conf, "discord", "token")
	if err != nil {
		return nil, err
	}

	if dryRun || token == "" {
		logger.Warn("notifications will only be logged", "dry_run", dryRun)
		return backend.NewLogSink(logger.New("module", "logSink")), nil
	}

	return backend.NewDiscordSink(token)
}
