package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ellis-vester/backloggd-discord/backend"
	"github.com/ellis-vester/backloggd-discord/backend/data"
	"github.com/urfave/cli"
	"github.com/vaughan0/go-ini"
	log "gopkg.in/inconshreveable/log15.v2"
)

const version = "0.1.0"

var configFlag = cli.StringFlag{Name: "config, c", Value: "backloggd.conf", Usage: "path to config file", EnvVar: "BACKLOGGD_CONFIG"}

var subscriptionFlags = []cli.Flag{
	configFlag,
	cli.StringFlag{Name: "channel", Usage: "Discord channel ID"},
	cli.StringFlag{Name: "url", Usage: "Backloggd review feed URL"},
	cli.StringFlag{Name: "username", Usage: "Backloggd username"},
}

func main() {
	app := cli.NewApp()
	app.Name = "backloggd-discord"
	app.Usage = "Publish Backloggd reviews to Discord channels"
	app.Version = version

	app.Commands = []cli.Command{
		{
			Name:      "run",
			ShortName: "r",
			Usage:     "poll feeds and publish new reviews until interrupted",
			Flags: []cli.Flag{
				configFlag,
				cli.StringFlag{Name: "status-address", Usage: "address for the status and admin API (disabled when empty)"},
				cli.BoolFlag{Name: "dry-run", Usage: "log notifications instead of sending them"},
			},
			Action: Run,
		},
		{
			Name:   "poll",
			Usage:  "run a single polling cycle",
			Flags:  []cli.Flag{configFlag, cli.BoolFlag{Name: "dry-run", Usage: "log notifications instead of sending them"}},
			Action: Poll,
		},
		{
			Name:   "subscribe",
			Usage:  "subscribe a channel to a reviewer's feed",
			Flags:  subscriptionFlags,
			Action: Subscribe,
		},
		{
			Name:   "unsubscribe",
			Usage:  "unsubscribe a channel from a reviewer's feed",
			Flags:  subscriptionFlags,
			Action: Unsubscribe,
		},
		{
			Name:   "list",
			Usage:  "list the feeds a channel is subscribed to",
			Flags:  []cli.Flag{configFlag, cli.StringFlag{Name: "channel", Usage: "Discord channel ID"}},
			Action: List,
		},
		{
			Name:   "migrate",
			Usage:  "create or upgrade the database schema",
			Flags:  []cli.Flag{configFlag},
			Action: Migrate,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type commandEnv struct {
	conf       ini.File
	logger     log.Logger
	output     *logOutput
	store      data.FeedStore
	closeStore func()
}

func newCommandEnv(ctx context.Context, c *cli.Context) (*commandEnv, error) {
	conf, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	logger, output, err := newLogger(conf)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx, conf, logger, output)
	if err != nil {
		output.Close()
		return nil, err
	}

	return &commandEnv{conf: conf, logger: logger, output: output, store: store, closeStore: closeStore}, nil
}

func (env *commandEnv) Close() {
	env.closeStore()
	env.output.Close()
}

func (env *commandEnv) newFeedUpdater(dryRun bool) (*backend.FeedUpdater, error) {
	poller, err := loadPollerConfig(env.conf)
	if err != nil {
		return nil, err
	}

	sink, err := newSink(env.conf, dryRun, env.logger)
	if err != nil {
		return nil, err
	}

	dispatcher := backend.NewDispatcher(sink, env.logger.New("module", "dispatcher"))
	fetcher := backend.NewHTTPFetcher(poller.requestTimeout, poller.userAgent)
	updater := backend.NewFeedUpdater(env.store, fetcher, backend.XMLFeedParser{}, dispatcher, env.logger.New("module", "feedUpdater"))
	updater.BatchSize = poller.batchSize
	updater.Interval = poller.interval
	updater.MaxConcurrentFeedFetches = poller.maxConcurrentFetches

	return updater, nil
}

func (env *commandEnv) newSubscriptionManager() (*backend.SubscriptionManager, error) {
	poller, err := loadPollerConfig(env.conf)
	if err != nil {
		return nil, err
	}

	probe := backend.NewGofeedProbe(poller.requestTimeout, poller.userAgent)
	return backend.NewSubscriptionManager(env.store, probe), nil
}

func Run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := newCommandEnv(ctx, c)
	if err != nil {
		return err
	}
	defer env.Close()

	updater, err := env.newFeedUpdater(c.Bool("dry-run"))
	if err != nil {
		return err
	}

	status := loadStatusConfig(c, env.conf)
	var server *http.Server
	if status.address != "" {
		subscriptions, err := env.newSubscriptionManager()
		if err != nil {
			return err
		}

		server = &http.Server{
			Addr:              status.address,
			Handler:           backend.NewAPIHandler(updater, subscriptions, env.logger.New("module", "http"), status.apiToken),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			env.logger.Info("Starting to listen", "address", status.address)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				env.logger.Error("Could not start status server", "error", err)
				stop()
			}
		}()
	}

	updater.KeepFeedsFresh(ctx)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}

	env.logger.Info("Stopped")
	return nil
}

func Poll(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := newCommandEnv(ctx, c)
	if err != nil {
		return err
	}
	defer env.Close()

	updater, err := env.newFeedUpdater(c.Bool("dry-run"))
	if err != nil {
		return err
	}

	report, err := updater.RunCycle(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Selected: %d  Succeeded: %d  Not modified: %d  Failed: %d  Published: %d  Delivery failures: %d\n",
		report.Selected, report.Succeeded, report.NotModified, report.Failed, report.ItemsPublished, report.DeliveriesFailed)
	return nil
}

func Subscribe(c *cli.Context) error {
	ctx := context.Background()

	env, err := newCommandEnv(ctx, c)
	if err != nil {
		return err
	}
	defer env.Close()

	subscriptions, err := env.newSubscriptionManager()
	if err != nil {
		return err
	}

	_, err = subscriptions.Subscribe(ctx, c.String("channel"), c.String("url"), c.String("username"))
	if err != nil {
		return err
	}

	url, _ := backend.ExtractFeedURL(c.String("url"), c.String("username"))
	fmt.Println("Subscribed", c.String("channel"), "to", url)
	return nil
}

func Unsubscribe(c *cli.Context) error {
	ctx := context.Background()

	env, err := newCommandEnv(ctx, c)
	if err != nil {
		return err
	}
	defer env.Close()

	subscriptions, err := env.newSubscriptionManager()
	if err != nil {
		return err
	}

	err = subscriptions.Unsubscribe(ctx, c.String("channel"), c.String("url"), c.String("username"))
	if errors.Is(err, data.ErrNotFound) {
		return errors.New("Channel is not subscribed to that feed")
	}
	if err != nil {
		return err
	}

	fmt.Println("Unsubscribed")
	return nil
}

func List(c *cli.Context) error {
	ctx := context.Background()

	env, err := newCommandEnv(ctx, c)
	if err != nil {
		return err
	}
	defer env.Close()

	subscriptions, err := env.newSubscriptionManager()
	if err != nil {
		return err
	}

	feeds, err := subscriptions.List(ctx, c.String("channel"))
	if err != nil {
		return err
	}

	for _, f := range feeds {
		fmt.Println(f.URL)
	}
	return nil
}

func Migrate(c *cli.Context) error {
	ctx := context.Background()

	conf, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}

	logger, output, err := newLogger(conf)
	if err != nil {
		return err
	}
	defer output.Close()

	if driver, _ := conf.Get("database", "driver"); driver != "postgres" {
		_, closeStore, err := openStore(ctx, conf, logger, output)
		if err != nil {
			return err
		}
		closeStore()
		fmt.Println("SQLite schema is up to date")
		return nil
	}

	pool, err := newPool(ctx, conf, logger, output)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return data.MigratePostgres(ctx, conn.Conn(), func(sequence int32, name string) {
		fmt.Printf("Migrating %d: %s\n", sequence, name)
	})
}
