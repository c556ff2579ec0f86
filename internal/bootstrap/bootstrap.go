package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/muhammadchandra19/booksync/internal/api/rest"
	"github.com/muhammadchandra19/booksync/internal/app/engine"
	feedv1 "github.com/muhammadchandra19/booksync/internal/domain/feed/v1"
	snapshotv1 "github.com/muhammadchandra19/booksync/internal/domain/snapshot/v1"
	"github.com/muhammadchandra19/booksync/internal/usecase/checkpoint"
	eventpublisher "github.com/muhammadchandra19/booksync/internal/usecase/event-publisher"
	"github.com/muhammadchandra19/booksync/internal/usecase/feed"
	"github.com/muhammadchandra19/booksync/internal/usecase/metrics"
	"github.com/muhammadchandra19/booksync/internal/usecase/snapshot"
	"github.com/muhammadchandra19/booksync/pkg/config"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/muhammadchandra19/booksync/pkg/redis"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Bootstrap holds the wired components of the service.
type Bootstrap struct {
	Config *config.Config
	Logger logger.Interface

	Engine      *engine.Engine
	Reader      feedv1.Reader
	Metrics     *metrics.Metrics
	Publisher   *eventpublisher.Publisher
	Redis       redis.Client
	Checkpoints *checkpoint.Store
	Server      *http.Server
}

// New wires every component from cfg. Redis is only connected when checkpoints are enabled.
func New(ctx context.Context, cfg *config.Config, log logger.Interface) (*Bootstrap, error) {
	b := &Bootstrap{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.NewMetrics(),
	}

	var store snapshotv1.Store
	if cfg.Checkpoint.Enabled {
		b.Redis = redis.NewClient(log, &cfg.Redis)
		if err := b.Redis.Connect(ctx); err != nil {
			log.Warn("Redis connect failed, retrying", logger.NewField("error", err.Error()))
			if !b.Redis.Reconnect(ctx) {
				return nil, fmt.Errorf("connect redis: %w", err)
			}
		}
		b.Checkpoints = checkpoint.NewStore(b.Redis, cfg.Checkpoint.TTL, log)
		store = b.Checkpoints
	}

	b.Engine = engine.NewEngineWithOptions(
		snapshot.NewFetcher(cfg.Snapshot, log),
		store,
		log,
		&engine.Options{
			SnapshotLevel:      cfg.Snapshot.Level,
			MailboxSize:        cfg.Engine.MailboxSize,
			RetryMinBackoff:    cfg.Snapshot.RetryMinBackoff,
			RetryMaxBackoff:    cfg.Snapshot.RetryMaxBackoff,
			ReadErrorBackoff:   cfg.Feed.ReconnectBackoff,
			CheckpointInterval: cfg.Engine.CheckpointInterval,
		},
	)
	b.Engine.Subscribe(b.Metrics)

	if cfg.EventPublisher.Enabled {
		b.Publisher = eventpublisher.NewPublisher(cfg.EventPublisher, log)
		b.Engine.Subscribe(b.Publisher)
	}

	switch cfg.Feed.Source {
	case config.FeedSourceKafka:
		b.Reader = feed.NewKafkaReader(cfg.Feed.Kafka, log)
	default:
		b.Reader = feed.NewWebsocketReader(cfg.Feed, cfg.Products, log)
	}

	opts := []rest.Option{rest.WithMetrics(b.Metrics.Handler())}
	if b.Checkpoints != nil {
		opts = append(opts, rest.WithCheckpoints(b.Checkpoints))
	}
	b.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler:           rest.NewServer(b.Engine, log, opts...).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return b, nil
}

// Run starts the engine, tracks the configured products and serves until ctx is done or a
// component fails.
func (b *Bootstrap) Run(ctx context.Context) error {
	if err := b.Engine.Start(ctx); err != nil {
		return err
	}
	for _, productID := range b.Config.Products {
		if err := b.Engine.Track(ctx, productID); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := b.Engine.Run(ctx, b.Reader)
		if stderrors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		b.Logger.Info("HTTP server listening", logger.NewField("addr", b.Server.Addr))
		if err := b.Server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return b.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close stops the engine and releases every connection.
func (b *Bootstrap) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := b.Engine.Stop(ctx); err != nil {
		b.Logger.Error(err, logger.NewField("action", "stop_engine"))
	}
	if err := b.Reader.Close(); err != nil {
		b.Logger.Error(err, logger.NewField("action", "close_reader"))
	}
	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			b.Logger.Error(err, logger.NewField("action", "close_publisher"))
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Disconnect(ctx); err != nil {
			b.Logger.Error(err, logger.NewField("action", "disconnect_redis"))
		}
	}
}
