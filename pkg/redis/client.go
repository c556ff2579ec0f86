package redis

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type client struct {
	logger logger.Interface
	config *Config
	rdb    redis.UniversalClient
}

// NewClient returns a Client for config. Nothing is dialled until Connect.
func NewClient(log logger.Interface, config *Config) Client {
	return &client{
		logger: log,
		config: config,
	}
}

// universalOptions maps Config onto go-redis options. Cluster mode always yields a
// cluster client, even with a single seed address.
func (c *Config) universalOptions() *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:           c.Addrs,
		IsClusterMode:   c.Mode == Cluster,
		Username:        c.Username,
		Password:        c.Password,
		DB:              c.DB,
		MaxRetries:      c.MaxRetries,
		MinRetryBackoff: c.MinRetryBackoff,
		MaxRetryBackoff: c.MaxRetryBackoff,
		DialTimeout:     c.ConnectTimeout,
		ReadTimeout:     c.ConnectTimeout,
		WriteTimeout:    c.ConnectTimeout,
		PoolSize:        c.PoolSize,
		MinIdleConns:    c.MinIdleConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PoolTimeout:     c.PoolTimeout,
	}
}

func (c *client) Connect(ctx context.Context) error {
	if c.config == nil {
		return errors.NewErrorDetails("redis config is nil", string(errors.RedisConfigError), "config")
	}
	if err := c.config.Validate(); err != nil {
		return err
	}

	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	c.rdb = redis.NewUniversalClient(c.config.universalOptions())

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.NewCodeTracer(errors.RedisConnectionError).Wrap(err)
	}

	c.logger.Info("Connected to Redis",
		logger.NewField("mode", string(c.config.Mode)),
		logger.NewField("addrs", c.config.Addrs),
	)
	return nil
}

func (c *client) Reconnect(ctx context.Context) bool {
	if c.config == nil {
		return false
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.MinRetryBackoff
	b.MaxInterval = c.config.MaxRetryBackoff
	b.MaxElapsedTime = 0

	attempt := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.config.ReconnectMaxRetries)), ctx)

	err := backoff.Retry(func() error {
		attempt++
		connectCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()

		err := c.Connect(connectCtx)
		if errors.ErrorCodeEquals(err, errors.RedisConfigError) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)

	if err != nil {
		c.logger.Error(errors.TracerFromError(err), logger.NewField("attempts", attempt))
		return false
	}

	c.logger.Info("Reconnected to Redis", logger.NewField("attempts", attempt))
	return true
}

func (c *client) Disconnect(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	err := c.rdb.Close()
	c.rdb = nil
	if err != nil {
		return errors.NewCodeTracer(errors.RedisDisconnectionError).Wrap(err)
	}
	return nil
}

func (c *client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.NewCodeTracer(errors.RedisPingError).Wrap(err)
	}
	return nil
}

func (c *client) Get(ctx context.Context, key string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	val, err := c.rdb.Get(ctx, c.key(key)).Result()
	switch {
	case stderrors.Is(err, redis.Nil):
		return "", nil
	case err != nil:
		return "", errors.NewCodeTracer(errors.RedisGetError).Wrap(err)
	}
	return val, nil
}

func (c *client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.key(key), value, expiration).Err(); err != nil {
		return errors.NewCodeTracer(errors.RedisSetError).Wrap(err)
	}
	return nil
}

func (c *client) HSet(ctx context.Context, key string, values map[string]any) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	n, err := c.rdb.HSet(ctx, c.key(key), values).Result()
	if err != nil {
		return 0, errors.NewCodeTracer(errors.RedisHSetError).Wrap(err)
	}
	return n, nil
}

func (c *client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	values, err := c.rdb.HGetAll(ctx, c.key(key)).Result()
	if err != nil {
		return nil, errors.NewCodeTracer(errors.RedisHGetAllError).Wrap(err)
	}
	return values, nil
}

// ready fails commands issued before Connect.
func (c *client) ready() error {
	if c.rdb == nil {
		return errors.NewErrorDetails("redis is not connected", string(errors.RedisConnectionError), "client")
	}
	return nil
}

func (c *client) key(k string) string {
	return c.config.PrefixKey + k
}
