package config

import (
	stderrors "errors"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/redis"
)

const (
	// FeedSourceWebsocket reads the live feed from the exchange websocket.
	FeedSourceWebsocket = "websocket"
	// FeedSourceKafka reads already-decoded feed messages from a Kafka topic.
	FeedSourceKafka = "kafka"
)

// Load loads the configuration from environment variables and an optional .env file.
func Load[T any](cfg T) error {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.NewCodeTracer(errors.ConfigError).Wrap(err)
	}

	if err := env.Parse(cfg); err != nil {
		return errors.NewCodeTracer(errors.ConfigError).Wrap(err)
	}

	return nil
}

// Config holds the configuration for the application
type Config struct {
	App            AppConfig            `envPrefix:"APP_"`
	Products       []string             `env:"PRODUCTS,required,notEmpty" envSeparator:","` // e.g. BTC-USD,ETH-USD
	Feed           FeedConfig           `envPrefix:"FEED_"`
	Snapshot       SnapshotConfig       `envPrefix:"SNAPSHOT_"`
	Engine         EngineConfig         `envPrefix:"ENGINE_"`
	EventPublisher EventPublisherConfig `envPrefix:"EVENT_PUBLISHER_"`
	Checkpoint     CheckpointConfig     `envPrefix:"CHECKPOINT_"`
	Redis          redis.Config         `envPrefix:"REDIS_"`
}

// AppConfig holds process level settings.
type AppConfig struct {
	Name        string `env:"NAME" envDefault:"booksync"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// FeedConfig holds the configuration for the incremental event feed.
type FeedConfig struct {
	Source           string          `env:"SOURCE" envDefault:"websocket"`
	WebsocketURL     string          `env:"WEBSOCKET_URL" envDefault:"wss://ws-feed.exchange.coinbase.com"`
	Channels         []string        `env:"CHANNELS" envSeparator:"," envDefault:"full"`
	ReadTimeout      time.Duration   `env:"READ_TIMEOUT" envDefault:"30s"`
	ReconnectBackoff time.Duration   `env:"RECONNECT_BACKOFF" envDefault:"2s"`
	Kafka            FeedKafkaConfig `envPrefix:"KAFKA_"`
}

// FeedKafkaConfig holds the configuration for reading the feed from Kafka.
type FeedKafkaConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"book-events"`
	GroupID string   `env:"GROUP_ID" envDefault:"booksync"`
}

// SnapshotConfig holds the configuration for the level-3 snapshot endpoint.
type SnapshotConfig struct {
	APIURL          string        `env:"API_URL" envDefault:"https://api.exchange.coinbase.com"`
	Level           int           `env:"LEVEL" envDefault:"3"`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"10s"`
	RetryMinBackoff time.Duration `env:"RETRY_MIN_BACKOFF" envDefault:"500ms"`
	RetryMaxBackoff time.Duration `env:"RETRY_MAX_BACKOFF" envDefault:"30s"`
}

// EngineConfig holds the configuration for the sync engine.
type EngineConfig struct {
	MailboxSize        int           `env:"MAILBOX_SIZE" envDefault:"1024"`
	CheckpointInterval time.Duration `env:"CHECKPOINT_INTERVAL" envDefault:"30s"`
}

// EventPublisherConfig holds the configuration for forwarding raw events to Kafka.
type EventPublisherConfig struct {
	Enabled bool     `env:"ENABLED" envDefault:"false"`
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"book-events"`
}

// CheckpointConfig holds the configuration for book checkpoints.
type CheckpointConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"false"`
	TTL     time.Duration `env:"TTL" envDefault:"0s"`
}

// Validate checks the cross-field rules env tags cannot express.
func (c *Config) Validate() error {
	code := string(errors.ConfigError)
	baseErr := errors.NewBaseError()

	if len(c.Products) == 0 {
		baseErr.AddErrorDetails(errors.NewErrorDetails("products is empty", code, "products"))
	}

	switch c.Feed.Source {
	case FeedSourceWebsocket:
		if _, err := url.ParseRequestURI(c.Feed.WebsocketURL); err != nil {
			baseErr.AddErrorDetails(errors.NewErrorDetails("feed websocket url is invalid", code, "feed.websocket_url"))
		}
	case FeedSourceKafka:
		if len(c.Feed.Kafka.Brokers) == 0 {
			baseErr.AddErrorDetails(errors.NewErrorDetails("feed kafka brokers are empty", code, "feed.kafka.brokers"))
		}
	default:
		baseErr.AddErrorDetails(errors.NewErrorDetails("unknown feed source", code, "feed.source"))
	}

	if _, err := url.ParseRequestURI(c.Snapshot.APIURL); err != nil {
		baseErr.AddErrorDetails(errors.NewErrorDetails("snapshot api url is invalid", code, "snapshot.api_url"))
	}
	if c.Snapshot.Level < 1 || c.Snapshot.Level > 3 {
		baseErr.AddErrorDetails(errors.NewErrorDetails("snapshot level must be 1, 2 or 3", code, "snapshot.level"))
	}
	if c.Snapshot.RetryMinBackoff <= 0 || c.Snapshot.RetryMaxBackoff < c.Snapshot.RetryMinBackoff {
		baseErr.AddErrorDetails(errors.NewErrorDetails("snapshot retry backoff is invalid", code, "snapshot.retry_backoff"))
	}

	if c.Engine.MailboxSize <= 0 {
		baseErr.AddErrorDetails(errors.NewErrorDetails("engine mailbox size must be positive", code, "engine.mailbox_size"))
	}

	if c.EventPublisher.Enabled && len(c.EventPublisher.Brokers) == 0 {
		baseErr.AddErrorDetails(errors.NewErrorDetails("event publisher brokers are empty", code, "event_publisher.brokers"))
	}

	if c.Checkpoint.Enabled {
		if err := c.Redis.Validate(); err != nil {
			var redisErr *errors.BaseError
			if stderrors.As(err, &redisErr) {
				baseErr.AddErrorDetails(redisErr.GetDetails()...)
			}
		}
	}

	if baseErr.HasDetails() {
		return baseErr
	}
	return nil
}
