package errors

import (
	"fmt"
	"slices"
	"strings"
)

// ErrorCode represents a specific error code in the system.
type ErrorCode string

const (
	// GeneralInternalServerError represents a generic internal server error.
	GeneralInternalServerError ErrorCode = "general_internal_server_error"
	// GeneralBadRequestError represents a generic bad request error.
	GeneralBadRequestError ErrorCode = "general_bad_request_error"
	// GeneralNotFoundError represents a generic not found error.
	GeneralNotFoundError ErrorCode = "general_not_found_error"

	// ConfigError represents an invalid or incomplete configuration.
	ConfigError ErrorCode = "config_error"

	// SnapshotFetchError represents a failed request for a book snapshot.
	SnapshotFetchError ErrorCode = "snapshot_fetch_error"
	// SnapshotStatusError represents a non-success status returned by the snapshot endpoint.
	SnapshotStatusError ErrorCode = "snapshot_status_error"
	// SnapshotDecodeError represents a snapshot payload that could not be decoded.
	SnapshotDecodeError ErrorCode = "snapshot_decode_error"
	// SnapshotLoadError represents a snapshot that could not be loaded into a book.
	SnapshotLoadError ErrorCode = "snapshot_load_error"

	// FeedConnectError represents a failure to connect to the event feed.
	FeedConnectError ErrorCode = "feed_connect_error"
	// FeedReadError represents a failure to read from the event feed.
	FeedReadError ErrorCode = "feed_read_error"
	// FeedDecodeError represents a feed message that could not be decoded.
	FeedDecodeError ErrorCode = "feed_decode_error"

	// EventPublishError represents a failure to forward a raw event downstream.
	EventPublishError ErrorCode = "event_publish_error"

	// CheckpointMarshalError represents a checkpoint that could not be serialized.
	CheckpointMarshalError ErrorCode = "checkpoint_marshal_error"
	// CheckpointStoreError represents a checkpoint that could not be written.
	CheckpointStoreError ErrorCode = "checkpoint_store_error"
	// CheckpointLoadError represents a checkpoint that could not be read back.
	CheckpointLoadError ErrorCode = "checkpoint_load_error"

	// InstrumentNotTrackedError represents a request for an instrument the engine does not track.
	InstrumentNotTrackedError ErrorCode = "instrument_not_tracked"
	// InstrumentAlreadyTrackedError represents a second Track call for the same instrument.
	InstrumentAlreadyTrackedError ErrorCode = "instrument_already_tracked"
	// EngineNotStartedError represents an operation that requires a started engine.
	EngineNotStartedError ErrorCode = "engine_not_started"
	// BookNotSyncedError represents a read that needs a synced book while it is loading.
	BookNotSyncedError ErrorCode = "book_not_synced"

	// RedisConfigError represents an error when the Redis configuration is invalid or nil.
	RedisConfigError ErrorCode = "redis_config_error"
	// RedisConnectionError represents an error when connecting to Redis.
	RedisConnectionError ErrorCode = "redis_connection_error"
	// RedisDisconnectionError represents an error when disconnecting from Redis.
	RedisDisconnectionError ErrorCode = "redis_disconnection_error"
	// RedisPingError represents an error when pinging Redis.
	RedisPingError ErrorCode = "redis_pinging_error"
	// RedisGetError represents an error when getting a value from Redis.
	RedisGetError ErrorCode = "redis_get_error"
	// RedisSetError represents an error when setting a value in Redis.
	RedisSetError ErrorCode = "redis_set_error"
	// RedisHSetError represents an error when setting fields in a hash in Redis.
	RedisHSetError ErrorCode = "redis_hset_error"
	// RedisHGetAllError represents an error when reading a whole hash from Redis.
	RedisHGetAllError ErrorCode = "redis_hgetall_error"
)

// BaseError collects several ErrorDetails, typically validation failures.
type BaseError struct {
	details []*ErrorDetails
}

// NewBaseError returns a BaseError holding details.
func NewBaseError(details ...*ErrorDetails) *BaseError {
	return &BaseError{details: details}
}

// AddErrorDetails appends details.
func (b *BaseError) AddErrorDetails(details ...*ErrorDetails) {
	b.details = append(b.details, details...)
}

// GetDetails returns the collected details in insertion order.
func (b *BaseError) GetDetails() []*ErrorDetails {
	return b.details
}

// HasDetails reports whether any details were collected.
func (b *BaseError) HasDetails() bool {
	return len(b.details) > 0
}

// Error lists every detail on its own line.
func (b *BaseError) Error() string {
	lines := make([]string, 0, len(b.details)+1)
	lines = append(lines, "Error on")
	for _, d := range b.details {
		lines = append(lines, fmt.Sprintf("code: %s; error: %s; field: %s", d.Code, d.Message, d.Field))
	}
	return strings.Join(lines, "\n")
}

// IsAnyCodeEqual reports whether any detail has code.
func (b *BaseError) IsAnyCodeEqual(code string) bool {
	return slices.ContainsFunc(b.details, func(d *ErrorDetails) bool {
		return d.Code == code
	})
}
