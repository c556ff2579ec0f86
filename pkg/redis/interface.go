package redis

import (
	"context"
	"time"
)

// Client is the subset of Redis the service relies on. Keys are namespaced with
// Config.PrefixKey by the implementation; callers pass bare keys.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=redis_mock
type Client interface {
	// Connect builds the underlying client for the configured mode and pings it.
	Connect(ctx context.Context) error
	// Reconnect retries Connect with backoff and reports whether it succeeded.
	Reconnect(ctx context.Context) bool
	Disconnect(ctx context.Context) error
	Ping(ctx context.Context) error

	// Get returns "" and no error for a missing key.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key; a zero expiration keeps it forever.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	HSet(ctx context.Context, key string, values map[string]any) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}
