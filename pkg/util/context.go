package util

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	productIDKey
	resyncIDKey
)

// ContextWithRequestID stores id as the request id of ctx, generating a uuid when id is empty.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// WithRequestID is an alias of ContextWithRequestID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return ContextWithRequestID(ctx, id)
}

// WithProductID returns a context carrying the instrument being processed.
func WithProductID(ctx context.Context, productID string) context.Context {
	return context.WithValue(ctx, productIDKey, productID)
}

// WithResyncID returns a context carrying the id of the current resync cycle.
func WithResyncID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, resyncIDKey, id)
}

// GetRequestID returns the request id of ctx, or "".
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// GetProductID returns the instrument id of ctx, or "".
func GetProductID(ctx context.Context) string {
	return stringValue(ctx, productIDKey)
}

// GetResyncID returns the resync cycle id of ctx, or "".
func GetResyncID(ctx context.Context) string {
	return stringValue(ctx, resyncIDKey)
}

func stringValue(ctx context.Context, k ctxKey) string {
	v, _ := ctx.Value(k).(string)
	return v
}
