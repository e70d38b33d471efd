package storage

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a store is used without a backing client.
var ErrNotConfigured = errors.New("storage: not configured")

// KV is a durable string-keyed store. Get reports whether the key existed.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
