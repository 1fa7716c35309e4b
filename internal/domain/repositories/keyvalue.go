package repositories

import "context"

// KeyValueStore is a flat string key/value store (the per-browser storage
// analogue). Get returns ErrNotFound-wrapping errors for missing keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// ListKeys returns every key starting with prefix, in no particular order
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
