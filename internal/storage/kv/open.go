package kv

import (
	"context"
	"fmt"
	"io"

	"formbuilder/internal/domain/repositories"
)

// Store kinds accepted by Open
const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
	KindRedis  = "redis"
)

// Options selects and configures a store for Open
type Options struct {
	Kind      string
	Path      string // sqlite file
	RedisAddr string
	Namespace string // redis key namespace
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the configured store and a closer releasing its resources
func Open(ctx context.Context, opts Options) (repositories.KeyValueStore, io.Closer, error) {
	switch opts.Kind {
	case KindMemory:
		return NewMemoryStore(), nopCloser{}, nil
	case KindSQLite, "":
		s, err := OpenSQLite(opts.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case KindRedis:
		s, err := NewRedisStore(ctx, opts.RedisAddr, opts.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown local store %q", opts.Kind)
	}
}
