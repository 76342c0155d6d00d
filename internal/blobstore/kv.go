package blobstore

import (
	"context"
	"fmt"
)

// KV is the blob contract consumers depend on. Get returns
// errdefs.ErrBlobNotFound for absent keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

type Store interface {
	KV
	Ping(ctx context.Context) error
	Close() error
}

type Backend string

const (
	BackendRedis  Backend = "redis"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

type Options struct {
	Backend    Backend
	RedisURL   string
	SQLitePath string
}

func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendRedis:
		return NewRedis(ctx, opts.RedisURL)
	case BackendSQLite:
		return NewSQLite(ctx, opts.SQLitePath)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported blob store backend %q", opts.Backend)
	}
}
